package server

import (
	"context"
	"database/sql"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/realforestry/hortus-auth/internal/logging"
	"github.com/realforestry/hortus-auth/internal/server/accounts"
	"github.com/realforestry/hortus-auth/internal/server/auth"
	"github.com/realforestry/hortus-auth/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.SecretKey = "test-secret"
	c.Storage = config.StorageMemory
	c.SessionBackend = config.StorageMemory
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.LogLevel = "error"
	c.BcryptCost = 4
	return c
}

func TestNewApp_InvalidConfig(t *testing.T) {
	c := memoryConfig()
	c.SecretKey = ""

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}

func TestNewApp_MemoryBackends(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	acct, err := app.Accounts().Provision(context.Background(), accounts.ProvisionInput{
		Email:    "admin@x.com",
		Password: "password1",
		Roles:    []string{"ROLE_ADMIN"},
	})
	require.NoError(t, err)

	res, err := app.auth.Login(context.Background(), "admin@x.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, res.Account.ID)
	assert.Equal(t, []string{"ROLE_ADMIN"}, res.Roles)
}

func TestNewApp_PreviousKeysVerifyOldTokens(t *testing.T) {
	retired, err := auth.NewStaticKeys("k0", "old-secret")
	require.NoError(t, err)

	c := memoryConfig()
	oldToken, _, err := auth.NewSigner(retired, c.Issuer, time.Hour, time.Hour).IssueAccess("acct-1", []string{"ROLE_USER"})
	require.NoError(t, err)

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	_, err = app.auth.Authorize(context.Background(), oldToken)
	assert.Error(t, err, "unknown key must be rejected")
	_ = app.Close()

	c.PreviousKeys = map[string]string{"k0": "old-secret"}
	app, err = NewApp(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	p, err := app.auth.Authorize(context.Background(), oldToken)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", p.Subject)
}

func TestNewApp_AppliesOTPAttemptLimit(t *testing.T) {
	c := memoryConfig()
	c.OTPMaxAttempts = 2

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Equal(t, 2, app.Accounts().Policy().MaxOTPAttempts)
}

func TestNewApp_RedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)

	c := memoryConfig()
	c.SessionBackend = config.SessionsRedis
	c.RedisAddr = mr.Addr()

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	_, err = app.Accounts().Provision(context.Background(), accounts.ProvisionInput{Email: "a@x.com", Password: "password1"})
	require.NoError(t, err)

	res, err := app.auth.Login(context.Background(), "a@x.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())

	_, err = app.auth.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c := memoryConfig()
	c.SessionBackend = config.SessionsRedis
	c.RedisAddr = addr

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis init error")
}

func TestNewApp_PostgresOpenFails(t *testing.T) {
	orig := openPostgres
	t.Cleanup(func() { openPostgres = orig })
	openPostgres = func(context.Context, string) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	}

	c := memoryConfig()
	c.Storage = config.StoragePostgres
	c.SessionBackend = config.StoragePostgres

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db init error")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after context cancel")
	}
}

func TestInitSignalHandler_ReleasesOnContextDone(t *testing.T) {
	app := &App{logger: logging.Discard()}

	ctx, cancel := context.WithCancel(context.Background())
	done := app.initSignalHandler(ctx, cancel)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("signal handler still registered after context cancel")
	}
}

func TestInitSignalHandler_CancelsOnSignal(t *testing.T) {
	app := &App{logger: logging.Discard()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := app.initSignalHandler(ctx, cancel)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("signal did not stop the handler")
	}
	assert.Error(t, ctx.Err())
}
