// Package server initializes and runs the hortus-auth application server.
// It selects storage and session backends, applies migrations, wires the
// authentication service and runs the HTTP and gRPC endpoints until a
// shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/realforestry/hortus-auth/internal/logging"
	"github.com/realforestry/hortus-auth/internal/server/accounts"
	"github.com/realforestry/hortus-auth/internal/server/auth"
	"github.com/realforestry/hortus-auth/internal/server/config"
	"github.com/realforestry/hortus-auth/internal/server/httpapi"
	"github.com/realforestry/hortus-auth/internal/server/notify"
	"github.com/realforestry/hortus-auth/internal/server/otp"
	"github.com/realforestry/hortus-auth/internal/server/password"
	accountrepo "github.com/realforestry/hortus-auth/internal/server/repositories/accounts"
	"github.com/realforestry/hortus-auth/internal/server/repositories/repomanager"
	"github.com/realforestry/hortus-auth/internal/server/services"
	"github.com/realforestry/hortus-auth/internal/server/sessions"
	"github.com/redis/go-redis/v9"

	gs "github.com/realforestry/hortus-auth/internal/server/grpc"
)

// seams for tests
var (
	openPostgres = repomanager.OpenPostgres
	newRedis     = redis.NewClient
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	accounts *accounts.Manager
	auth     *services.AuthService
	closers  []func() error
}

// NewApp validates c and builds every component. Close releases the
// database and Redis connections it opened.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	if err := app.build(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) build(ctx context.Context) error {
	c := app.config

	keys, err := auth.NewStaticKeys(c.KeyID, c.SecretKey)
	if err != nil {
		return fmt.Errorf("signing keys: %w", err)
	}
	for kid, secret := range c.PreviousKeys {
		if err := keys.Add(kid, secret); err != nil {
			return fmt.Errorf("signing keys: %w", err)
		}
	}
	signer := auth.NewSigner(keys, c.Issuer, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)

	codes, err := otp.NewGenerator(c.OTPDigits)
	if err != nil {
		return err
	}

	var (
		db   *sql.DB
		rm   repomanager.RepositoryManager
		repo accountrepo.Repository
	)

	if c.Storage == config.StoragePostgres {
		db, err = openPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, db.Close)

		rm = repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		repo = rm.Accounts(db)
	} else {
		app.logger.Warn(ctx, "using in-memory account storage, data is lost on restart")
		repo = accountrepo.NewMemoryRepository()
	}

	var store sessions.Store
	switch c.SessionBackend {
	case config.StoragePostgres:
		store = sessions.NewPostgresStore(db, rm, signer)
	case config.SessionsRedis:
		client := newRedis(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		app.closers = append(app.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis init error: %w", err)
		}
		store = sessions.NewRedisStore(client, "", signer)
	default:
		store = sessions.NewMemoryStore(signer)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(app.logger)
	if c.SMTPAddr != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Addr:     c.SMTPAddr,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		})
	}

	policy := accounts.DefaultPolicy()
	policy.VerificationRequired = c.VerificationRequired
	policy.OTPValidity = c.OTPValidityDuration
	policy.MaxOTPAttempts = c.OTPMaxAttempts

	app.accounts, err = accounts.NewManager(repo, password.NewBcryptHasher(c.BcryptCost), codes, notifier, app.logger, policy)
	if err != nil {
		return err
	}
	app.auth = services.NewAuthService(app.accounts, store, signer, app.logger)

	app.logger.Info(ctx, "components ready",
		"storage", c.Storage,
		"sessions", c.SessionBackend,
		"verification_required", c.VerificationRequired,
		"previous_keys", len(c.PreviousKeys),
	)
	return nil
}

// Accounts exposes the account manager for administrative commands.
func (app *App) Accounts() *accounts.Manager {
	return app.accounts
}

// Close releases connections in reverse order of opening.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

// initSignalHandler cancels the app context on SIGINT, SIGTERM or SIGQUIT.
// The returned channel is closed once the handler has been deregistered.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) <-chan struct{} {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigs)

		select {
		case <-sigs:
			app.logger.Info(ctx, "Shutdown signal received")
			cancelFunc()
		case <-ctx.Done():
		}
	}()
	return done
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(httpapi.NewHandler(app.auth, app.logger), app.config.AllowedOrigins)
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, router, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.auth)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	signalsDone := app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	cancelFunc()
	<-signalsDone

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
