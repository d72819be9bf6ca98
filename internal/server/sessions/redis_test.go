package sessions

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func tokenKeys(mr *miniredis.Miniredis) []string {
	var out []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "rt:") && !strings.HasPrefix(k, "rt:acct:") {
			out = append(out, k)
		}
	}
	return out
}

func TestRedisStore_IssueReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "", newSeqIssuer(time.Hour))

	first, err := s.Issue(ctx, "a1")
	require.NoError(t, err)
	second, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, []string{"rt:" + HashToken(second.Value)}, tokenKeys(mr))

	pointer, err := mr.Get("rt:acct:a1")
	require.NoError(t, err)
	assert.Equal(t, HashToken(second.Value), pointer)

	_, err = s.Redeem(ctx, first.Value, false)
	assert.True(t, errors.Is(err, common.ErrInvalidRefreshToken), "got %v", err)

	r, err := s.Redeem(ctx, second.Value, false)
	require.NoError(t, err)
	assert.Equal(t, "a1", r.AccountID)
	assert.Nil(t, r.Next)
}

func TestRedisStore_TTLFollowsExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "", newSeqIssuer(time.Hour))

	issued, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	ttl := mr.TTL("rt:" + HashToken(issued.Value))
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

	mr.FastForward(2 * time.Hour)
	_, err = s.Redeem(ctx, issued.Value, false)
	assert.True(t, errors.Is(err, common.ErrInvalidRefreshToken))
}

func TestRedisStore_RedeemRotates(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "", newSeqIssuer(time.Hour))

	issued, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	r, err := s.Redeem(ctx, issued.Value, true)
	require.NoError(t, err)
	require.NotNil(t, r.Next)
	assert.Equal(t, "a1", r.Next.AccountID)
	assert.NotEqual(t, issued.Value, r.Next.Value)
	assert.Equal(t, []string{"rt:" + HashToken(r.Next.Value)}, tokenKeys(mr))

	_, err = s.Redeem(ctx, issued.Value, true)
	assert.True(t, errors.Is(err, common.ErrInvalidRefreshToken))

	again, err := s.Redeem(ctx, r.Next.Value, false)
	require.NoError(t, err)
	assert.Equal(t, "a1", again.AccountID)
}

func TestRedisStore_ExpiredIsRemoved(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "", newSeqIssuer(time.Minute))

	issued, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	// Application clock ahead of the Redis key TTL.
	s.now = func() time.Time { return time.Now().Add(5 * time.Minute) }

	_, err = s.Redeem(ctx, issued.Value, true)
	assert.True(t, errors.Is(err, common.ErrRefreshTokenExpired), "got %v", err)
	assert.Empty(t, tokenKeys(mr))
	assert.False(t, mr.Exists("rt:acct:a1"))
}

func TestRedisStore_RevokeAll(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "", newSeqIssuer(time.Hour))

	issued, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	require.NoError(t, s.RevokeAll(ctx, "a1"))
	require.NoError(t, s.RevokeAll(ctx, "a1"))
	assert.Empty(t, mr.Keys())

	_, err = s.Redeem(ctx, issued.Value, false)
	assert.True(t, errors.Is(err, common.ErrInvalidRefreshToken))
}

func TestRedisStore_ConcurrentIssueLeavesOne(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "", newSeqIssuer(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Issue(ctx, "a1")
		}()
	}
	wg.Wait()

	assert.Len(t, tokenKeys(mr), 1)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedisStore(client, "", newSeqIssuer(time.Hour))
	mr.Close()

	_, err = s.Issue(context.Background(), "a1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrInvalidRefreshToken))
}

func TestRedisStore_CustomPrefixKeepsKeysTogether(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "hortus:rt", newSeqIssuer(time.Hour))

	first, err := s.Issue(ctx, "a1")
	require.NoError(t, err)
	r, err := s.Redeem(ctx, first.Value, true)
	require.NoError(t, err)
	require.NotNil(t, r.Next)

	want := []string{"hortus:rt:" + HashToken(r.Next.Value), "hortus:rt:acct:a1"}
	assert.ElementsMatch(t, want, mr.Keys())

	require.NoError(t, s.RevokeAll(ctx, "a1"))
	assert.Empty(t, mr.Keys())
}
