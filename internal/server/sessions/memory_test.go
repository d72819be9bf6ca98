package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IssueReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(newSeqIssuer(time.Hour))

	first, err := s.Issue(ctx, "a1")
	require.NoError(t, err)
	second, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, 1, s.Count("a1"))

	_, err = s.Redeem(ctx, first.Value, false)
	assert.True(t, errors.Is(err, common.ErrInvalidRefreshToken))

	r, err := s.Redeem(ctx, second.Value, false)
	require.NoError(t, err)
	assert.Equal(t, "a1", r.AccountID)
	assert.Nil(t, r.Next)
}

func TestMemoryStore_RedeemRotates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(newSeqIssuer(time.Hour))

	issued, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	r, err := s.Redeem(ctx, issued.Value, true)
	require.NoError(t, err)
	require.NotNil(t, r.Next)
	assert.NotEqual(t, issued.Value, r.Next.Value)
	assert.Equal(t, "a1", r.Next.AccountID)

	_, err = s.Redeem(ctx, issued.Value, true)
	assert.True(t, errors.Is(err, common.ErrInvalidRefreshToken))
	assert.Equal(t, 1, s.Count("a1"))
}

func TestMemoryStore_ExpiredIsRemoved(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(newSeqIssuer(time.Minute))

	issued, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = s.Redeem(ctx, issued.Value, true)
	assert.True(t, errors.Is(err, common.ErrRefreshTokenExpired))
	assert.Equal(t, 0, s.Count("a1"))

	_, err = s.Redeem(ctx, issued.Value, true)
	assert.True(t, errors.Is(err, common.ErrInvalidRefreshToken))
}

func TestMemoryStore_RevokeAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(newSeqIssuer(time.Hour))

	issued, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	require.NoError(t, s.RevokeAll(ctx, "a1"))
	require.NoError(t, s.RevokeAll(ctx, "a1"))
	require.NoError(t, s.RevokeAll(ctx, "nobody"))

	_, err = s.Redeem(ctx, issued.Value, false)
	assert.True(t, errors.Is(err, common.ErrInvalidRefreshToken))
}

func TestMemoryStore_IssuerFailureKeepsOldSession(t *testing.T) {
	ctx := context.Background()
	issuer := newSeqIssuer(time.Hour)
	s := NewMemoryStore(issuer)

	issued, err := s.Issue(ctx, "a1")
	require.NoError(t, err)

	issuer.fail = true
	_, err = s.Issue(ctx, "a1")
	require.Error(t, err)

	issuer.fail = false
	_, err = s.Redeem(ctx, issued.Value, false)
	assert.NoError(t, err)
}

func TestMemoryStore_ConcurrentIssueLeavesOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(newSeqIssuer(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Issue(ctx, "a1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.Count("a1"))
}

func TestMemoryStore_WithSigner(t *testing.T) {
	keys, err := auth.NewStaticKeys("k1", "secret")
	require.NoError(t, err)
	signer := auth.NewSigner(keys, "hortus-auth", time.Minute, time.Hour)

	s := NewMemoryStore(signer)
	issued, err := s.Issue(context.Background(), "a1")
	require.NoError(t, err)
	assert.Len(t, issued.Value, 64)
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.Expires, 2*time.Second)
}
