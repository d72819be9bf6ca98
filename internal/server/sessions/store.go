// Package sessions keeps the server side of refresh-token sessions. Every
// Store holds at most one live refresh token per account: issuing a new one
// replaces the old one atomically.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/realforestry/hortus-auth/internal/server/models"
)

// RefreshIssuer mints raw refresh token values. *auth.Signer satisfies it.
type RefreshIssuer interface {
	IssueRefresh(subject string) (string, time.Time, error)
}

// Redemption is the outcome of a successful Redeem. Next is nil unless the
// caller asked for rotation.
type Redemption struct {
	AccountID string
	Next      *models.IssuedToken
}

// Store persists refresh-token sessions.
//
// Redeem fails with common.ErrInvalidRefreshToken for unknown values and
// common.ErrRefreshTokenExpired for expired ones; the expired row is removed
// as a side effect.
type Store interface {
	Issue(ctx context.Context, accountID string) (*models.IssuedToken, error)
	Redeem(ctx context.Context, token string, rotate bool) (*Redemption, error)
	RevokeAll(ctx context.Context, accountID string) error
}

// HashToken returns the storage key for a raw refresh token value.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
