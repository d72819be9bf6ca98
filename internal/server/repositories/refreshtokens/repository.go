// Package refreshtokens declares the server-side repository contract for
// persisted refresh tokens. Tokens are addressed by the SHA-256 hash of
// their value; raw token strings never reach storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/realforestry/hortus-auth/internal/server/models"
)

// Repository defines the row operations a session store composes inside a
// transaction.
type Repository interface {
	// LockAccount takes a row lock on the owning account so that concurrent
	// issue and rotate calls for the same account serialize. Unknown or
	// deleted accounts yield common.ErrorNotFound.
	LockAccount(ctx context.Context, accountID string) error

	// Create stores a token hash for accountID. A second live token for the
	// same account yields common.ErrConflict.
	Create(ctx context.Context, accountID, tokenHash string, expires time.Time) error

	// Find returns the row without locking it. Unknown hashes yield
	// common.ErrorNotFound.
	Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// FindForUpdate returns the row and locks it for the rest of the
	// transaction. Unknown hashes yield common.ErrorNotFound.
	FindForUpdate(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Delete removes a single token. Deleting a missing token is not an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteByAccount removes every token owned by accountID.
	DeleteByAccount(ctx context.Context, accountID string) error
}
