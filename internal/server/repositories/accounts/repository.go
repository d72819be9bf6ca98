// Package accounts declares the user store contract and its PostgreSQL and
// in-memory implementations.
package accounts

import (
	"context"
	"time"

	"github.com/realforestry/hortus-auth/internal/server/models"
)

// Repository persists accounts. Every lookup returns the full row including
// roles; soft-deleted accounts are never returned. Lookups of unknown
// accounts return common.ErrorNotFound.
type Repository interface {
	// Create inserts a new account. Duplicate email or username yields
	// common.ErrConflict.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)

	// UpdateOTP replaces the outstanding one-time code (nil clears it) and
	// resets the failed attempt counter.
	UpdateOTP(ctx context.Context, id string, code *string, issuedAt *time.Time, updatedBy string) error

	// RecordOTPFailure counts one wrong guess against pendingCode and returns
	// the new count. Reaching maxAttempts clears the code. A code that no
	// longer matches pendingCode yields common.ErrorNotFound.
	RecordOTPFailure(ctx context.Context, id, pendingCode string, maxAttempts int) (int, error)

	// MarkVerified sets the verified flag and clears the code, but only while
	// the stored code still equals code. A changed or cleared code yields
	// common.ErrorNotFound so concurrent verifications succeed at most once.
	MarkVerified(ctx context.Context, id, code, updatedBy string) error

	// UpdatePasswordHash replaces the password hash and clears any code. A
	// non-empty expectedCode makes the update conditional like MarkVerified.
	UpdatePasswordHash(ctx context.Context, id, hash, expectedCode, updatedBy string) error

	// UpdateProfile changes display fields only.
	UpdateProfile(ctx context.Context, id string, profile models.Profile, updatedBy string) (*models.Account, error)
}
