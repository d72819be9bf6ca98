// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"fmt"

	"github.com/realforestry/hortus-auth/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// MinLength is the shortest password Hash accepts.
const MinLength = 8

// maxLength is bcrypt's input limit; longer inputs are rejected rather than
// silently truncated.
const maxLength = 72

// Hasher turns plaintext passwords into one-way digests and checks
// candidates against them.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// BcryptHasher is a Hasher backed by golang.org/x/crypto/bcrypt. Each digest
// carries its own random salt and cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, clamped to bcrypt's range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt digest of plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if err := Validate(plaintext); err != nil {
		return "", err
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A mismatch or a
// malformed digest is simply false.
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// Validate checks the length rules Hash enforces.
func Validate(plaintext string) error {
	if len(plaintext) < MinLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinLength)
	}
	if len(plaintext) > maxLength {
		return fmt.Errorf("%w: password must be at most %d bytes", common.ErrValidation, maxLength)
	}
	return nil
}
