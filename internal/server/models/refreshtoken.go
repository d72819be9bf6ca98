package models

import "time"

// RefreshToken is the persisted side of a session. Only the SHA-256 hash of
// the token value is stored.
type RefreshToken struct {
	TokenHash string
	AccountID string
	Expires   time.Time
	CreatedAt time.Time
}

// IssuedToken is a freshly minted refresh token as handed to the caller.
// Value is the only copy of the raw token.
type IssuedToken struct {
	Value     string
	AccountID string
	Expires   time.Time
}
