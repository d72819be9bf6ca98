package models

import "time"

// Account is the identity root. OTPCode and OTPIssuedAt are nil when no
// one-time code is outstanding; OTPAttempts counts wrong guesses against
// the current code. Roles is always loaded with the row.
type Account struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	FullName     string
	AvatarURL    string
	Verified     bool
	OTPCode      *string
	OTPIssuedAt  *time.Time
	OTPAttempts  int
	Roles        []string
	CreatedAt    time.Time
	CreatedBy    string
	UpdatedAt    time.Time
	UpdatedBy    string
	DeletedAt    *time.Time
}

// HasPendingCode reports whether a one-time code is outstanding.
func (a *Account) HasPendingCode() bool {
	return a.OTPCode != nil && *a.OTPCode != ""
}

// Profile holds the user-editable, non-security fields of an account.
type Profile struct {
	FullName  string
	AvatarURL string
}
