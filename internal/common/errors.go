// Package common defines shared constants and sentinel errors used across
// the service and transport layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrValidation     = errors.New("validation error")

	// Account lifecycle errors.
	ErrConflict           = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrNotVerified        = errors.New("account not verified")
	ErrInvalidCode        = errors.New("invalid or expired code")

	// Session errors. Not-found and expired refresh tokens are reported to
	// callers as ErrInvalidRefreshToken.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Signer errors.
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("malformed token")
	ErrSigningKey     = errors.New("signing key unavailable")
)
