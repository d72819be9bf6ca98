package common

import "errors"

// Kind is the stable, machine-readable classification of an error that is
// safe to hand to API clients.
type Kind string

const (
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindInvalidCredentials  Kind = "invalid_credentials"
	KindNotVerified         Kind = "not_verified"
	KindInvalidCode         Kind = "invalid_code"
	KindInvalidRefreshToken Kind = "invalid_refresh_token"
	KindUnauthorized        Kind = "unauthorized"
	KindValidation          Kind = "validation"
	KindInternal            Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrConflict, KindConflict},
	{ErrorNotFound, KindNotFound},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrNotVerified, KindNotVerified},
	{ErrInvalidCode, KindInvalidCode},
	{ErrInvalidRefreshToken, KindInvalidRefreshToken},
	{ErrRefreshTokenExpired, KindInvalidRefreshToken},
	{ErrorUnauthorized, KindUnauthorized},
	{ErrTokenExpired, KindUnauthorized},
	{ErrTokenMalformed, KindUnauthorized},
	{ErrValidation, KindValidation},
}

// KindOf classifies err. Anything not recognized is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Message returns the fixed client-facing text for a kind. Internal details
// never leak through it.
func (k Kind) Message() string {
	switch k {
	case KindConflict:
		return ErrConflict.Error()
	case KindNotFound:
		return "account not found"
	case KindInvalidCredentials:
		return ErrInvalidCredentials.Error()
	case KindNotVerified:
		return ErrNotVerified.Error()
	case KindInvalidCode:
		return ErrInvalidCode.Error()
	case KindInvalidRefreshToken:
		return ErrInvalidRefreshToken.Error()
	case KindUnauthorized:
		return ErrorUnauthorized.Error()
	case KindValidation:
		return "invalid request"
	default:
		return ErrorInternal.Error()
	}
}
