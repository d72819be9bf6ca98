// Package common contains shared constants and sentinel errors used across
// hortus-auth components.
package common

// AccessTokenHeaderName is the gRPC metadata key that may carry the access
// token. The "authorization" key with a Bearer prefix is accepted as well.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName is the standard bearer header (HTTP) and metadata key (gRPC).
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the token in AuthorizationHeaderName values.
const BearerPrefix = "Bearer "

// DefaultRole is attached to every self-registered account.
const DefaultRole = "ROLE_USER"
