// Package auth issues and verifies the bearer tokens handed out by the
// service: HS256 access JWTs and opaque refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/realforestry/hortus-auth/internal/common"
)

const (
	tokenTypeAccess = "access"

	// refreshTokenBytes is the entropy of an opaque refresh token.
	refreshTokenBytes = 32
)

// Claims carried inside an access token.
type Claims struct {
	jwt.RegisteredClaims
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"typ"`
}

// Principal is what a verified access token says about its bearer.
type Principal struct {
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether role is among the principal's roles.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Signer mints and checks tokens.
type Signer struct {
	keys       KeyProvider
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewSigner builds a Signer. ttl values must be positive.
func NewSigner(keys KeyProvider, issuer string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{
		keys:       keys,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccess signs a short-lived access token for subject.
func (s *Signer) IssueAccess(subject string, roles []string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.accessTTL)

	kid, key := s.keys.SigningKey()
	if len(key) == 0 {
		return "", time.Time{}, common.ErrSigningKey
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Roles:     roles,
		TokenType: tokenTypeAccess,
	})
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// IssueRefresh mints an opaque refresh token value for subject. The value
// is meaningless without the session store row that records its owner.
func (s *Signer) IssueRefresh(subject string) (string, time.Time, error) {
	value, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate refresh token for %s: %w", subject, err)
	}
	return value, s.now().Add(s.refreshTTL), nil
}

// Verify checks signature, algorithm, issuer, type and expiry of an access
// token. It returns common.ErrTokenExpired or common.ErrTokenMalformed on
// failure.
func (s *Signer) Verify(tokenString string) (*Principal, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	}
	if !token.Valid || claims.TokenType != tokenTypeAccess || claims.Subject == "" {
		return nil, common.ErrTokenMalformed
	}

	p := &Principal{Subject: claims.Subject, Roles: claims.Roles}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	p.ExpiresAt = claims.ExpiresAt.Time
	return p, nil
}

func (s *Signer) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	return s.keys.VerificationKey(kid)
}
