package auth

import (
	"fmt"
	"sync"

	"github.com/realforestry/hortus-auth/internal/common"
)

// KeyProvider supplies HMAC key material. The signer asks for the active
// key on every issue and looks verification keys up by the token's kid, so
// a provider can rotate or add keys without touching the signer.
type KeyProvider interface {
	SigningKey() (kid string, key []byte)
	VerificationKey(kid string) ([]byte, error)
}

// StaticKeys is a KeyProvider built from configuration at startup.
type StaticKeys struct {
	mu     sync.RWMutex
	active string
	keys   map[string][]byte
}

// NewStaticKeys registers secret under kid and makes it the active key.
// An empty secret is a configuration error.
func NewStaticKeys(kid, secret string) (*StaticKeys, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: secret key is not configured", common.ErrSigningKey)
	}
	if kid == "" {
		kid = "primary"
	}
	return &StaticKeys{active: kid, keys: map[string][]byte{kid: []byte(secret)}}, nil
}

func (s *StaticKeys) SigningKey() (string, []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.keys[s.active]
}

func (s *StaticKeys) VerificationKey(kid string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kid %q", common.ErrTokenMalformed, kid)
	}
	return key, nil
}

// Add registers a retired key that still verifies tokens but never signs.
// The active key cannot be replaced this way.
func (s *StaticKeys) Add(kid, secret string) error {
	if kid == "" || secret == "" {
		return fmt.Errorf("%w: kid and secret are required", common.ErrSigningKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if kid == s.active {
		return fmt.Errorf("%w: kid %q is the active key", common.ErrSigningKey, kid)
	}
	s.keys[kid] = []byte(secret)
	return nil
}
