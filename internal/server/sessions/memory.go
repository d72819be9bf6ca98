package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/server/models"
)

// MemoryStore is a process-local Store for development runs and tests.
type MemoryStore struct {
	mu        sync.Mutex
	byHash    map[string]models.RefreshToken
	byAccount map[string]string
	issuer    RefreshIssuer
	now       func() time.Time
}

func NewMemoryStore(issuer RefreshIssuer) *MemoryStore {
	return &MemoryStore{
		byHash:    map[string]models.RefreshToken{},
		byAccount: map[string]string{},
		issuer:    issuer,
		now:       time.Now,
	}
}

func (s *MemoryStore) Issue(_ context.Context, accountID string) (*models.IssuedToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(accountID)
}

func (s *MemoryStore) Redeem(_ context.Context, token string, rotate bool) (*Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := HashToken(token)
	row, ok := s.byHash[hash]
	if !ok {
		return nil, common.ErrInvalidRefreshToken
	}

	if !s.now().Before(row.Expires) {
		s.drop(row.AccountID)
		return nil, common.ErrRefreshTokenExpired
	}

	result := &Redemption{AccountID: row.AccountID}
	if rotate {
		next, err := s.replace(row.AccountID)
		if err != nil {
			return nil, err
		}
		result.Next = next
	}
	return result, nil
}

func (s *MemoryStore) RevokeAll(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop(accountID)
	return nil
}

// Count reports how many tokens are stored for accountID.
func (s *MemoryStore) Count(accountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, row := range s.byHash {
		if row.AccountID == accountID {
			n++
		}
	}
	return n
}

func (s *MemoryStore) replace(accountID string) (*models.IssuedToken, error) {
	value, expires, err := s.issuer.IssueRefresh(accountID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	s.drop(accountID)
	hash := HashToken(value)
	s.byHash[hash] = models.RefreshToken{TokenHash: hash, AccountID: accountID, Expires: expires, CreatedAt: s.now()}
	s.byAccount[accountID] = hash

	return &models.IssuedToken{Value: value, AccountID: accountID, Expires: expires}, nil
}

func (s *MemoryStore) drop(accountID string) {
	if hash, ok := s.byAccount[accountID]; ok {
		delete(s.byHash, hash)
		delete(s.byAccount, accountID)
	}
}
