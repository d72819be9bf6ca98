package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/server/models"
)

// MemoryRepository is a process-local Repository for development runs and
// tests. It enforces the same uniqueness and conditional-update rules as
// the PostgreSQL schema.
type MemoryRepository struct {
	mu       sync.Mutex
	byID     map[string]*models.Account
	email    map[string]string
	username map[string]string
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     map[string]*models.Account{},
		email:    map[string]string{},
		username: map[string]string{},
		now:      time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[a.ID]; ok {
		return nil, common.ErrConflict
	}
	if _, ok := r.email[strings.ToLower(a.Email)]; ok {
		return nil, common.ErrConflict
	}
	if a.Username != "" {
		if _, ok := r.username[a.Username]; ok {
			return nil, common.ErrConflict
		}
		r.username[a.Username] = a.ID
	}

	r.email[strings.ToLower(a.Email)] = a.ID
	r.byID[a.ID] = clone(a)
	return a, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(r.email[strings.ToLower(email)])
}

func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(r.username[username])
}

func (r *MemoryRepository) UpdateOTP(_ context.Context, id string, code *string, issuedAt *time.Time, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.live(id)
	if !ok {
		return common.ErrorNotFound
	}
	a.OTPCode = copyString(code)
	a.OTPIssuedAt = copyTime(issuedAt)
	a.OTPAttempts = 0
	r.touch(a, updatedBy)
	return nil
}

func (r *MemoryRepository) RecordOTPFailure(_ context.Context, id, pendingCode string, maxAttempts int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.live(id)
	if !ok || a.OTPCode == nil || *a.OTPCode != pendingCode {
		return 0, common.ErrorNotFound
	}
	a.OTPAttempts++
	if a.OTPAttempts >= maxAttempts {
		a.OTPCode, a.OTPIssuedAt = nil, nil
	}
	a.UpdatedAt = r.now()
	return a.OTPAttempts, nil
}

func (r *MemoryRepository) MarkVerified(_ context.Context, id, code, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.live(id)
	if !ok || a.OTPCode == nil || *a.OTPCode != code {
		return common.ErrorNotFound
	}
	a.Verified = true
	a.OTPCode, a.OTPIssuedAt, a.OTPAttempts = nil, nil, 0
	r.touch(a, updatedBy)
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(_ context.Context, id, hash, expectedCode, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.live(id)
	if !ok {
		return common.ErrorNotFound
	}
	if expectedCode != "" && (a.OTPCode == nil || *a.OTPCode != expectedCode) {
		return common.ErrorNotFound
	}
	a.PasswordHash = hash
	a.OTPCode, a.OTPIssuedAt, a.OTPAttempts = nil, nil, 0
	r.touch(a, updatedBy)
	return nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, id string, p models.Profile, updatedBy string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.live(id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	a.FullName = p.FullName
	a.AvatarURL = p.AvatarURL
	r.touch(a, updatedBy)
	return clone(a), nil
}

// SoftDelete marks an account deleted. Deletion belongs to account
// administration; it exists here so tests can exercise the filter.
func (r *MemoryRepository) SoftDelete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		now := r.now()
		a.DeletedAt = &now
	}
}

func (r *MemoryRepository) get(id string) (*models.Account, error) {
	a, ok := r.live(id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(a), nil
}

func (r *MemoryRepository) live(id string) (*models.Account, bool) {
	a, ok := r.byID[id]
	if !ok || a.DeletedAt != nil {
		return nil, false
	}
	return a, true
}

func (r *MemoryRepository) touch(a *models.Account, updatedBy string) {
	a.UpdatedAt = r.now()
	a.UpdatedBy = updatedBy
}

func clone(a *models.Account) *models.Account {
	c := *a
	c.Roles = append([]string(nil), a.Roles...)
	c.OTPCode = copyString(a.OTPCode)
	c.OTPIssuedAt = copyTime(a.OTPIssuedAt)
	c.DeletedAt = copyTime(a.DeletedAt)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
