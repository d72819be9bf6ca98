// Package accounts owns the account state machine: registration and email
// verification, password login, and the forgot/reset password cycle.
//
//	Unregistered -> PendingVerification -> Verified
//	Verified -> ResetPending -> Verified
//
// A pending state is an outstanding one-time code on the account row. Every
// transition that consumes a code is conditional on the stored code, so a
// code is accepted at most once even under concurrent requests.
package accounts

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/logging"
	"github.com/realforestry/hortus-auth/internal/server/models"
	"github.com/realforestry/hortus-auth/internal/server/notify"
	"github.com/realforestry/hortus-auth/internal/server/password"
	accountrepo "github.com/realforestry/hortus-auth/internal/server/repositories/accounts"
)

const (
	maxFullNameLength = 200
	maxUsernameLength = 64

	// systemActor is recorded in audit fields for changes nobody signed in made.
	systemActor = "system"
)

// Policy holds the knobs that differed between the old per-service copies.
type Policy struct {
	// VerificationRequired gates login on a verified email. When false the
	// orchestrator also logs users in right after registration.
	VerificationRequired bool
	// OTPValidity bounds the age of a code; zero disables the check.
	OTPValidity time.Duration
	// DefaultRoles are attached to self-registered accounts.
	DefaultRoles []string
	// MaxOTPAttempts is the number of wrong guesses after which the pending
	// code is discarded and a new one must be requested. Zero disables it.
	MaxOTPAttempts int
}

// DefaultPolicy requires verification, accepts codes for ten minutes and
// allows five wrong guesses per code.
func DefaultPolicy() Policy {
	return Policy{
		VerificationRequired: true,
		OTPValidity:          10 * time.Minute,
		DefaultRoles:         []string{common.DefaultRole},
		MaxOTPAttempts:       5,
	}
}

// CodeGenerator yields fresh one-time codes. *otp.Generator satisfies it.
type CodeGenerator interface {
	Generate() (string, error)
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName string
}

// ProvisionInput describes an account created by an operator rather than by
// self-registration. Provisioned accounts start verified.
type ProvisionInput struct {
	Email    string
	Username string
	Password string
	FullName string
	Roles    []string
}

type Manager struct {
	repo      accountrepo.Repository
	hasher    password.Hasher
	codes     CodeGenerator
	notifier  notify.Notifier
	logger    logging.Logger
	policy    Policy
	dummyHash string
	now       func() time.Time
	newID     func() string
}

func NewManager(repo accountrepo.Repository, hasher password.Hasher, codes CodeGenerator,
	notifier notify.Notifier, logger logging.Logger, policy Policy) (*Manager, error) {

	// Compared against on unknown logins so they cost the same as known ones.
	dummy, err := hasher.Hash("hortus-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Manager{
		repo:      repo,
		hasher:    hasher,
		codes:     codes,
		notifier:  notifier,
		logger:    logger.With("module", "accounts"),
		policy:    policy,
		dummyHash: dummy,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Policy returns the policy the manager was built with.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Register creates an unverified account with a fresh code and sends the
// code to the given address.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}
	fullName, err := normalizeFullName(in.FullName)
	if err != nil {
		return nil, err
	}

	if err := m.ensureAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	code, err := m.codes.Generate()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	account := &models.Account{
		ID:           m.newID(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		OTPCode:      &code,
		OTPIssuedAt:  &now,
		Roles:        append([]string(nil), m.policy.DefaultRoles...),
		CreatedAt:    now,
		CreatedBy:    email,
		UpdatedAt:    now,
		UpdatedBy:    email,
	}

	account, err = m.repo.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	m.logger.Info(ctx, "account registered", "account_id", account.ID)
	m.deliver(ctx, email, code)

	return account, nil
}

// VerifyOTP consumes the outstanding code and marks the account verified.
func (m *Manager) VerifyOTP(ctx context.Context, email, code string) (*models.Account, error) {
	account, err := m.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := m.checkCode(ctx, account, code); err != nil {
		return nil, err
	}

	if err := m.repo.MarkVerified(ctx, account.ID, code, account.Email); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCode
		}
		return nil, err
	}

	account.Verified = true
	account.OTPCode, account.OTPIssuedAt = nil, nil
	m.logger.Info(ctx, "account verified", "account_id", account.ID)

	return account, nil
}

// Authenticate checks a password for a login that is either a username or
// an email address. Unknown logins and wrong passwords are indistinguishable.
func (m *Manager) Authenticate(ctx context.Context, login, plaintext string) (*models.Account, error) {
	account, err := m.findByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			m.hasher.Verify(plaintext, m.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !m.hasher.Verify(plaintext, account.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	if m.policy.VerificationRequired && !account.Verified {
		return nil, common.ErrNotVerified
	}

	return account, nil
}

// ForgotPassword issues a reset code, replacing any outstanding one.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	return m.reissueCode(ctx, email, "password reset requested")
}

// ResendOTP issues a fresh code unconditionally. The previous code stops
// working immediately.
func (m *Manager) ResendOTP(ctx context.Context, email string) error {
	return m.reissueCode(ctx, email, "one-time code reissued")
}

// CheckResetCode reports whether code is the live code for email without
// consuming it.
func (m *Manager) CheckResetCode(ctx context.Context, email, code string) error {
	account, err := m.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	return m.checkCode(ctx, account, code)
}

// ResetPassword replaces the password of the account owning code.
func (m *Manager) ResetPassword(ctx context.Context, email, code, newPassword string) (*models.Account, error) {
	account, err := m.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := m.checkCode(ctx, account, code); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	if err := m.repo.UpdatePasswordHash(ctx, account.ID, hash, code, account.Email); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCode
		}
		return nil, err
	}

	m.logger.Info(ctx, "password reset", "account_id", account.ID)
	return account, nil
}

// ChangePassword replaces the password of a signed-in account after
// checking the current one.
func (m *Manager) ChangePassword(ctx context.Context, accountID, current, next string) error {
	account, err := m.repo.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	if !m.hasher.Verify(current, account.PasswordHash) {
		return common.ErrInvalidCredentials
	}

	hash, err := m.hasher.Hash(next)
	if err != nil {
		return err
	}

	if err := m.repo.UpdatePasswordHash(ctx, account.ID, hash, "", account.Email); err != nil {
		return err
	}

	m.logger.Info(ctx, "password changed", "account_id", account.ID)
	return nil
}

func (m *Manager) GetProfile(ctx context.Context, accountID string) (*models.Account, error) {
	return m.repo.FindByID(ctx, accountID)
}

// UpdateProfile changes display fields only; security fields are untouched.
func (m *Manager) UpdateProfile(ctx context.Context, accountID string, p models.Profile) (*models.Account, error) {
	fullName, err := normalizeFullName(p.FullName)
	if err != nil {
		return nil, err
	}

	account, err := m.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return m.repo.UpdateProfile(ctx, accountID, models.Profile{
		FullName:  fullName,
		AvatarURL: strings.TrimSpace(p.AvatarURL),
	}, account.Email)
}

// Provision creates a verified account with explicit roles.
func (m *Manager) Provision(ctx context.Context, in ProvisionInput) (*models.Account, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}
	fullName, err := normalizeFullName(in.FullName)
	if err != nil {
		return nil, err
	}

	if err := m.ensureAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	roles := in.Roles
	if len(roles) == 0 {
		roles = m.policy.DefaultRoles
	}

	now := m.now().UTC()
	account := &models.Account{
		ID:           m.newID(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Verified:     true,
		Roles:        append([]string(nil), roles...),
		CreatedAt:    now,
		CreatedBy:    systemActor,
		UpdatedAt:    now,
		UpdatedBy:    systemActor,
	}

	account, err = m.repo.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	m.logger.Info(ctx, "account provisioned", "account_id", account.ID, "roles", account.Roles)
	return account, nil
}

func (m *Manager) reissueCode(ctx context.Context, email, event string) error {
	account, err := m.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := m.codes.Generate()
	if err != nil {
		return err
	}

	now := m.now().UTC()
	if err := m.repo.UpdateOTP(ctx, account.ID, &code, &now, account.Email); err != nil {
		return err
	}

	m.logger.Info(ctx, event, "account_id", account.ID)
	m.deliver(ctx, account.Email, code)
	return nil
}

func (m *Manager) deliver(ctx context.Context, email, code string) {
	if err := m.notifier.SendOneTimeCode(ctx, email, code); err != nil {
		m.logger.Warn(ctx, "one-time code delivery failed", "email", email, "error", err)
	}
}

// checkCode accepts code only if it is the live code of account. A wrong
// guess is counted against the pending code; once the policy's limit is hit
// the code is discarded.
func (m *Manager) checkCode(ctx context.Context, account *models.Account, code string) error {
	if !account.HasPendingCode() {
		return common.ErrInvalidCode
	}
	limit := m.policy.MaxOTPAttempts
	if limit > 0 && account.OTPAttempts >= limit {
		return common.ErrInvalidCode
	}

	if code == "" || subtle.ConstantTimeCompare([]byte(*account.OTPCode), []byte(code)) != 1 {
		if limit > 0 {
			m.recordFailure(ctx, account, limit)
		}
		return common.ErrInvalidCode
	}

	if m.policy.OTPValidity > 0 {
		if account.OTPIssuedAt == nil || m.now().Sub(*account.OTPIssuedAt) > m.policy.OTPValidity {
			return common.ErrInvalidCode
		}
	}
	return nil
}

func (m *Manager) recordFailure(ctx context.Context, account *models.Account, limit int) {
	attempts, err := m.repo.RecordOTPFailure(ctx, account.ID, *account.OTPCode, limit)
	if err != nil {
		// NotFound means the code was replaced or consumed meanwhile.
		if !errors.Is(err, common.ErrorNotFound) {
			m.logger.Error(ctx, "recording failed code attempt", "account_id", account.ID, "error", err)
		}
		return
	}
	if attempts >= limit {
		m.logger.Warn(ctx, "one-time code discarded after too many attempts", "account_id", account.ID)
	}
}

func (m *Manager) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := m.repo.FindByEmail(ctx, email); err == nil {
		return common.ErrConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	if username == "" {
		return nil
	}
	if _, err := m.repo.FindByUsername(ctx, username); err == nil {
		return common.ErrConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}

func (m *Manager) findByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (m *Manager) findByLogin(ctx context.Context, login string) (*models.Account, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, common.ErrorNotFound
	}

	if !strings.Contains(login, "@") {
		account, err := m.repo.FindByUsername(ctx, login)
		if !errors.Is(err, common.ErrorNotFound) {
			return account, err
		}
	}
	return m.repo.FindByEmail(ctx, strings.ToLower(login))
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", common.ErrValidation)
	}
	return email, nil
}

func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if strings.Contains(username, "@") || utf8.RuneCountInString(username) > maxUsernameLength {
		return "", fmt.Errorf("%w: invalid username", common.ErrValidation)
	}
	return username, nil
}

func normalizeFullName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) > maxFullNameLength {
		return "", fmt.Errorf("%w: full name too long", common.ErrValidation)
	}
	return name, nil
}
