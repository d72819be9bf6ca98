// Package services composes the account manager, session store and token
// signer into the operations exposed by the transports.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/logging"
	"github.com/realforestry/hortus-auth/internal/server/accounts"
	"github.com/realforestry/hortus-auth/internal/server/auth"
	"github.com/realforestry/hortus-auth/internal/server/models"
	"github.com/realforestry/hortus-auth/internal/server/sessions"
)

const TokenTypeBearer = "Bearer"

// AccessSigner mints and checks access tokens. *auth.Signer satisfies it.
type AccessSigner interface {
	IssueAccess(subject string, roles []string) (string, time.Time, error)
	Verify(token string) (*auth.Principal, error)
}

type AccountSummary struct {
	ID        string
	Email     string
	Username  string
	FullName  string
	AvatarURL string
	Verified  bool
	Roles     []string
}

// SessionResult is the uniform outcome of every flow that may sign a user
// in. Pending is set, and the token fields are empty, when registration
// still awaits email verification.
type SessionResult struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	Roles            []string
	Account          *AccountSummary
	Pending          bool
}

type AuthService struct {
	accounts *accounts.Manager
	sessions sessions.Store
	signer   AccessSigner
	logger   logging.Logger
}

func NewAuthService(m *accounts.Manager, store sessions.Store, signer AccessSigner, logger logging.Logger) *AuthService {
	return &AuthService{
		accounts: m,
		sessions: store,
		signer:   signer,
		logger:   logger.With("module", "auth_service"),
	}
}

// Register creates an account. With verification required the result is
// pending; otherwise the new account is signed in right away.
func (s *AuthService) Register(ctx context.Context, in accounts.RegisterInput) (*SessionResult, error) {
	account, err := s.accounts.Register(ctx, in)
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}

	if s.accounts.Policy().VerificationRequired {
		return &SessionResult{Pending: true, Roles: account.Roles, Account: summarize(account)}, nil
	}

	return s.openSession(ctx, account)
}

// VerifyOTP confirms the email address and signs the account in.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*SessionResult, error) {
	account, err := s.accounts.VerifyOTP(ctx, email, code)
	if err != nil {
		return nil, s.fail(ctx, "verify_otp", err)
	}
	return s.openSession(ctx, account)
}

func (s *AuthService) Login(ctx context.Context, login, password string) (*SessionResult, error) {
	account, err := s.accounts.Authenticate(ctx, login, password)
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}
	return s.openSession(ctx, account)
}

// Refresh rotates a refresh token. Unknown and expired tokens are reported
// the same way.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*SessionResult, error) {
	if refreshToken == "" {
		return nil, common.ErrInvalidRefreshToken
	}

	r, err := s.sessions.Redeem(ctx, refreshToken, true)
	if err != nil {
		if errors.Is(err, common.ErrInvalidRefreshToken) || errors.Is(err, common.ErrRefreshTokenExpired) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, s.fail(ctx, "refresh", err)
	}

	account, err := s.accounts.GetProfile(ctx, r.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			if rerr := s.sessions.RevokeAll(ctx, r.AccountID); rerr != nil {
				_ = s.fail(ctx, "refresh", rerr)
			}
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, s.fail(ctx, "refresh", err)
	}

	return s.withAccess(ctx, account, r.Next)
}

// Logout drops the account's session. It is a no-op when none exists.
func (s *AuthService) Logout(ctx context.Context, accountID string) error {
	if err := s.sessions.RevokeAll(ctx, accountID); err != nil {
		return s.fail(ctx, "logout", err)
	}
	s.logger.Info(ctx, "logged out", "account_id", accountID)
	return nil
}

// Authorize checks a bearer access token. Any failure is reported as
// common.ErrorUnauthorized.
func (s *AuthService) Authorize(ctx context.Context, accessToken string) (*auth.Principal, error) {
	if accessToken == "" {
		return nil, common.ErrorUnauthorized
	}
	p, err := s.signer.Verify(accessToken)
	if err != nil {
		s.logger.Debug(ctx, "access token rejected", "error", err)
		return nil, common.ErrorUnauthorized
	}
	return p, nil
}

func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	return s.fail(ctx, "resend_otp", s.accounts.ResendOTP(ctx, email))
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	return s.fail(ctx, "forgot_password", s.accounts.ForgotPassword(ctx, email))
}

func (s *AuthService) CheckResetCode(ctx context.Context, email, code string) error {
	return s.fail(ctx, "check_reset_code", s.accounts.CheckResetCode(ctx, email, code))
}

// ResetPassword sets a new password and signs out every device.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	account, err := s.accounts.ResetPassword(ctx, email, code, newPassword)
	if err != nil {
		return s.fail(ctx, "reset_password", err)
	}
	return s.fail(ctx, "reset_password", s.sessions.RevokeAll(ctx, account.ID))
}

// ChangePassword replaces the password and drops the live session.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if err := s.accounts.ChangePassword(ctx, accountID, current, next); err != nil {
		return s.fail(ctx, "change_password", err)
	}
	return s.fail(ctx, "change_password", s.sessions.RevokeAll(ctx, accountID))
}

func (s *AuthService) GetProfile(ctx context.Context, accountID string) (*AccountSummary, error) {
	account, err := s.accounts.GetProfile(ctx, accountID)
	if err != nil {
		return nil, s.fail(ctx, "get_profile", err)
	}
	return summarize(account), nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, p models.Profile) (*AccountSummary, error) {
	account, err := s.accounts.UpdateProfile(ctx, accountID, p)
	if err != nil {
		return nil, s.fail(ctx, "update_profile", err)
	}
	return summarize(account), nil
}

func (s *AuthService) openSession(ctx context.Context, account *models.Account) (*SessionResult, error) {
	refresh, err := s.sessions.Issue(ctx, account.ID)
	if err != nil {
		return nil, s.fail(ctx, "issue_session", err)
	}
	return s.withAccess(ctx, account, refresh)
}

func (s *AuthService) withAccess(ctx context.Context, account *models.Account, refresh *models.IssuedToken) (*SessionResult, error) {
	access, expires, err := s.signer.IssueAccess(account.ID, account.Roles)
	if err != nil {
		return nil, s.fail(ctx, "issue_access", err)
	}

	result := &SessionResult{
		AccessToken: access,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expires,
		Roles:       account.Roles,
		Account:     summarize(account),
	}
	if refresh != nil {
		result.RefreshToken = refresh.Value
		result.RefreshExpiresAt = refresh.Expires
	}
	return result, nil
}

// fail logs errors callers cannot act on and passes every error through.
func (s *AuthService) fail(ctx context.Context, op string, err error) error {
	if err != nil && common.KindOf(err) == common.KindInternal {
		s.logger.Error(ctx, "operation failed", "op", op, "error", err)
	}
	return err
}

func summarize(a *models.Account) *AccountSummary {
	return &AccountSummary{
		ID:        a.ID,
		Email:     a.Email,
		Username:  a.Username,
		FullName:  a.FullName,
		AvatarURL: a.AvatarURL,
		Verified:  a.Verified,
		Roles:     a.Roles,
	}
}
