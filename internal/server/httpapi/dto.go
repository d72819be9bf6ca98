package httpapi

import (
	"time"

	"github.com/realforestry/hortus-auth/internal/server/services"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type codeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type updateProfileRequest struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,url"`
}

type accountResponse struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Username  string   `json:"username,omitempty"`
	FullName  string   `json:"full_name"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	Verified  bool     `json:"verified"`
	Roles     []string `json:"roles"`
}

type sessionResponse struct {
	AccessToken      string           `json:"access_token,omitempty"`
	RefreshToken     string           `json:"refresh_token,omitempty"`
	TokenType        string           `json:"token_type,omitempty"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	RefreshExpiresAt *time.Time       `json:"refresh_expires_at,omitempty"`
	Roles            []string         `json:"roles"`
	Account          *accountResponse `json:"account,omitempty"`
	Pending          bool             `json:"pending"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func toAccountResponse(a *services.AccountSummary) *accountResponse {
	if a == nil {
		return nil
	}
	return &accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Username:  a.Username,
		FullName:  a.FullName,
		AvatarURL: a.AvatarURL,
		Verified:  a.Verified,
		Roles:     a.Roles,
	}
}

func toSessionResponse(r *services.SessionResult) sessionResponse {
	resp := sessionResponse{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Roles:        r.Roles,
		Account:      toAccountResponse(r.Account),
		Pending:      r.Pending,
	}
	if !r.ExpiresAt.IsZero() {
		t := r.ExpiresAt.UTC()
		resp.ExpiresAt = &t
	}
	if !r.RefreshExpiresAt.IsZero() {
		t := r.RefreshExpiresAt.UTC()
		resp.RefreshExpiresAt = &t
	}
	return resp
}
