package api

import (
	"time"

	"copydesk/cmd/identity"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type revealRequest struct {
	AdminPassword string `json:"admin_password"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

type loginResponse struct {
	User             userResponse `json:"user"`
	SessionExpiresAt time.Time    `json:"session_expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type revealResponse struct {
	AccountID        int64     `json:"account_id"`
	AccountPassword  string    `json:"account_password"`
	RevealedAt       time.Time `json:"revealed_at"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
}

type legacyTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsActive:  u.Active,
		IsAdmin:   u.Admin,
		CreatedAt: u.CreatedAt,
	}
}
