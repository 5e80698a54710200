package authapi

import (
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity"
	"github.com/Flugers27/Memory-book/cmd/internal/auth/session"
)

type registerRequest struct {
	Email    string  `json:"email"`
	Username *string `json:"username"`
	Password string  `json:"password"`
}

// loginRequest.Identifier is an email address or a username.
type loginRequest struct {
	Identifier  string `json:"identifier"`
	Password    string `json:"password"`
	DeviceLabel string `json:"device_label"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	DeviceLabel  string `json:"device_label"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    *string    `json:"username"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		IsActive:    u.Active(),
		IsVerified:  u.Verified(),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

type sessionResponse struct {
	SessionID        string    `json:"session_id"`
	TokenType        string    `json:"token_type"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func toSessionResponse(p session.Pair) sessionResponse {
	return sessionResponse{
		SessionID:        p.SessionID,
		TokenType:        "Bearer",
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

type registerResponse struct {
	User                  userResponse `json:"user"`
	VerificationExpiresAt time.Time    `json:"verification_expires_at"`
}

type loginResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

type refreshResponse struct {
	Session sessionResponse `json:"session"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type logoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

// deviceSession never carries the token digest.
type deviceSession struct {
	ID            string    `json:"id"`
	DeviceLabel   string    `json:"device_label"`
	ClientAddress string    `json:"client_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type sessionsResponse struct {
	Sessions []deviceSession `json:"sessions"`
}

func toSessionsResponse(list []session.Session) sessionsResponse {
	out := make([]deviceSession, 0, len(list))
	for _, s := range list {
		out = append(out, deviceSession{
			ID:            s.ID,
			DeviceLabel:   s.DeviceLabel,
			ClientAddress: s.ClientAddress,
			CreatedAt:     s.CreatedAt,
			ExpiresAt:     s.ExpiresAt,
		})
	}
	return sessionsResponse{Sessions: out}
}
