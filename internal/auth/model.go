// Package auth is Warden's account core: registration, login, email
// verification, and password reset. It owns the user record, the bearer-token
// middleware, and the orchestration between the credential hasher, the token
// service, the session cache, and the mailer.
package auth

import (
	"time"
)

// Role values for the users.role column. The enumeration is closed: the
// schema enforces it with an ENUM and RequireAdmin is the only predicate
// over it.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered Warden account. This is the domain model used
// throughout the application. Database scanning uses this struct directly.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON responses.
	IsVerified   bool       `json:"is_verified"`
	Role         string     `json:"role"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// PublicView returns the fields of a user that are safe to return to clients.
func (u *User) PublicView() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		Role:       u.Role,
		AvatarURL:  u.AvatarURL,
	}
}

// PublicUser is the client-facing projection of a user record.
type PublicUser struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	IsVerified bool    `json:"is_verified"`
	Role       string  `json:"role"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the data submitted to POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginRequest holds the data submitted to POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// EmailRequest holds the data for operations keyed only by email address
// (resend verification, forgot password).
type EmailRequest struct {
	Email string `json:"email" form:"email"`
}

// ResetPasswordRequest holds the new password for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Password string `json:"password" form:"password"`
}

// --- Response DTOs ---

// TokenResponse is the successful login payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// MessageResponse is a generic confirmation payload for operations whose
// only observable result is a status message (verification sent, password
// reset, etc.).
type MessageResponse struct {
	Message string `json:"message"`
}
