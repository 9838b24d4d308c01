package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAlreadyVerified    = errors.New("email is already verified")

	ErrSessionInvalid  = errors.New("session is invalid or expired")
	ErrNoActiveSession = errors.New("no active session")
	ErrTokenInvalid    = errors.New("token is invalid")

	ErrVerificationCodeNotFound = errors.New("no verification code for this user")
	ErrVerificationCodeInvalid  = errors.New("invalid verification code")
	ErrVerificationCodeExpired  = errors.New("verification code has expired")
	ErrVerificationUserMissing  = errors.New("no user to verify: provide userId, ticket or a session")
)

type User struct {
	ID        string
	Email     string
	Verified  bool
	CreatedAt time.Time
}

// Credential holds the encoded password hash of a user. One per user, never updated.
type Credential struct {
	UserID       string
	PasswordHash string
}

type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// APIToken is the long-lived bearer credential used by the CLI. One live token per user.
type APIToken struct {
	Token     string
	UserID    string
	CreatedAt time.Time
}

type VerificationCode struct {
	UserID    string
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether now is past the code's expiry.
func (v *VerificationCode) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
