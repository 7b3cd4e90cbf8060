package auth

import (
	"errors"
	"time"
)

// Session is one issued bearer token. The plaintext token is returned
// exactly once at issue time and never persisted.
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TokenPrefix string     `json:"token_prefix"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`

	tokenHash string
}

// IsValid reports whether the session can still authenticate requests
func (s *Session) IsValid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Errors
var (
	// ErrInvalidSession covers unknown, expired and revoked tokens. One
	// error for all three keeps responses from disclosing which it was.
	ErrInvalidSession = errors.New("invalid session token")

	ErrUserNotActive = errors.New("user is not active")
)
