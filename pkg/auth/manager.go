package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/haven/pkg/users"
)

// DefaultSessionTTL is used when Issue gets a zero ttl
const DefaultSessionTTL = 24 * time.Hour

// SessionManager issues, validates and revokes sessions
type SessionManager struct {
	db    *sql.DB
	users *users.Store
}

// NewSessionManager creates a session manager
func NewSessionManager(db *sql.DB, userStore *users.Store) *SessionManager {
	return &SessionManager{
		db:    db,
		users: userStore,
	}
}

// Issue creates a session for an active user. The plaintext token is
// returned once and cannot be recovered afterwards.
func (m *SessionManager) Issue(ctx context.Context, userID string, ttl time.Duration) (*Session, string, error) {
	user, err := m.users.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if !user.IsActive() {
		return nil, "", ErrUserNotActive
	}

	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	token, tokenHash, tokenPrefix, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	session := &Session{
		ID:          uuid.New().String(),
		UserID:      userID,
		TokenPrefix: tokenPrefix,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
		tokenHash:   tokenHash,
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, token_prefix, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, tokenHash, session.TokenPrefix, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store session: %w", err)
	}

	return session, token, nil
}

// Validate checks a bearer token and returns its session. Unknown,
// expired and revoked tokens all come back as ErrInvalidSession; a
// disabled user invalidates their live sessions immediately.
func (m *SessionManager) Validate(ctx context.Context, token string) (*Session, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidSession
	}

	var session Session
	var revokedAt sql.NullTime
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_prefix, expires_at, created_at, revoked_at
		FROM sessions WHERE token_hash = $1`, HashToken(token)).
		Scan(&session.ID, &session.UserID, &session.TokenPrefix, &session.ExpiresAt,
			&session.CreatedAt, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if revokedAt.Valid {
		session.RevokedAt = &revokedAt.Time
	}

	if !session.IsValid(time.Now().UTC()) {
		return nil, ErrInvalidSession
	}

	user, err := m.users.Get(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrInvalidSession
	}

	return &session, nil
}

// Revoke invalidates the session behind a token. Revoking an unknown
// token is not an error, logout must be idempotent.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if err := ValidateTokenFormat(token); err != nil {
		return nil
	}
	_, err := m.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $1 WHERE token_hash = $2 AND revoked_at IS NULL`,
		time.Now().UTC(), HashToken(token))
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeUserSessions invalidates every live session for a user, used
// when an account is disabled
func (m *SessionManager) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`,
		time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check revoke result: %w", err)
	}
	return int(rows), nil
}

// CleanupExpired deletes sessions past their expiry, keeping the
// table from growing without bound. Scheduled from the binary.
func (m *SessionManager) CleanupExpired(ctx context.Context) (int, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check cleanup result: %w", err)
	}
	return int(rows), nil
}
