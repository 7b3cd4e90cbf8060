package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/haven/pkg/users"
)

func setupTestManager(t *testing.T) (*sql.DB, *users.Store, *SessionManager) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := users.RunMigrations(ctx, db); err != nil {
		t.Fatalf("Failed to run user migrations: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("Failed to run session migrations: %v", err)
	}

	userStore := users.NewStore(db)
	return db, userStore, NewSessionManager(db, userStore)
}

func mustCreateUser(t *testing.T, store *users.Store, email string) *users.User {
	t.Helper()
	user := &users.User{Email: email, DisplayName: email}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("Create user failed: %v", err)
	}
	return user
}

func TestGenerateToken(t *testing.T) {
	token, hash, prefix, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("Token should start with %q, got %q", TokenPrefix, token)
	}
	if !strings.HasPrefix(prefix, TokenPrefix) || len(prefix) <= len(TokenPrefix) {
		t.Errorf("Unexpected prefix %q", prefix)
	}
	if hash != HashToken(token) {
		t.Error("Returned hash should match HashToken of the token")
	}
	if err := ValidateTokenFormat(token); err != nil {
		t.Errorf("Generated token should validate, got %v", err)
	}

	// Tokens are unique
	other, _, _, _ := GenerateToken()
	if token == other {
		t.Error("Two generated tokens should differ")
	}
}

func TestValidateTokenFormat(t *testing.T) {
	bad := []string{"", "haven_", "other_abc", "haven_!!!not-base64!!!"}
	for _, token := range bad {
		if err := ValidateTokenFormat(token); err == nil {
			t.Errorf("Expected %q to be rejected", token)
		}
	}
}

func TestSessionManager_IssueAndValidate(t *testing.T) {
	_, userStore, manager := setupTestManager(t)
	ctx := context.Background()

	user := mustCreateUser(t, userStore, "alice@example.com")

	session, token, err := manager.Issue(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if session.UserID != user.ID {
		t.Errorf("Session bound to wrong user: %s", session.UserID)
	}

	got, err := manager.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.ID != session.ID || got.UserID != user.ID {
		t.Errorf("Unexpected session: %+v", got)
	}

	if _, err := manager.Validate(ctx, "haven_bm90LWEtcmVhbC10b2tlbg"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expected ErrInvalidSession for unknown token, got %v", err)
	}
}

func TestSessionManager_IssueRequiresActiveUser(t *testing.T) {
	_, userStore, manager := setupTestManager(t)
	ctx := context.Background()

	user := mustCreateUser(t, userStore, "alice@example.com")
	if err := userStore.SetStatus(ctx, user.ID, users.StatusDisabled); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	if _, _, err := manager.Issue(ctx, user.ID, time.Hour); !errors.Is(err, ErrUserNotActive) {
		t.Errorf("Expected ErrUserNotActive, got %v", err)
	}
	if _, _, err := manager.Issue(ctx, "missing", time.Hour); !errors.Is(err, users.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestSessionManager_DisabledUserInvalidatesSession(t *testing.T) {
	_, userStore, manager := setupTestManager(t)
	ctx := context.Background()

	user := mustCreateUser(t, userStore, "alice@example.com")
	_, token, err := manager.Issue(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := userStore.SetStatus(ctx, user.ID, users.StatusDisabled); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	if _, err := manager.Validate(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Disabled user's session should be invalid, got %v", err)
	}
}

func TestSessionManager_ExpiredSession(t *testing.T) {
	db, userStore, manager := setupTestManager(t)
	ctx := context.Background()

	user := mustCreateUser(t, userStore, "alice@example.com")
	_, token, err := manager.Issue(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Age the session past its expiry; Issue itself never produces an
	// already-expired session (non-positive TTLs fall back to the
	// default)
	_, err = db.ExecContext(ctx, "UPDATE sessions SET expires_at = $1 WHERE user_id = $2",
		time.Now().UTC().Add(-time.Minute), user.ID)
	if err != nil {
		t.Fatalf("Failed to age session: %v", err)
	}

	if _, err := manager.Validate(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expired session should be invalid, got %v", err)
	}

	cleaned, err := manager.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if cleaned != 1 {
		t.Errorf("Expected 1 cleaned session, got %d", cleaned)
	}
}

func TestSessionManager_Revoke(t *testing.T) {
	_, userStore, manager := setupTestManager(t)
	ctx := context.Background()

	user := mustCreateUser(t, userStore, "alice@example.com")
	_, token, err := manager.Issue(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := manager.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := manager.Validate(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Revoked session should be invalid, got %v", err)
	}

	// Idempotent, and garbage tokens are fine
	if err := manager.Revoke(ctx, token); err != nil {
		t.Errorf("Second revoke should succeed, got %v", err)
	}
	if err := manager.Revoke(ctx, "not-a-token"); err != nil {
		t.Errorf("Revoking garbage should be a no-op, got %v", err)
	}
}

func TestSessionManager_RevokeUserSessions(t *testing.T) {
	_, userStore, manager := setupTestManager(t)
	ctx := context.Background()

	user := mustCreateUser(t, userStore, "alice@example.com")
	other := mustCreateUser(t, userStore, "bob@example.com")

	_, token1, _ := manager.Issue(ctx, user.ID, time.Hour)
	_, token2, _ := manager.Issue(ctx, user.ID, time.Hour)
	_, otherToken, _ := manager.Issue(ctx, other.ID, time.Hour)

	revoked, err := manager.RevokeUserSessions(ctx, user.ID)
	if err != nil {
		t.Fatalf("RevokeUserSessions failed: %v", err)
	}
	if revoked != 2 {
		t.Errorf("Expected 2 revoked sessions, got %d", revoked)
	}

	for _, token := range []string{token1, token2} {
		if _, err := manager.Validate(ctx, token); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Expected revoked session, got %v", err)
		}
	}
	if _, err := manager.Validate(ctx, otherToken); err != nil {
		t.Errorf("Other user's session should survive, got %v", err)
	}
}
