package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/users"
)

func setupAuthTest(t *testing.T) (*users.Store, *auth.SessionManager) {
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
	if err := auth.RunMigrations(ctx, db); err != nil {
		t.Fatalf("Failed to run session migrations: %v", err)
	}

	userStore := users.NewStore(db)
	return userStore, auth.NewSessionManager(db, userStore)
}

func issueTestSession(t *testing.T, userStore *users.Store, manager *auth.SessionManager, email string) (string, string) {
	t.Helper()
	ctx := context.Background()
	user := &users.User{Email: email, DisplayName: email}
	if err := userStore.Create(ctx, user); err != nil {
		t.Fatalf("Create user failed: %v", err)
	}
	_, token, err := manager.Issue(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return user.ID, token
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	userStore, manager := setupAuthTest(t)
	userID, token := issueTestSession(t, userStore, manager, "alice@example.com")

	var gotUserID string
	var gotSession *auth.Session
	handler := NewAuthMiddleware(manager, false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = contextkeys.UserID(r.Context())
		gotSession = GetSession(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotUserID != userID {
		t.Errorf("Expected user ID in context, got %q", gotUserID)
	}
	if gotSession == nil || gotSession.UserID != userID {
		t.Error("Expected session in context")
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, manager := setupAuthTest(t)

	handler := NewAuthMiddleware(manager, false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not run without a token")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	_, manager := setupAuthTest(t)

	handler := NewAuthMiddleware(manager, false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not run with a bad token")
	}))

	for _, header := range []string{"Bearer haven_bm90LXJlYWw", "Basic abc", "Bearer"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for %q, got %d", header, rec.Code)
		}
	}
}

func TestAuthMiddleware_OptionalAllowsAnonymous(t *testing.T) {
	_, manager := setupAuthTest(t)

	var gotUserID string
	ran := false
	handler := NewAuthMiddleware(manager, true).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		gotUserID = contextkeys.UserID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if !ran {
		t.Fatal("Handler should run for anonymous requests in optional mode")
	}
	if gotUserID != "" {
		t.Errorf("Anonymous request should have no user ID, got %q", gotUserID)
	}

	// Optional mode still rejects a bad token
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer haven_bm90LXJlYWw")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for invalid token in optional mode, got %d", rec.Code)
	}
}
