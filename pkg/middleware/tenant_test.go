package middleware

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/haven/pkg/observability"
	"github.com/platinummonkey/haven/pkg/tenancy"
)

func setupTenantTest(t *testing.T) (*tenancy.Store, *TenantMiddleware) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := tenancy.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	store := tenancy.NewStore(db)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	cache := expirable.NewLRU[string, tenancy.Resolution](128, nil, time.Minute)
	resolver := tenancy.NewResolver(store, cache, "global", logger, nil)
	return store, NewTenantMiddleware(resolver, logger)
}

func addTenant(t *testing.T, store *tenancy.Store, slug, hostname string) *tenancy.Workspace {
	t.Helper()
	ctx := context.Background()
	ws := &tenancy.Workspace{Slug: slug, Name: slug}
	if err := store.CreateWorkspace(ctx, ws); err != nil {
		t.Fatalf("CreateWorkspace failed: %v", err)
	}
	if hostname != "" {
		if _, err := store.AddDomain(ctx, ws.ID, hostname, false); err != nil {
			t.Fatalf("AddDomain failed: %v", err)
		}
	}
	return ws
}

func TestTenantMiddleware_ResolvesHost(t *testing.T) {
	store, tm := setupTenantTest(t)
	ws := addTenant(t, store, "kidssite", "kidssite.org")

	var got *tenancy.Resolution
	handler := tm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetTenant(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "www.KidsSite.org:443"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got == nil {
		t.Fatal("Expected a tenant resolution in context")
	}
	if got.Outcome != tenancy.OutcomeActive || got.Workspace == nil || got.Workspace.ID != ws.ID {
		t.Errorf("Unexpected resolution: %+v", got)
	}
}

func TestTenantMiddleware_RequireActiveTenant(t *testing.T) {
	store, tm := setupTenantTest(t)
	ws := addTenant(t, store, "kidssite", "kidssite.org")
	if err := store.SetWorkspaceStatus(context.Background(), ws.ID, tenancy.WorkspaceDisabled); err != nil {
		t.Fatalf("SetWorkspaceStatus failed: %v", err)
	}

	ran := false
	handler := tm.Handler(tm.RequireActiveTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	})))

	// Disabled tenant: 503, no fallback to the default workspace
	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "kidssite.org"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for disabled tenant, got %d", rec.Code)
	}
	if ran {
		t.Error("Handler should not run for a disabled tenant")
	}

	// Unmapped host with no default workspace: also 503
	req = httptest.NewRequest("GET", "/", nil)
	req.Host = "unknown.example.com"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for unresolvable host, got %d", rec.Code)
	}
}

func TestTenantMiddleware_FallbackServes(t *testing.T) {
	store, tm := setupTenantTest(t)
	addTenant(t, store, "global", "")

	var got *tenancy.Resolution
	handler := tm.Handler(tm.RequireActiveTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetTenant(r)
	})))

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "preview.internal"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 via fallback, got %d", rec.Code)
	}
	if got == nil || !got.Fallback || got.Workspace.Slug != "global" {
		t.Errorf("Expected default workspace fallback, got %+v", got)
	}
}
