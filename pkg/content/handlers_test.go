package content

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/haven/pkg/audit"
	"github.com/platinummonkey/haven/pkg/billing"
	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/tenancy"
)

type testEnv struct {
	store   *Store
	billing *billing.Store
	router  *mux.Router
}

func setupTestHandlers(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	store := NewStore(db)

	// The gate helper carries its own database for roles and billing;
	// items live on this one.
	_, billingStore, gate := setupGateTest(t)

	handlers := NewHandlers(store, gate, audit.NopLogger{})
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	handlers.RegisterPublicRoutes(router)

	return &testEnv{store: store, billing: billingStore, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, ctxFns ...func(context.Context) context.Context) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	ctx := req.Context()
	for _, fn := range ctxFns {
		ctx = fn(ctx)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func withTenant(workspaceID string) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context {
		return contextkeys.WithTenant(ctx, &tenancy.Resolution{
			Hostname:  "test.example.com",
			Workspace: &tenancy.Workspace{ID: workspaceID, Slug: "test", Status: tenancy.WorkspaceActive},
			Outcome:   tenancy.OutcomeActive,
		})
	}
}

func withUser(userID string) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context {
		return contextkeys.WithUserID(ctx, userID)
	}
}

func TestHandlers_CreateItem(t *testing.T) {
	env := setupTestHandlers(t)

	rec := env.do(t, "POST", "/workspaces/ws-1/items", map[string]interface{}{
		"kind":   "video",
		"slug":   "intro-lesson",
		"title":  "Intro Lesson",
		"access": "premium",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var item Item
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if item.WorkspaceID != "ws-1" || item.Kind != KindVideo || item.Access != AccessPremium {
		t.Errorf("Unexpected item: %+v", item)
	}

	// Duplicate slug conflicts
	rec = env.do(t, "POST", "/workspaces/ws-1/items", map[string]interface{}{
		"kind": "article", "slug": "intro-lesson", "title": "Other",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate slug, got %d", rec.Code)
	}

	// Validation
	bad := []map[string]interface{}{
		{"kind": "podcast", "slug": "x", "title": "X"},
		{"kind": "video", "slug": "Bad Slug", "title": "X"},
		{"kind": "video", "slug": "x", "title": ""},
		{"kind": "video", "slug": "x", "title": "X", "access": "vip"},
	}
	for _, body := range bad {
		rec = env.do(t, "POST", "/workspaces/ws-1/items", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %v, got %d", body, rec.Code)
		}
	}
}

func TestHandlers_UpdateAndDeleteItem(t *testing.T) {
	env := setupTestHandlers(t)

	item := mustCreateItem(t, env.store, &Item{WorkspaceID: "ws-1", Kind: KindArticle, Slug: "welcome", Title: "Welcome"})

	rec := env.do(t, "PUT", "/items/"+item.ID, map[string]interface{}{
		"status": "published",
		"access": "premium",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated Item
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if !updated.IsPublished() || updated.Access != AccessPremium {
		t.Errorf("Update not applied: %+v", updated)
	}

	rec = env.do(t, "PUT", "/items/"+item.ID, map[string]interface{}{"status": "live"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad status, got %d", rec.Code)
	}

	rec = env.do(t, "DELETE", "/items/"+item.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	rec = env.do(t, "DELETE", "/items/"+item.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing item, got %d", rec.Code)
	}
}

func TestHandlers_ViewItemGating(t *testing.T) {
	env := setupTestHandlers(t)

	mustCreateItem(t, env.store, &Item{WorkspaceID: "ws-1", Kind: KindArticle, Slug: "free-read", Title: "Free", Status: StatusPublished})
	premium := mustCreateItem(t, env.store, &Item{WorkspaceID: "ws-1", Kind: KindVideo, Slug: "paid-video", Title: "Paid", Access: AccessPremium, Status: StatusPublished})
	mustCreateItem(t, env.store, &Item{WorkspaceID: "ws-1", Kind: KindVideo, Slug: "draft-video", Title: "Draft", Status: StatusDraft})

	// Free item, anonymous viewer
	rec := env.do(t, "GET", "/content/article/free-read", nil, withTenant("ws-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for free item, got %d: %s", rec.Code, rec.Body.String())
	}

	// Premium item, anonymous viewer: upsell payload
	rec = env.do(t, "GET", "/content/video/paid-video", nil, withTenant("ws-1"))
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected 402 for anonymous premium view, got %d", rec.Code)
	}
	var upsell map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &upsell); err != nil {
		t.Fatalf("Failed to decode upsell payload: %v", err)
	}
	if upsell["error"] != "subscription_required" || upsell["upsell"] != true {
		t.Errorf("Unexpected upsell payload: %v", upsell)
	}

	// Premium item, subscribed viewer
	plan := createPlan(t, env.billing, &billing.Plan{Name: "All Access"})
	subscribe(t, env.billing, "user-1", plan.ID)
	rec = env.do(t, "GET", "/content/video/paid-video", nil, withTenant("ws-1"), withUser("user-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for subscribed viewer, got %d: %s", rec.Code, rec.Body.String())
	}
	var got Item
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ID != premium.ID {
		t.Errorf("Expected the premium item, got %+v", got)
	}

	// Drafts and kind mismatches are invisible
	rec = env.do(t, "GET", "/content/video/draft-video", nil, withTenant("ws-1"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for draft item, got %d", rec.Code)
	}
	rec = env.do(t, "GET", "/content/article/paid-video", nil, withTenant("ws-1"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for kind mismatch, got %d", rec.Code)
	}

	// No resolved tenant: unavailable
	rec = env.do(t, "GET", "/content/article/free-read", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a tenant, got %d", rec.Code)
	}
}

func TestHandlers_BrowseItemsFlagsLocked(t *testing.T) {
	env := setupTestHandlers(t)

	mustCreateItem(t, env.store, &Item{WorkspaceID: "ws-1", Kind: KindVideo, Slug: "free-video", Title: "Free", Status: StatusPublished})
	mustCreateItem(t, env.store, &Item{WorkspaceID: "ws-1", Kind: KindVideo, Slug: "paid-video", Title: "Paid", Access: AccessPremium, Status: StatusPublished})

	rec := env.do(t, "GET", "/content/video", nil, withTenant("ws-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var listings []struct {
		Item
		Locked bool `json:"locked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listings); err != nil {
		t.Fatalf("Failed to decode listings: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("Expected 2 listings, got %d", len(listings))
	}

	locked := map[string]bool{}
	for _, l := range listings {
		locked[l.Slug] = l.Locked
	}
	if locked["free-video"] {
		t.Error("Free items should not be locked")
	}
	if !locked["paid-video"] {
		t.Error("Premium items should be locked for anonymous viewers")
	}
}
