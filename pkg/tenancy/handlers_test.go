package tenancy

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/haven/pkg/audit"
)

func setupTestHandlers(t *testing.T) (*Store, *Resolver, *mux.Router) {
	t.Helper()
	db := setupTestDB(t)
	store := NewStore(db)
	resolver := newTestResolver(t, store)

	handlers := NewHandlers(store, resolver, audit.NopLogger{})
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	return store, resolver, router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_CreateWorkspace(t *testing.T) {
	_, _, router := setupTestHandlers(t)

	rec := doJSON(t, router, "POST", "/workspaces", map[string]interface{}{
		"slug": "kidssite",
		"name": "Kids Site",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var ws Workspace
	if err := json.Unmarshal(rec.Body.Bytes(), &ws); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if ws.ID == "" || ws.Slug != "kidssite" || ws.Status != WorkspaceActive {
		t.Errorf("Unexpected workspace in response: %+v", ws)
	}

	// Duplicate slugs conflict
	rec = doJSON(t, router, "POST", "/workspaces", map[string]interface{}{
		"slug": "kidssite",
		"name": "Other",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate slug, got %d", rec.Code)
	}
}

func TestHandlers_CreateWorkspaceValidation(t *testing.T) {
	_, _, router := setupTestHandlers(t)

	cases := []map[string]interface{}{
		{"slug": "Kids Site", "name": "Kids Site"},
		{"slug": "-kids", "name": "Kids Site"},
		{"slug": "", "name": "Kids Site"},
		{"slug": "kidssite", "name": ""},
	}
	for _, body := range cases {
		rec := doJSON(t, router, "POST", "/workspaces", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %v, got %d", body, rec.Code)
		}
	}
}

func TestHandlers_UpdateWorkspaceKeepsSlug(t *testing.T) {
	store, _, router := setupTestHandlers(t)
	ws := mustCreateWorkspace(t, store, "kidssite")

	rec := doJSON(t, router, "PUT", "/workspaces/"+ws.ID, map[string]interface{}{
		"name":        "Kids Network",
		"description": "Family streaming",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated Workspace
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if updated.Slug != "kidssite" {
		t.Errorf("Slug must stay immutable, got %q", updated.Slug)
	}
	if updated.Name != "Kids Network" {
		t.Errorf("Unexpected name %q", updated.Name)
	}
}

func TestHandlers_DisableWorkspaceChangesResolution(t *testing.T) {
	store, _, router := setupTestHandlers(t)
	ws := mustCreateWorkspace(t, store, "kidssite")

	rec := doJSON(t, router, "POST", "/workspaces/"+ws.ID+"/domains", map[string]interface{}{
		"hostname": "kidssite.org",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Warm the resolver cache, then disable through the handler
	rec = doJSON(t, router, "GET", "/resolve?host=kidssite.org", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/workspaces/"+ws.ID+"/disable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// The handler flushes the cache, so resolution sees the new status
	rec = doJSON(t, router, "GET", "/resolve?host=kidssite.org", nil)
	var res Resolution
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to decode resolution: %v", err)
	}
	if res.Outcome != OutcomeDisabled {
		t.Errorf("Expected disabled outcome after disabling, got %s", res.Outcome)
	}

	rec = doJSON(t, router, "POST", "/workspaces/"+ws.ID+"/enable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestHandlers_AddDomain(t *testing.T) {
	store, _, router := setupTestHandlers(t)
	ws := mustCreateWorkspace(t, store, "kidssite")

	rec := doJSON(t, router, "POST", "/workspaces/"+ws.ID+"/domains", map[string]interface{}{
		"hostname": "WWW.KidsSite.org:443",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var domain Domain
	if err := json.Unmarshal(rec.Body.Bytes(), &domain); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if domain.Hostname != "kidssite.org" {
		t.Errorf("Hostname should be normalized, got %q", domain.Hostname)
	}
	if !domain.IsPrimary {
		t.Error("First domain should be primary")
	}

	rec = doJSON(t, router, "POST", "/workspaces/"+ws.ID+"/domains", map[string]interface{}{
		"hostname": "kidssite.org",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate hostname, got %d", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/workspaces/"+ws.ID+"/domains", map[string]interface{}{
		"hostname": ":443",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty hostname, got %d", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/workspaces/missing/domains", map[string]interface{}{
		"hostname": "other.example.com",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown workspace, got %d", rec.Code)
	}
}

func TestHandlers_DomainLifecycle(t *testing.T) {
	store, _, router := setupTestHandlers(t)
	ws := mustCreateWorkspace(t, store, "kidssite")

	var a, b Domain
	rec := doJSON(t, router, "POST", "/workspaces/"+ws.ID+"/domains", map[string]interface{}{"hostname": "a.example.com"})
	json.Unmarshal(rec.Body.Bytes(), &a)
	rec = doJSON(t, router, "POST", "/workspaces/"+ws.ID+"/domains", map[string]interface{}{"hostname": "b.example.com"})
	json.Unmarshal(rec.Body.Bytes(), &b)

	rec = doJSON(t, router, "POST", "/domains/"+b.ID+"/primary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var promoted Domain
	if err := json.Unmarshal(rec.Body.Bytes(), &promoted); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !promoted.IsPrimary {
		t.Error("Promoted domain should be primary")
	}

	rec = doJSON(t, router, "GET", "/workspaces/"+ws.ID+"/domains", nil)
	var domains []Domain
	if err := json.Unmarshal(rec.Body.Bytes(), &domains); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(domains) != 2 || domains[0].ID != b.ID {
		t.Errorf("Expected primary domain listed first, got %+v", domains)
	}

	rec = doJSON(t, router, "DELETE", "/domains/"+b.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, router, "DELETE", "/domains/"+b.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for already deleted domain, got %d", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/workspaces/"+ws.ID+"/domains", nil)
	domains = nil
	json.Unmarshal(rec.Body.Bytes(), &domains)
	if len(domains) != 1 || !domains[0].IsPrimary {
		t.Errorf("Remaining domain should have been promoted, got %+v", domains)
	}
}

func TestHandlers_ResolveUnmappedHostname(t *testing.T) {
	store, _, router := setupTestHandlers(t)
	mustCreateWorkspace(t, store, "global")

	rec := doJSON(t, router, "GET", "/resolve?host=preview.internal", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var res Resolution
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to decode resolution: %v", err)
	}
	if res.Outcome != OutcomeActive || !res.Fallback {
		t.Errorf("Expected active fallback resolution, got %+v", res)
	}
	if res.Workspace == nil || res.Workspace.Slug != "global" {
		t.Error("Expected the default workspace in the resolution")
	}
}

func TestHandlers_WorkspaceLanguageConfig(t *testing.T) {
	_, _, router := setupTestHandlers(t)

	rec := doJSON(t, router, "POST", "/workspaces", map[string]interface{}{
		"slug":                   "kidssite",
		"name":                   "Kids Site",
		"enabled_languages":      []string{"ar", "fr"},
		"default_language":       "ar",
		"hide_language_switcher": true,
		"theme_override":         map[string]string{"accent_color": "262 83% 58%", "logo_url": "https://cdn.example.com/kids.svg"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var ws Workspace
	if err := json.Unmarshal(rec.Body.Bytes(), &ws); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !languagesEqual(ws.EnabledLanguages, []Language{LangEnglish, LangArabic, LangFrench}) {
		t.Errorf("Unexpected enabled languages: %v", ws.EnabledLanguages)
	}
	if ws.DefaultLanguage != LangArabic || !ws.HideLanguageSwitcher {
		t.Errorf("Language settings did not apply: %+v", ws)
	}
	if ws.Theme == nil || ws.Theme.LogoURL != "https://cdn.example.com/kids.svg" {
		t.Errorf("Theme did not apply: %+v", ws.Theme)
	}

	// Unknown language codes are rejected
	rec = doJSON(t, router, "POST", "/workspaces", map[string]interface{}{
		"slug":              "othersite",
		"name":              "Other",
		"enabled_languages": []string{"xx"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown language, got %d", rec.Code)
	}

	// Updates can change the language configuration
	rec = doJSON(t, router, "PUT", "/workspaces/"+ws.ID, map[string]interface{}{
		"name":              ws.Name,
		"enabled_languages": []string{"en", "es"},
		"default_language":  "es",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated Workspace
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !languagesEqual(updated.EnabledLanguages, []Language{LangEnglish, LangSpanish}) || updated.DefaultLanguage != LangSpanish {
		t.Errorf("Update did not apply language settings: %+v", updated)
	}
}

func TestHandlers_ListWorkspacesPublicFilter(t *testing.T) {
	store, _, router := setupTestHandlers(t)
	mustCreateWorkspace(t, store, "active-site")
	hidden := mustCreateWorkspace(t, store, "hidden-site")

	rec := doJSON(t, router, "POST", "/workspaces/"+hidden.ID+"/disable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Disable failed: %d", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/workspaces?public=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var public []Workspace
	if err := json.Unmarshal(rec.Body.Bytes(), &public); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(public) != 1 || public[0].Slug != "active-site" {
		t.Errorf("Expected only the active workspace, got %+v", public)
	}

	rec = doJSON(t, router, "GET", "/workspaces", nil)
	var all []Workspace
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected both workspaces without the filter, got %d", len(all))
	}
}
