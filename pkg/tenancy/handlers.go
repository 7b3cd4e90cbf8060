package tenancy

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/haven/pkg/audit"
	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// validateLanguages rejects unknown language codes before the store
// normalizes the set
func validateLanguages(enabled []Language, def Language) string {
	for _, l := range enabled {
		if !l.IsValid() {
			return "unknown language code: " + string(l)
		}
	}
	if def != "" && !def.IsValid() {
		return "unknown language code: " + string(def)
	}
	return ""
}

// Handlers provides HTTP handlers for workspace and domain management
type Handlers struct {
	store       *Store
	resolver    *Resolver
	auditLogger audit.Logger
}

// NewHandlers creates new tenancy handlers
func NewHandlers(store *Store, resolver *Resolver, auditLogger audit.Logger) *Handlers {
	return &Handlers{
		store:       store,
		resolver:    resolver,
		auditLogger: auditLogger,
	}
}

// RegisterRoutes registers all tenancy routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces", h.CreateWorkspace).Methods("POST")
	router.HandleFunc("/workspaces", h.ListWorkspaces).Methods("GET")
	router.HandleFunc("/workspaces/{id}", h.GetWorkspace).Methods("GET")
	router.HandleFunc("/workspaces/{id}", h.UpdateWorkspace).Methods("PUT")
	router.HandleFunc("/workspaces/{id}/disable", h.DisableWorkspace).Methods("POST")
	router.HandleFunc("/workspaces/{id}/enable", h.EnableWorkspace).Methods("POST")

	router.HandleFunc("/workspaces/{id}/domains", h.AddDomain).Methods("POST")
	router.HandleFunc("/workspaces/{id}/domains", h.ListDomains).Methods("GET")
	router.HandleFunc("/domains/{id}", h.DeleteDomain).Methods("DELETE")
	router.HandleFunc("/domains/{id}/primary", h.SetPrimaryDomain).Methods("POST")

	router.HandleFunc("/resolve", h.ResolveHostname).Methods("GET")
}

// CreateWorkspace creates a new tenant workspace
func (h *Handlers) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Slug                 string         `json:"slug"`
		Name                 string         `json:"name"`
		Description          string         `json:"description"`
		EnabledLanguages     []Language     `json:"enabled_languages"`
		DefaultLanguage      Language       `json:"default_language"`
		HideLanguageSwitcher bool           `json:"hide_language_switcher"`
		Theme                *ThemeOverride `json:"theme_override"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !slugPattern.MatchString(req.Slug) {
		httputil.WriteBadRequest(w, "slug must be lowercase letters, digits and hyphens")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if msg := validateLanguages(req.EnabledLanguages, req.DefaultLanguage); msg != "" {
		httputil.WriteBadRequest(w, msg)
		return
	}

	ws := &Workspace{
		Slug:                 req.Slug,
		Name:                 req.Name,
		Description:          req.Description,
		EnabledLanguages:     req.EnabledLanguages,
		DefaultLanguage:      req.DefaultLanguage,
		HideLanguageSwitcher: req.HideLanguageSwitcher,
		Theme:                req.Theme,
	}
	if err := h.store.CreateWorkspace(ctx, ws); err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			httputil.WriteConflict(w, "workspace slug already in use")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.resolver.Flush()
	h.auditLogger.LogChange(ctx, audit.EventTypeWorkspaceCreate, contextkeys.UserID(ctx), ws.ID, audit.ResourceTypeWorkspace, ws.ID, "created workspace "+ws.Slug)

	httputil.WriteCreated(w, ws)
}

// ListWorkspaces lists workspaces. With ?public=true, disabled
// workspaces are omitted.
func (h *Handlers) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	publicOnly := httputil.QueryParam(r, "public", "") == "true"
	workspaces, err := h.store.ListWorkspaces(r.Context(), publicOnly)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if workspaces == nil {
		workspaces = []Workspace{}
	}
	httputil.WriteSuccess(w, workspaces)
}

// GetWorkspace retrieves a workspace by ID
func (h *Handlers) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := h.store.GetWorkspace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrWorkspaceNotFound) {
			httputil.WriteNotFoundError(w, "workspace not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, ws)
}

// UpdateWorkspace modifies a workspace's name and description. The slug
// is immutable once created.
func (h *Handlers) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ws, err := h.store.GetWorkspace(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrWorkspaceNotFound) {
			httputil.WriteNotFoundError(w, "workspace not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	var req struct {
		Name                 string         `json:"name"`
		Description          string         `json:"description"`
		EnabledLanguages     []Language     `json:"enabled_languages"`
		DefaultLanguage      Language       `json:"default_language"`
		HideLanguageSwitcher *bool          `json:"hide_language_switcher"`
		Theme                *ThemeOverride `json:"theme_override"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if msg := validateLanguages(req.EnabledLanguages, req.DefaultLanguage); msg != "" {
		httputil.WriteBadRequest(w, msg)
		return
	}

	if req.Name != "" {
		ws.Name = req.Name
	}
	ws.Description = req.Description
	if req.EnabledLanguages != nil {
		ws.EnabledLanguages = req.EnabledLanguages
	}
	if req.DefaultLanguage != "" {
		ws.DefaultLanguage = req.DefaultLanguage
	}
	if req.HideLanguageSwitcher != nil {
		ws.HideLanguageSwitcher = *req.HideLanguageSwitcher
	}
	if req.Theme != nil {
		ws.Theme = req.Theme
	}

	if err := h.store.UpdateWorkspace(ctx, ws); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.resolver.Flush()
	h.auditLogger.LogChange(ctx, audit.EventTypeWorkspaceUpdate, contextkeys.UserID(ctx), ws.ID, audit.ResourceTypeWorkspace, ws.ID, "updated workspace "+ws.Slug)

	httputil.WriteSuccess(w, ws)
}

// DisableWorkspace suspends a tenant. Its domains keep answering with
// the disabled state rather than falling back to the default workspace.
func (h *Handlers) DisableWorkspace(w http.ResponseWriter, r *http.Request) {
	h.setWorkspaceStatus(w, r, WorkspaceDisabled, audit.EventTypeWorkspaceDisable)
}

// EnableWorkspace reactivates a suspended tenant
func (h *Handlers) EnableWorkspace(w http.ResponseWriter, r *http.Request) {
	h.setWorkspaceStatus(w, r, WorkspaceActive, audit.EventTypeWorkspaceUpdate)
}

func (h *Handlers) setWorkspaceStatus(w http.ResponseWriter, r *http.Request, status WorkspaceStatus, eventType audit.EventType) {
	ctx := r.Context()
	workspaceID := mux.Vars(r)["id"]

	if err := h.store.SetWorkspaceStatus(ctx, workspaceID, status); err != nil {
		if errors.Is(err, ErrWorkspaceNotFound) {
			httputil.WriteNotFoundError(w, "workspace not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.resolver.Flush()
	h.auditLogger.LogChange(ctx, eventType, contextkeys.UserID(ctx), workspaceID, audit.ResourceTypeWorkspace, workspaceID, "set workspace status to "+string(status))

	httputil.WriteSuccess(w, map[string]string{"id": workspaceID, "status": string(status)})
}

// AddDomain maps a hostname to a workspace
func (h *Handlers) AddDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := mux.Vars(r)["id"]

	var req struct {
		Hostname string `json:"hostname"`
		Primary  bool   `json:"primary"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	domain, err := h.store.AddDomain(ctx, workspaceID, req.Hostname, req.Primary)
	if err != nil {
		switch {
		case errors.Is(err, ErrWorkspaceNotFound):
			httputil.WriteNotFoundError(w, "workspace not found")
		case errors.Is(err, ErrInvalidHostname):
			httputil.WriteBadRequest(w, "hostname is required")
		case errors.Is(err, ErrDuplicateHostname):
			httputil.WriteConflict(w, "hostname already mapped to a workspace")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	h.resolver.Flush()
	h.auditLogger.LogChange(ctx, audit.EventTypeDomainCreate, contextkeys.UserID(ctx), workspaceID, audit.ResourceTypeDomain, domain.ID, "mapped "+domain.Hostname)

	httputil.WriteCreated(w, domain)
}

// ListDomains lists a workspace's domains
func (h *Handlers) ListDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.store.ListDomains(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if domains == nil {
		domains = []Domain{}
	}
	httputil.WriteSuccess(w, domains)
}

// DeleteDomain removes a hostname mapping
func (h *Handlers) DeleteDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID := mux.Vars(r)["id"]

	domain, err := h.store.GetDomain(ctx, domainID)
	if err != nil {
		if errors.Is(err, ErrDomainNotFound) {
			httputil.WriteNotFoundError(w, "domain not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if err := h.store.DeleteDomain(ctx, domainID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.resolver.Flush()
	h.auditLogger.LogChange(ctx, audit.EventTypeDomainDelete, contextkeys.UserID(ctx), domain.WorkspaceID, audit.ResourceTypeDomain, domainID, "unmapped "+domain.Hostname)

	httputil.WriteNoContent(w)
}

// SetPrimaryDomain makes a domain its workspace's primary
func (h *Handlers) SetPrimaryDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID := mux.Vars(r)["id"]

	if err := h.store.SetPrimaryDomain(ctx, domainID); err != nil {
		if errors.Is(err, ErrDomainNotFound) {
			httputil.WriteNotFoundError(w, "domain not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	domain, err := h.store.GetDomain(ctx, domainID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeDomainSetPrimary, contextkeys.UserID(ctx), domain.WorkspaceID, audit.ResourceTypeDomain, domainID, "set primary "+domain.Hostname)

	httputil.WriteSuccess(w, domain)
}

// ResolveHostname resolves a hostname the way the tenant middleware
// would, for diagnostics
func (h *Handlers) ResolveHostname(w http.ResponseWriter, r *http.Request) {
	host := httputil.QueryParam(r, "host", r.Host)
	httputil.WriteSuccess(w, h.resolver.Resolve(r.Context(), host))
}
