package content

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/haven/pkg/audit"
	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/middleware"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Handlers provides HTTP handlers for content administration and the
// public, gated read path
type Handlers struct {
	store       *Store
	gate        *Gate
	auditLogger audit.Logger
}

// NewHandlers creates new content handlers
func NewHandlers(store *Store, gate *Gate, auditLogger audit.Logger) *Handlers {
	return &Handlers{
		store:       store,
		gate:        gate,
		auditLogger: auditLogger,
	}
}

// RegisterRoutes registers the admin content routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces/{id}/items", h.CreateItem).Methods("POST")
	router.HandleFunc("/workspaces/{id}/items", h.ListItems).Methods("GET")
	router.HandleFunc("/items/{id}", h.GetItem).Methods("GET")
	router.HandleFunc("/items/{id}", h.UpdateItem).Methods("PUT")
	router.HandleFunc("/items/{id}", h.DeleteItem).Methods("DELETE")
}

// RegisterPublicRoutes registers the tenant-scoped read path. These
// routes expect the tenant middleware to have resolved the workspace.
func (h *Handlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/content/{kind}/{slug}", h.ViewItem).Methods("GET")
	router.HandleFunc("/content/{kind}", h.BrowseItems).Methods("GET")
}

// CreateItem creates a content item in a workspace
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := mux.Vars(r)["id"]

	var req struct {
		Kind        string `json:"kind"`
		Slug        string `json:"slug"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Access      string `json:"access"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !ItemKind(req.Kind).IsValid() {
		httputil.WriteBadRequest(w, "kind must be one of article, blog, video, course")
		return
	}
	if !slugPattern.MatchString(req.Slug) {
		httputil.WriteBadRequest(w, "slug must be lowercase letters, digits and hyphens")
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}
	switch AccessLevel(req.Access) {
	case AccessFree, AccessPremium, "":
	default:
		httputil.WriteBadRequest(w, "access must be free or premium")
		return
	}

	item := &Item{
		WorkspaceID: workspaceID,
		Kind:        ItemKind(req.Kind),
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Access:      AccessLevel(req.Access),
	}
	if err := h.store.CreateItem(ctx, item); err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			httputil.WriteConflict(w, "slug already in use in this workspace")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeContentCreate, contextkeys.UserID(ctx), workspaceID, audit.ResourceTypeItem, item.ID, "created "+string(item.Kind)+" "+item.Slug)

	httputil.WriteCreated(w, item)
}

// ListItems lists a workspace's items with optional filters
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	filter := ListItemsFilter{
		Kind:   ItemKind(httputil.QueryParam(r, "kind", "")),
		Access: AccessLevel(httputil.QueryParam(r, "access", "")),
		Status: ItemStatus(httputil.QueryParam(r, "status", "")),
	}

	items, err := h.store.ListItems(r.Context(), mux.Vars(r)["id"], filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httputil.WriteSuccess(w, items)
}

// GetItem retrieves an item by ID
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			httputil.WriteNotFoundError(w, "item not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// UpdateItem modifies an item's title, description, access and status
func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	item, err := h.store.GetItem(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			httputil.WriteNotFoundError(w, "item not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Access      string `json:"access"`
		Status      string `json:"status"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Title != "" {
		item.Title = req.Title
	}
	if req.Description != "" {
		item.Description = req.Description
	}
	if req.Access != "" {
		switch AccessLevel(req.Access) {
		case AccessFree, AccessPremium:
			item.Access = AccessLevel(req.Access)
		default:
			httputil.WriteBadRequest(w, "access must be free or premium")
			return
		}
	}
	if req.Status != "" {
		switch ItemStatus(req.Status) {
		case StatusDraft, StatusPublished, StatusArchived:
			item.Status = ItemStatus(req.Status)
		default:
			httputil.WriteBadRequest(w, "status must be draft, published or archived")
			return
		}
	}

	if err := h.store.UpdateItem(ctx, item); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeContentUpdate, contextkeys.UserID(ctx), item.WorkspaceID, audit.ResourceTypeItem, item.ID, "updated "+string(item.Kind)+" "+item.Slug)

	httputil.WriteSuccess(w, item)
}

// DeleteItem removes an item
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID := mux.Vars(r)["id"]

	item, err := h.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			httputil.WriteNotFoundError(w, "item not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if err := h.store.DeleteItem(ctx, itemID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeContentDelete, contextkeys.UserID(ctx), item.WorkspaceID, audit.ResourceTypeItem, itemID, "deleted "+string(item.Kind)+" "+item.Slug)

	httputil.WriteNoContent(w)
}

// ViewItem serves one published item through the access gate. Premium
// items answer with an upsell payload instead of content when the
// viewer lacks an entitlement.
func (h *Handlers) ViewItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	tenant := middleware.GetTenant(r)
	if tenant == nil || tenant.Workspace == nil {
		httputil.WriteServiceUnavailable(w, "site unavailable")
		return
	}

	kind := ItemKind(vars["kind"])
	if !kind.IsValid() {
		httputil.WriteNotFoundError(w, "item not found")
		return
	}

	item, err := h.store.GetItemBySlug(ctx, tenant.Workspace.ID, vars["slug"])
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			httputil.WriteNotFoundError(w, "item not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	if item.Kind != kind || !item.IsPublished() {
		httputil.WriteNotFoundError(w, "item not found")
		return
	}

	if !h.gate.CanAccess(ctx, contextkeys.UserID(ctx), item) {
		httputil.WriteJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":  "subscription_required",
			"item":   map[string]string{"kind": string(item.Kind), "slug": item.Slug, "title": item.Title},
			"upsell": true,
		})
		return
	}

	httputil.WriteSuccess(w, item)
}

// BrowseItems lists published items of one kind for the tenant. The
// listing itself is public, locked premium items are flagged so the
// front end can badge them.
func (h *Handlers) BrowseItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant := middleware.GetTenant(r)
	if tenant == nil || tenant.Workspace == nil {
		httputil.WriteServiceUnavailable(w, "site unavailable")
		return
	}

	kind := ItemKind(mux.Vars(r)["kind"])
	if !kind.IsValid() {
		httputil.WriteNotFoundError(w, "unknown content kind")
		return
	}

	items, err := h.store.ListItems(ctx, tenant.Workspace.ID, ListItemsFilter{Kind: kind, Status: StatusPublished})
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	userID := contextkeys.UserID(ctx)
	type listing struct {
		Item
		Locked bool `json:"locked"`
	}
	listings := make([]listing, 0, len(items))
	for i := range items {
		listings = append(listings, listing{
			Item:   items[i],
			Locked: !h.gate.CanAccess(ctx, userID, &items[i]),
		})
	}
	httputil.WriteSuccess(w, listings)
}
