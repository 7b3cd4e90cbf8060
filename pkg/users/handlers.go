package users

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/haven/pkg/audit"
	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
)

// Handlers provides HTTP handlers for account management
type Handlers struct {
	store       *Store
	auditLogger audit.Logger
}

// NewHandlers creates new user handlers
func NewHandlers(store *Store, auditLogger audit.Logger) *Handlers {
	return &Handlers{store: store, auditLogger: auditLogger}
}

// RegisterRoutes registers all user routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.CreateUser).Methods("POST")
	router.HandleFunc("/users", h.ListUsers).Methods("GET")
	router.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	router.HandleFunc("/users/{id}", h.UpdateUser).Methods("PUT")
	router.HandleFunc("/users/{id}/disable", h.DisableUser).Methods("POST")
	router.HandleFunc("/users/{id}/enable", h.EnableUser).Methods("POST")
}

// CreateUser registers a new account
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !strings.Contains(req.Email, "@") {
		httputil.WriteBadRequest(w, "a valid email is required")
		return
	}

	user := &User{Email: req.Email, DisplayName: req.DisplayName}
	if err := h.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			httputil.WriteConflict(w, "email already registered")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeUserCreate, contextkeys.UserID(ctx), "", audit.ResourceTypeUser, user.ID, "created user "+user.Email)

	httputil.WriteCreated(w, user)
}

// ListUsers lists accounts with limit/offset paging
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(httputil.QueryParam(r, "limit", "100"))
	offset, _ := strconv.Atoi(httputil.QueryParam(r, "offset", "0"))

	list, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if list == nil {
		list = []User{}
	}

	httputil.WriteSuccess(w, list)
}

// GetUser retrieves an account by ID
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.WriteNotFoundError(w, "user not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, user)
}

// UpdateUser modifies an account's email or display name
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.store.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.WriteNotFoundError(w, "user not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Email != "" {
		if !strings.Contains(req.Email, "@") {
			httputil.WriteBadRequest(w, "a valid email is required")
			return
		}
		user.Email = req.Email
	}
	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}

	if err := h.store.Update(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			httputil.WriteConflict(w, "email already registered")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, user)
}

// DisableUser blocks an account from authenticating
func (h *Handlers) DisableUser(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusDisabled)
}

// EnableUser reactivates a disabled account
func (h *Handlers) EnableUser(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusActive)
}

func (h *Handlers) setStatus(w http.ResponseWriter, r *http.Request, status Status) {
	ctx := r.Context()
	userID := mux.Vars(r)["id"]

	eventType := audit.EventTypeUserEnable
	if status == StatusDisabled {
		eventType = audit.EventTypeUserDisable
	}

	if err := h.store.SetStatus(ctx, userID, status); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.WriteNotFoundError(w, "user not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, eventType, contextkeys.UserID(ctx), "", audit.ResourceTypeUser, userID, "set user status to "+string(status))

	httputil.WriteSuccess(w, map[string]string{"id": userID, "status": string(status)})
}
