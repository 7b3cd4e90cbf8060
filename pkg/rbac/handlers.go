package rbac

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/haven/pkg/audit"
	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
)

// Handlers provides HTTP handlers for role and assignment management
type Handlers struct {
	store       *Store
	checker     Checker
	auditLogger audit.Logger
}

// NewHandlers creates new RBAC handlers
func NewHandlers(store *Store, checker Checker, auditLogger audit.Logger) *Handlers {
	return &Handlers{
		store:       store,
		checker:     checker,
		auditLogger: auditLogger,
	}
}

// RegisterRoutes registers all RBAC routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/rbac/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/rbac/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/rbac/roles/{id}", h.GetRole).Methods("GET")
	router.HandleFunc("/rbac/roles/{id}", h.UpdateRole).Methods("PUT")

	router.HandleFunc("/rbac/workspaces/{workspace_id}/users/{user_id}/role", h.SetWorkspaceRole).Methods("PUT")
	router.HandleFunc("/rbac/users/{id}/assignments", h.ListUserAssignments).Methods("GET")
	router.HandleFunc("/rbac/users/{id}/permissions", h.GetUserPermissions).Methods("GET")
	router.HandleFunc("/rbac/assignments/{id}/disable", h.DisableAssignment).Methods("POST")
	router.HandleFunc("/rbac/assignments/{id}/enable", h.EnableAssignment).Methods("POST")
}

// CreateRole creates a new custom role
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name        string       `json:"name"`
		DisplayName string       `json:"display_name"`
		Description string       `json:"description"`
		Permissions []Permission `json:"permissions"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Name == "" || req.DisplayName == "" {
		httputil.WriteBadRequest(w, "name and display_name are required")
		return
	}
	for _, p := range req.Permissions {
		if !p.IsValid() {
			httputil.WriteBadRequest(w, "unknown permission: "+string(p))
			return
		}
	}

	role := &Role{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Permissions: req.Permissions,
	}
	if role.Permissions == nil {
		role.Permissions = []Permission{}
	}

	if err := h.store.CreateRole(ctx, role); err != nil {
		if isUniqueViolation(err) {
			httputil.WriteConflict(w, "role name already exists")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeRoleUpdate, contextkeys.UserID(ctx), "", audit.ResourceTypeRole, role.ID, "created role "+role.Name)

	httputil.WriteCreated(w, role)
}

// ListRoles lists all roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// GetRole retrieves a role by ID
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID := mux.Vars(r)["id"]

	role, err := h.store.GetRole(r.Context(), roleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			httputil.WriteNotFoundError(w, "role not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, role)
}

// UpdateRole updates a custom role's display name, description and
// permissions. Built-in roles cannot be modified.
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleID := mux.Vars(r)["id"]

	role, err := h.store.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			httputil.WriteNotFoundError(w, "role not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if role.IsBuiltIn {
		httputil.WriteForbidden(w, "built-in roles cannot be modified")
		return
	}

	var req struct {
		DisplayName string       `json:"display_name"`
		Description string       `json:"description"`
		Permissions []Permission `json:"permissions"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	for _, p := range req.Permissions {
		if !p.IsValid() {
			httputil.WriteBadRequest(w, "unknown permission: "+string(p))
			return
		}
	}

	if req.DisplayName != "" {
		role.DisplayName = req.DisplayName
	}
	role.Description = req.Description
	if req.Permissions != nil {
		role.Permissions = req.Permissions
	}

	if err := h.store.UpdateRole(ctx, role); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeRoleUpdate, contextkeys.UserID(ctx), "", audit.ResourceTypeRole, role.ID, "updated role "+role.Name)

	httputil.WriteSuccess(w, role)
}

// SetWorkspaceRole assigns a role to a user within a workspace,
// replacing any existing active assignment there
func (h *Handlers) SetWorkspaceRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	workspaceID := vars["workspace_id"]
	userID := vars["user_id"]

	var req struct {
		RoleID string `json:"role_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.RoleID == "" {
		httputil.WriteBadRequest(w, "role_id is required")
		return
	}

	assignment, err := h.store.SetWorkspaceRole(ctx, userID, workspaceID, req.RoleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			httputil.WriteNotFoundError(w, "role not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.checker.InvalidateUser(userID)
	h.auditLogger.LogChange(ctx, audit.EventTypeRoleAssign, contextkeys.UserID(ctx), workspaceID, audit.ResourceTypeAssignment, assignment.ID, "assigned role to user "+userID)

	httputil.WriteSuccess(w, assignment)
}

// ListUserAssignments lists all of a user's assignments
func (h *Handlers) ListUserAssignments(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	assignments, err := h.store.ListUserAssignments(r.Context(), userID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if assignments == nil {
		assignments = []Assignment{}
	}

	httputil.WriteSuccess(w, assignments)
}

// GetUserPermissions reports the user's effective permissions in a
// workspace, plus their super admin standing
func (h *Handlers) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mux.Vars(r)["id"]

	workspaceID := httputil.QueryParam(r, "workspace_id", "")
	if workspaceID == "" {
		httputil.WriteBadRequest(w, "workspace_id query parameter is required")
		return
	}

	permissions := []Permission{}
	for _, p := range AllPermissions() {
		if h.checker.HasPermission(ctx, userID, workspaceID, p) {
			permissions = append(permissions, p)
		}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id":      userID,
		"workspace_id": workspaceID,
		"permissions":  permissions,
		"super_admin":  h.checker.IsSuperAdmin(ctx, userID),
	})
}

// DisableAssignment disables an assignment without deleting it
func (h *Handlers) DisableAssignment(w http.ResponseWriter, r *http.Request) {
	h.setAssignmentStatus(w, r, AssignmentDisabled, audit.EventTypeRoleDisable)
}

// EnableAssignment re-enables a disabled assignment. Returns 409 when
// the user already holds an active role in the same workspace.
func (h *Handlers) EnableAssignment(w http.ResponseWriter, r *http.Request) {
	h.setAssignmentStatus(w, r, AssignmentActive, audit.EventTypeRoleEnable)
}

func (h *Handlers) setAssignmentStatus(w http.ResponseWriter, r *http.Request, status AssignmentStatus, eventType audit.EventType) {
	ctx := r.Context()
	assignmentID := mux.Vars(r)["id"]

	assignment, err := h.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			httputil.WriteNotFoundError(w, "assignment not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if err := h.store.SetAssignmentStatus(ctx, assignmentID, status); err != nil {
		if errors.Is(err, ErrActiveAssignmentExists) {
			httputil.WriteConflict(w, "user already has an active role in this workspace")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.checker.InvalidateUser(assignment.UserID)
	h.auditLogger.LogChange(ctx, eventType, contextkeys.UserID(ctx), assignment.WorkspaceID, audit.ResourceTypeAssignment, assignmentID, "set assignment status to "+string(status))

	assignment.Status = status
	httputil.WriteSuccess(w, assignment)
}
