package rbac

import (
	"net/http"

	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/middleware"
)

// PermissionMiddleware guards admin routes with permission checks
type PermissionMiddleware struct {
	checker Checker
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(checker Checker) *PermissionMiddleware {
	return &PermissionMiddleware{checker: checker}
}

// RequirePermission creates middleware requiring a permission in the
// request's resolved workspace. Anonymous requests get 401, authenticated
// requests without the permission get 403.
func (pm *PermissionMiddleware) RequirePermission(permission Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := contextkeys.UserID(r.Context())
			if userID == "" {
				httputil.WriteUnauthorized(w, "Authentication required")
				return
			}

			resolution := middleware.GetTenant(r)
			if resolution == nil || resolution.Workspace == nil {
				httputil.WriteServiceUnavailable(w, "No workspace resolved for this request")
				return
			}

			if !pm.checker.HasPermission(r.Context(), userID, resolution.Workspace.ID, permission) {
				httputil.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin creates middleware restricted to super admins
func (pm *PermissionMiddleware) RequireSuperAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := contextkeys.UserID(r.Context())
			if userID == "" {
				httputil.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !pm.checker.IsSuperAdmin(r.Context(), userID) {
				httputil.WriteForbidden(w, "Super admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
