package rbac

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/haven/pkg/observability"
)

// Checker evaluates workspace-scoped permissions. Implementations are
// total: a storage failure counts as a denial, never an error.
type Checker interface {
	// HasPermission reports whether the user holds the permission in the
	// given workspace. Anonymous users (empty userID) are always denied.
	HasPermission(ctx context.Context, userID, workspaceID string, permission Permission) bool

	// IsSuperAdmin reports whether the user holds the super admin role
	// actively in any workspace
	IsSuperAdmin(ctx context.Context, userID string) bool

	// UserWorkspaceIDs returns the workspaces where the user has any
	// active assignment
	UserWorkspaceIDs(ctx context.Context, userID string) []string

	// InvalidateUser drops cached grants for a user after their
	// assignments change
	InvalidateUser(userID string)
}

// PermissionChecker implements Checker backed by the RBAC store with an
// in-process TTL cache of each user's active grants
type PermissionChecker struct {
	store   *Store
	cache   *expirable.LRU[string, []Grant]
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewPermissionChecker creates a permission checker. The metrics
// argument may be nil.
func NewPermissionChecker(store *Store, cache *expirable.LRU[string, []Grant], logger *observability.Logger, metrics *observability.Metrics) *PermissionChecker {
	return &PermissionChecker{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

// grants returns the user's active grants, consulting the cache first.
// Errors are logged and reported as having no grants at all.
func (pc *PermissionChecker) grants(ctx context.Context, userID string) []Grant {
	if pc.cache != nil {
		if cached, ok := pc.cache.Get(userID); ok {
			if pc.metrics != nil {
				pc.metrics.CacheHitsTotal.WithLabelValues("permission").Inc()
			}
			return cached
		}
		if pc.metrics != nil {
			pc.metrics.CacheMissesTotal.WithLabelValues("permission").Inc()
		}
	}

	grants, err := pc.store.ActiveGrants(ctx, userID)
	if err != nil {
		pc.logger.WithError(err).WithField("user_id", userID).Error("Failed to load grants, denying")
		return nil
	}

	if pc.cache != nil {
		pc.cache.Add(userID, grants)
	}

	return grants
}

// HasPermission reports whether the user holds the permission in the
// workspace. A super admin role held anywhere grants everything.
func (pc *PermissionChecker) HasPermission(ctx context.Context, userID, workspaceID string, permission Permission) bool {
	allowed := pc.hasPermission(ctx, userID, workspaceID, permission)
	if pc.metrics != nil {
		pc.metrics.RecordPermissionCheck(string(permission), allowed)
	}
	return allowed
}

func (pc *PermissionChecker) hasPermission(ctx context.Context, userID, workspaceID string, permission Permission) bool {
	if userID == "" {
		return false
	}

	for _, grant := range pc.grants(ctx, userID) {
		if grant.RoleName == RoleSuperAdmin {
			return true
		}
		if grant.WorkspaceID != workspaceID {
			continue
		}
		for _, p := range grant.Permissions {
			if p == permission {
				return true
			}
		}
	}

	return false
}

// IsSuperAdmin reports whether the user actively holds the super admin
// role in any workspace
func (pc *PermissionChecker) IsSuperAdmin(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}

	for _, grant := range pc.grants(ctx, userID) {
		if grant.RoleName == RoleSuperAdmin {
			return true
		}
	}

	return false
}

// UserWorkspaceIDs returns the workspaces where the user has any active
// assignment, deduplicated
func (pc *PermissionChecker) UserWorkspaceIDs(ctx context.Context, userID string) []string {
	if userID == "" {
		return nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, grant := range pc.grants(ctx, userID) {
		if !seen[grant.WorkspaceID] {
			seen[grant.WorkspaceID] = true
			ids = append(ids, grant.WorkspaceID)
		}
	}

	return ids
}

// InvalidateUser drops the cached grants for a user
func (pc *PermissionChecker) InvalidateUser(userID string) {
	if pc.cache != nil {
		pc.cache.Remove(userID)
	}
}
