package rbac

import (
	"time"
)

// Permission represents a single admin capability
type Permission string

// The closed permission vocabulary. Unknown permission strings are never
// granted, so misspellings fail closed.
const (
	PermViewAdmin           Permission = "view_admin"
	PermManageWorkspaces    Permission = "manage_workspaces"
	PermManageUsers         Permission = "manage_users"
	PermManageCategories    Permission = "manage_categories"
	PermManageContent       Permission = "manage_content"
	PermManageVideos        Permission = "manage_videos"
	PermManageCourses       Permission = "manage_courses"
	PermManageHomeLayout    Permission = "manage_home_layout"
	PermManagePlans         Permission = "manage_plans"
	PermManageSubscriptions Permission = "manage_subscriptions"
	PermViewAnalytics       Permission = "view_analytics"
	PermManageSettings      Permission = "manage_settings"
)

// AllPermissions returns the full permission vocabulary
func AllPermissions() []Permission {
	return []Permission{
		PermViewAdmin,
		PermManageWorkspaces,
		PermManageUsers,
		PermManageCategories,
		PermManageContent,
		PermManageVideos,
		PermManageCourses,
		PermManageHomeLayout,
		PermManagePlans,
		PermManageSubscriptions,
		PermViewAnalytics,
		PermManageSettings,
	}
}

// IsValid reports whether the permission belongs to the vocabulary
func (p Permission) IsValid() bool {
	for _, known := range AllPermissions() {
		if p == known {
			return true
		}
	}
	return false
}

// Built-in role names
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
	RoleUser       = "user"
)

// Role represents a named bundle of permissions
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	IsBuiltIn   bool         `json:"is_built_in"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasPermission reports whether the role grants the permission directly
func (r *Role) HasPermission(permission Permission) bool {
	for _, p := range r.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// AssignmentStatus is the lifecycle state of a role assignment
type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "active"
	AssignmentDisabled AssignmentStatus = "disabled"
)

// Assignment links a user to a role within one workspace
type Assignment struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	WorkspaceID string           `json:"workspace_id"`
	RoleID      string           `json:"role_id"`
	Status      AssignmentStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsActive reports whether the assignment currently counts toward
// permission checks
func (a *Assignment) IsActive() bool {
	return a.Status == AssignmentActive
}

// Grant is an active role held by a user in one workspace, with the
// role's details denormalized for permission evaluation
type Grant struct {
	WorkspaceID string       `json:"workspace_id"`
	RoleName    string       `json:"role_name"`
	Permissions []Permission `json:"permissions"`
}

// BuiltInRoles returns the built-in role definitions seeded at startup
func BuiltInRoles() []Role {
	return []Role{
		{
			Name:        RoleSuperAdmin,
			DisplayName: "Super Admin",
			Description: "Unrestricted access across all workspaces",
			IsBuiltIn:   true,
			Permissions: AllPermissions(),
		},
		{
			Name:        RoleAdmin,
			DisplayName: "Admin",
			Description: "Full workspace administration except workspace management",
			IsBuiltIn:   true,
			Permissions: []Permission{
				PermViewAdmin,
				PermManageUsers,
				PermManageCategories,
				PermManageContent,
				PermManageVideos,
				PermManageCourses,
				PermManageHomeLayout,
				PermManagePlans,
				PermManageSubscriptions,
				PermViewAnalytics,
				PermManageSettings,
			},
		},
		{
			Name:        RoleEditor,
			DisplayName: "Editor",
			Description: "Content curation within a workspace",
			IsBuiltIn:   true,
			Permissions: []Permission{
				PermViewAdmin,
				PermManageCategories,
				PermManageContent,
				PermManageVideos,
				PermManageCourses,
				PermManageHomeLayout,
			},
		},
		{
			Name:        RoleUser,
			DisplayName: "User",
			Description: "Standard member with no admin permissions",
			IsBuiltIn:   true,
			Permissions: []Permission{},
		},
	}
}
