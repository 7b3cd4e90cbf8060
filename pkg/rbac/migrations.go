package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/haven/pkg/storage/postgres"
)

// GetMigrations returns all RBAC schema migrations
func GetMigrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id TEXT PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					permissions TEXT NOT NULL DEFAULT '[]',
					is_built_in BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_roles_name ON roles(name);
			`,
		},
		{
			Version:     2,
			Description: "Create user_workspace_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_workspace_roles (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					role_id TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_uwr_user_id ON user_workspace_roles(user_id);
				CREATE INDEX IF NOT EXISTS idx_uwr_workspace_id ON user_workspace_roles(workspace_id);
				CREATE INDEX IF NOT EXISTS idx_uwr_status ON user_workspace_roles(status);
			`,
		},
		{
			Version:     3,
			Description: "Enforce one active assignment per user per workspace",
			SQL: `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_uwr_one_active
					ON user_workspace_roles(user_id, workspace_id)
					WHERE status = 'active';
			`,
		},
	}
}

// RunMigrations applies all pending RBAC migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return postgres.ApplyMigrations(ctx, db, "rbac_migrations", GetMigrations())
}

// SeedBuiltInRoles creates the built-in roles if they don't exist
func SeedBuiltInRoles(ctx context.Context, store *Store) error {
	for _, role := range BuiltInRoles() {
		existing, err := store.GetRoleByName(ctx, role.Name)
		if err == nil && existing != nil {
			continue
		}

		if err := store.CreateRole(ctx, &role); err != nil {
			return fmt.Errorf("failed to seed built-in role %s: %w", role.Name, err)
		}
	}

	return nil
}
