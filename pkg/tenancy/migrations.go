package tenancy

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/haven/pkg/storage/postgres"
)

// GetMigrations returns all tenancy schema migrations
func GetMigrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create workspaces table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id TEXT PRIMARY KEY,
					slug VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_workspaces_slug ON workspaces(slug);
				CREATE INDEX IF NOT EXISTS idx_workspaces_status ON workspaces(status);
			`,
		},
		{
			Version:     2,
			Description: "Create domains table",
			SQL: `
				CREATE TABLE IF NOT EXISTS domains (
					id TEXT PRIMARY KEY,
					workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					hostname VARCHAR(255) NOT NULL UNIQUE,
					is_primary BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_domains_workspace_id ON domains(workspace_id);
				CREATE INDEX IF NOT EXISTS idx_domains_hostname ON domains(hostname);
			`,
		},
		{
			Version:     3,
			Description: "Enforce one primary domain per workspace",
			SQL: `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_domains_one_primary
					ON domains(workspace_id)
					WHERE is_primary;
			`,
		},
		{
			Version:     4,
			Description: "Add language and theme configuration to workspaces",
			SQL: `
				ALTER TABLE workspaces ADD COLUMN enabled_languages TEXT NOT NULL DEFAULT '["en"]';
				ALTER TABLE workspaces ADD COLUMN default_language VARCHAR(10) NOT NULL DEFAULT 'en';
				ALTER TABLE workspaces ADD COLUMN hide_language_switcher BOOLEAN NOT NULL DEFAULT FALSE;
				ALTER TABLE workspaces ADD COLUMN theme_accent_color TEXT NOT NULL DEFAULT '';
				ALTER TABLE workspaces ADD COLUMN theme_logo_url TEXT NOT NULL DEFAULT '';
			`,
		},
	}
}

// RunMigrations applies all pending tenancy migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return postgres.ApplyMigrations(ctx, db, "tenancy_migrations", GetMigrations())
}
