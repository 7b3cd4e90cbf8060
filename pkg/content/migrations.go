package content

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/haven/pkg/storage/postgres"
)

// GetMigrations returns the content schema migrations
func GetMigrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create items table",
			SQL: `
				CREATE TABLE IF NOT EXISTS items (
					id TEXT PRIMARY KEY,
					workspace_id TEXT NOT NULL,
					kind TEXT NOT NULL,
					slug TEXT NOT NULL,
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					access TEXT NOT NULL DEFAULT 'free',
					status TEXT NOT NULL DEFAULT 'draft',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(workspace_id, slug)
				);
				CREATE INDEX IF NOT EXISTS idx_items_workspace_kind ON items(workspace_id, kind);
			`,
		},
	}
}

// RunMigrations applies the content schema
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return postgres.ApplyMigrations(ctx, db, "content_migrations", GetMigrations())
}
