package auth

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/haven/pkg/storage/postgres"
)

// GetMigrations returns the session schema migrations
func GetMigrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					token_hash TEXT NOT NULL UNIQUE,
					token_prefix TEXT NOT NULL,
					expires_at TIMESTAMP NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					revoked_at TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
			`,
		},
	}
}

// RunMigrations applies the session schema
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return postgres.ApplyMigrations(ctx, db, "auth_migrations", GetMigrations())
}
