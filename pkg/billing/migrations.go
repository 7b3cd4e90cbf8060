package billing

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/haven/pkg/storage/postgres"
)

// GetMigrations returns the billing schema migrations
func GetMigrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create plans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS plans (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					scope TEXT NOT NULL DEFAULT 'global',
					workspace_id TEXT,
					status TEXT NOT NULL DEFAULT 'active',
					billing_interval TEXT NOT NULL DEFAULT 'monthly',
					price_cents INTEGER NOT NULL DEFAULT 0,
					currency TEXT NOT NULL DEFAULT 'usd',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_plans_workspace ON plans(workspace_id);
			`,
		},
		{
			Version:     2,
			Description: "Create user_subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_subscriptions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					plan_id TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'active',
					start_at TIMESTAMP NOT NULL,
					end_at TIMESTAMP NOT NULL,
					provider TEXT NOT NULL DEFAULT 'manual',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX IF NOT EXISTS idx_user_subscriptions_user ON user_subscriptions(user_id);
				CREATE INDEX IF NOT EXISTS idx_user_subscriptions_status ON user_subscriptions(status, end_at);
			`,
		},
	}
}

// RunMigrations applies the billing schema
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return postgres.ApplyMigrations(ctx, db, "billing_migrations", GetMigrations())
}
