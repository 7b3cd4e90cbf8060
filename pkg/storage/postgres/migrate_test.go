package postgres

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func testMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create widgets table",
			SQL: `
				CREATE TABLE widgets (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL
				);
			`,
		},
		{
			Version:     2,
			Description: "Add widget color",
			SQL:         `ALTER TABLE widgets ADD COLUMN color TEXT;`,
		},
	}
}

func TestApplyMigrations(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if err := ApplyMigrations(ctx, db, "widget_migrations", testMigrations()); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}

	// Both migrations should be recorded
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM widget_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count applied migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 applied migrations, got %d", count)
	}

	// The schema should include the column from version 2
	if _, err := db.Exec("INSERT INTO widgets (id, name, color) VALUES ('w1', 'gear', 'red')"); err != nil {
		t.Errorf("Insert against migrated schema failed: %v", err)
	}
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if err := ApplyMigrations(ctx, db, "widget_migrations", testMigrations()); err != nil {
		t.Fatalf("First ApplyMigrations failed: %v", err)
	}

	// Second run must skip everything already applied. The migrations use
	// bare CREATE TABLE, so re-execution would fail.
	if err := ApplyMigrations(ctx, db, "widget_migrations", testMigrations()); err != nil {
		t.Fatalf("Second ApplyMigrations failed: %v", err)
	}
}

func TestApplyMigrationsPartialUpgrade(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	migrations := testMigrations()

	if err := ApplyMigrations(ctx, db, "widget_migrations", migrations[:1]); err != nil {
		t.Fatalf("ApplyMigrations (v1 only) failed: %v", err)
	}

	if err := ApplyMigrations(ctx, db, "widget_migrations", migrations); err != nil {
		t.Fatalf("ApplyMigrations (upgrade to v2) failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM widget_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count applied migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 applied migrations after upgrade, got %d", count)
	}
}
