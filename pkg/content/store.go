package content

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store persists content items
type Store struct {
	db *sql.DB
}

// NewStore creates a new content store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateItem inserts a new item. Slugs are unique per workspace.
func (s *Store) CreateItem(ctx context.Context, item *Item) error {
	item.ID = uuid.New().String()
	item.Slug = strings.ToLower(strings.TrimSpace(item.Slug))
	if item.Access == "" {
		item.Access = AccessFree
	}
	if item.Status == "" {
		item.Status = StatusDraft
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, workspace_id, kind, slug, title, description, access, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.WorkspaceID, item.Kind, item.Slug, item.Title, item.Description,
		item.Access, item.Status, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID
func (s *Store) GetItem(ctx context.Context, itemID string) (*Item, error) {
	return s.scanItem(s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, kind, slug, title, description, access, status, created_at, updated_at
		FROM items WHERE id = $1`, itemID))
}

// GetItemBySlug retrieves an item by its workspace-scoped slug
func (s *Store) GetItemBySlug(ctx context.Context, workspaceID, slug string) (*Item, error) {
	return s.scanItem(s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, kind, slug, title, description, access, status, created_at, updated_at
		FROM items WHERE workspace_id = $1 AND slug = $2`,
		workspaceID, strings.ToLower(strings.TrimSpace(slug))))
}

func (s *Store) scanItem(row *sql.Row) (*Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.WorkspaceID, &item.Kind, &item.Slug, &item.Title,
		&item.Description, &item.Access, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// ListItems returns a workspace's items matching the filter
func (s *Store) ListItems(ctx context.Context, workspaceID string, filter ListItemsFilter) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, kind, slug, title, description, access, status, created_at, updated_at
		FROM items
		WHERE workspace_id = $1
		  AND ($2 = '' OR kind = $2)
		  AND ($3 = '' OR access = $3)
		  AND ($4 = '' OR status = $4)
		ORDER BY created_at DESC`,
		workspaceID, string(filter.Kind), string(filter.Access), string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.WorkspaceID, &item.Kind, &item.Slug, &item.Title,
			&item.Description, &item.Access, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItem modifies an item's title, description, access and status.
// The slug, kind and workspace are fixed at creation.
func (s *Store) UpdateItem(ctx context.Context, item *Item) error {
	item.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET title = $1, description = $2, access = $3, status = $4, updated_at = $5
		WHERE id = $6`,
		item.Title, item.Description, item.Access, item.Status, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrItemNotFound
	}
	return nil
}

// DeleteItem removes an item
func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrItemNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
