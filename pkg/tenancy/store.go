package tenancy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store handles workspace and domain persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new tenancy store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const workspaceColumns = `id, slug, name, description, status, enabled_languages, default_language, hide_language_switcher, theme_accent_color, theme_logo_url, created_at, updated_at`

// CreateWorkspace inserts a new workspace
func (s *Store) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	if ws.Status == "" {
		ws.Status = WorkspaceActive
	}
	ws.Slug = strings.ToLower(strings.TrimSpace(ws.Slug))
	normalizeWorkspaceConfig(ws)
	now := time.Now().UTC()

	langs, err := json.Marshal(ws.EnabledLanguages)
	if err != nil {
		return fmt.Errorf("failed to encode enabled languages: %w", err)
	}

	query := `
		INSERT INTO workspaces (id, slug, name, description, status, enabled_languages, default_language, hide_language_switcher, theme_accent_color, theme_logo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	accent, logo := themeColumns(ws.Theme)
	_, err = s.db.ExecContext(ctx, query, ws.ID, ws.Slug, ws.Name, ws.Description, ws.Status,
		string(langs), ws.DefaultLanguage, ws.HideLanguageSwitcher, accent, logo, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	ws.CreatedAt = now
	ws.UpdatedAt = now
	return nil
}

// GetWorkspace retrieves a workspace by ID
func (s *Store) GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE id = $1`
	return s.scanWorkspace(s.db.QueryRowContext(ctx, query, workspaceID).Scan)
}

// GetWorkspaceBySlug retrieves a workspace by its slug
func (s *Store) GetWorkspaceBySlug(ctx context.Context, slug string) (*Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE slug = $1`
	return s.scanWorkspace(s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(slug))).Scan)
}

func (s *Store) scanWorkspace(scan func(dest ...interface{}) error) (*Workspace, error) {
	var ws Workspace
	var langs, accent, logo string
	err := scan(&ws.ID, &ws.Slug, &ws.Name, &ws.Description, &ws.Status,
		&langs, &ws.DefaultLanguage, &ws.HideLanguageSwitcher, &accent, &logo, &ws.CreatedAt, &ws.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	if err := json.Unmarshal([]byte(langs), &ws.EnabledLanguages); err != nil {
		return nil, fmt.Errorf("failed to decode enabled languages: %w", err)
	}
	if accent != "" || logo != "" {
		ws.Theme = &ThemeOverride{AccentColor: accent, LogoURL: logo}
	}
	return &ws, nil
}

// ListWorkspaces returns workspaces ordered by slug. With publicOnly
// set, disabled workspaces are filtered out, matching what the public
// workspace selector is allowed to see.
func (s *Store) ListWorkspaces(ctx context.Context, publicOnly bool) ([]Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces`
	if publicOnly {
		query += ` WHERE status = 'active'`
	}
	query += ` ORDER BY slug ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		ws, err := s.scanWorkspace(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		out = append(out, *ws)
	}

	return out, rows.Err()
}

// UpdateWorkspace modifies a workspace's name, description, language
// configuration, and theme. Slug and status are managed separately.
func (s *Store) UpdateWorkspace(ctx context.Context, ws *Workspace) error {
	normalizeWorkspaceConfig(ws)
	now := time.Now().UTC()

	langs, err := json.Marshal(ws.EnabledLanguages)
	if err != nil {
		return fmt.Errorf("failed to encode enabled languages: %w", err)
	}

	accent, logo := themeColumns(ws.Theme)
	result, err := s.db.ExecContext(ctx, `
		UPDATE workspaces
		SET name = $1, description = $2, enabled_languages = $3, default_language = $4,
			hide_language_switcher = $5, theme_accent_color = $6, theme_logo_url = $7, updated_at = $8
		WHERE id = $9
	`, ws.Name, ws.Description, string(langs), ws.DefaultLanguage,
		ws.HideLanguageSwitcher, accent, logo, now, ws.ID)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrWorkspaceNotFound
	}

	ws.UpdatedAt = now
	return nil
}

// SetWorkspaceStatus suspends or reactivates a workspace. Disabling
// takes effect on resolution immediately; the workspace's domains stay
// mapped so requests to them surface the disabled state instead of
// falling through to another tenant.
func (s *Store) SetWorkspaceStatus(ctx context.Context, workspaceID string, status WorkspaceStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workspaces
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, status, time.Now().UTC(), workspaceID)
	if err != nil {
		return fmt.Errorf("failed to update workspace status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrWorkspaceNotFound
	}

	return nil
}

// AddDomain maps a hostname to a workspace. The hostname is normalized
// before storage. The workspace's first domain automatically becomes its
// primary domain.
func (s *Store) AddDomain(ctx context.Context, workspaceID, hostname string, makePrimary bool) (*Domain, error) {
	normalized := NormalizeHostname(hostname)
	if normalized == "" {
		return nil, ErrInvalidHostname
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var wsExists bool
	err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM workspaces WHERE id = $1)", workspaceID).Scan(&wsExists)
	if err != nil {
		return nil, fmt.Errorf("failed to verify workspace: %w", err)
	}
	if !wsExists {
		return nil, ErrWorkspaceNotFound
	}

	var hasPrimary bool
	err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM domains WHERE workspace_id = $1 AND is_primary)", workspaceID).Scan(&hasPrimary)
	if err != nil {
		return nil, fmt.Errorf("failed to check primary domain: %w", err)
	}

	domain := &Domain{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Hostname:    normalized,
		IsPrimary:   makePrimary || !hasPrimary,
		CreatedAt:   time.Now().UTC(),
	}

	if makePrimary && hasPrimary {
		_, err = tx.ExecContext(ctx, "UPDATE domains SET is_primary = FALSE WHERE workspace_id = $1 AND is_primary", workspaceID)
		if err != nil {
			return nil, fmt.Errorf("failed to demote primary domain: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO domains (id, workspace_id, hostname, is_primary, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, domain.ID, domain.WorkspaceID, domain.Hostname, domain.IsPrimary, domain.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateHostname
		}
		return nil, fmt.Errorf("failed to create domain: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit domain: %w", err)
	}

	return domain, nil
}

// GetDomain retrieves a domain by ID
func (s *Store) GetDomain(ctx context.Context, domainID string) (*Domain, error) {
	query := `
		SELECT id, workspace_id, hostname, is_primary, created_at
		FROM domains
		WHERE id = $1
	`

	var d Domain
	err := s.db.QueryRowContext(ctx, query, domainID).Scan(&d.ID, &d.WorkspaceID, &d.Hostname, &d.IsPrimary, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}

	return &d, nil
}

// ListDomains returns a workspace's domains, primary first
func (s *Store) ListDomains(ctx context.Context, workspaceID string) ([]Domain, error) {
	query := `
		SELECT id, workspace_id, hostname, is_primary, created_at
		FROM domains
		WHERE workspace_id = $1
		ORDER BY is_primary DESC, created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var out []Domain
	for rows.Next() {
		var d Domain
		if err := rows.Scan(&d.ID, &d.WorkspaceID, &d.Hostname, &d.IsPrimary, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		out = append(out, d)
	}

	return out, rows.Err()
}

// DeleteDomain removes a hostname mapping. When the primary domain is
// deleted, the workspace's oldest remaining domain is promoted.
func (s *Store) DeleteDomain(ctx context.Context, domainID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var workspaceID string
	var wasPrimary bool
	err = tx.QueryRowContext(ctx, "SELECT workspace_id, is_primary FROM domains WHERE id = $1", domainID).Scan(&workspaceID, &wasPrimary)
	if err == sql.ErrNoRows {
		return ErrDomainNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get domain: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM domains WHERE id = $1", domainID); err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}

	if wasPrimary {
		_, err = tx.ExecContext(ctx, `
			UPDATE domains SET is_primary = TRUE
			WHERE id = (
				SELECT id FROM domains
				WHERE workspace_id = $1
				ORDER BY created_at ASC, id ASC
				LIMIT 1
			)
		`, workspaceID)
		if err != nil {
			return fmt.Errorf("failed to promote replacement primary: %w", err)
		}
	}

	return tx.Commit()
}

// SetPrimaryDomain makes a domain its workspace's primary. Setting the
// current primary again is a no-op.
func (s *Store) SetPrimaryDomain(ctx context.Context, domainID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var workspaceID string
	var isPrimary bool
	err = tx.QueryRowContext(ctx, "SELECT workspace_id, is_primary FROM domains WHERE id = $1", domainID).Scan(&workspaceID, &isPrimary)
	if err == sql.ErrNoRows {
		return ErrDomainNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get domain: %w", err)
	}

	if isPrimary {
		return nil
	}

	_, err = tx.ExecContext(ctx, "UPDATE domains SET is_primary = FALSE WHERE workspace_id = $1 AND is_primary", workspaceID)
	if err != nil {
		return fmt.Errorf("failed to demote primary domain: %w", err)
	}

	_, err = tx.ExecContext(ctx, "UPDATE domains SET is_primary = TRUE WHERE id = $1", domainID)
	if err != nil {
		return fmt.Errorf("failed to promote domain: %w", err)
	}

	return tx.Commit()
}

// WorkspaceByHostname looks up the workspace mapped to a normalized
// hostname. Returns ErrDomainNotFound when no mapping exists.
func (s *Store) WorkspaceByHostname(ctx context.Context, hostname string) (*Workspace, error) {
	query := `
		SELECT w.id, w.slug, w.name, w.description, w.status, w.enabled_languages, w.default_language,
			w.hide_language_switcher, w.theme_accent_color, w.theme_logo_url, w.created_at, w.updated_at
		FROM domains d
		JOIN workspaces w ON w.id = d.workspace_id
		WHERE d.hostname = $1
	`

	ws, err := s.scanWorkspace(s.db.QueryRowContext(ctx, query, hostname).Scan)
	if errors.Is(err, ErrWorkspaceNotFound) {
		return nil, ErrDomainNotFound
	}
	return ws, err
}

// normalizeWorkspaceConfig settles the language configuration before a
// write: English stays enabled, and the default must be one of the
// enabled languages.
func normalizeWorkspaceConfig(ws *Workspace) {
	ws.EnabledLanguages = normalizeLanguages(ws.EnabledLanguages)
	if ws.DefaultLanguage == "" || !ws.DefaultLanguage.IsValid() {
		ws.DefaultLanguage = LangEnglish
	}
	enabled := false
	for _, l := range ws.EnabledLanguages {
		if l == ws.DefaultLanguage {
			enabled = true
			break
		}
	}
	if !enabled {
		ws.DefaultLanguage = LangEnglish
	}
	if ws.Theme != nil && ws.Theme.IsZero() {
		ws.Theme = nil
	}
}

func themeColumns(t *ThemeOverride) (accent, logo string) {
	if t == nil {
		return "", ""
	}
	return t.AccentColor, t.LogoURL
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
