package rbac

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

// Store errors
var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrActiveAssignmentExists is returned when re-enabling an assignment
	// would give a user two active roles in the same workspace
	ErrActiveAssignmentExists = errors.New("user already has an active assignment in this workspace")
)

// Store handles RBAC data persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRole creates a new role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO roles (id, name, display_name, description, permissions, is_built_in, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.db.ExecContext(ctx, query,
		role.ID,
		role.Name,
		role.DisplayName,
		role.Description,
		string(permissionsJSON),
		role.IsBuiltIn,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID string) (*Role, error) {
	query := `
		SELECT id, name, display_name, description, permissions, is_built_in, created_at, updated_at
		FROM roles
		WHERE id = $1
	`
	return s.scanRole(s.db.QueryRowContext(ctx, query, roleID))
}

// GetRoleByName retrieves a role by its unique name
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	query := `
		SELECT id, name, display_name, description, permissions, is_built_in, created_at, updated_at
		FROM roles
		WHERE name = $1
	`
	return s.scanRole(s.db.QueryRowContext(ctx, query, name))
}

func (s *Store) scanRole(row *sql.Row) (*Role, error) {
	var role Role
	var permissionsJSON string

	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&permissionsJSON,
		&role.IsBuiltIn,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}

	return &role, nil
}

// ListRoles lists all roles ordered with built-ins first
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT id, name, display_name, description, permissions, is_built_in, created_at, updated_at
		FROM roles
		ORDER BY is_built_in DESC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		var permissionsJSON string

		err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.DisplayName,
			&role.Description,
			&permissionsJSON,
			&role.IsBuiltIn,
			&role.CreatedAt,
			&role.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}

		if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}

		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// UpdateRole updates a role's display name, description and permissions
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	now := time.Now().UTC()
	query := `
		UPDATE roles
		SET display_name = $1, description = $2, permissions = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		role.DisplayName,
		role.Description,
		string(permissionsJSON),
		now,
		role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrRoleNotFound
	}

	role.UpdatedAt = now
	return nil
}

// SetWorkspaceRole gives a user a role in a workspace. Any existing
// active assignment for that user and workspace is disabled first, so
// the user always holds at most one active role per workspace while the
// replaced assignment stays on record.
func (s *Store) SetWorkspaceRole(ctx context.Context, userID, workspaceID, roleID string) (*Assignment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var roleExists bool
	err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1)", roleID).Scan(&roleExists)
	if err != nil {
		return nil, fmt.Errorf("failed to verify role: %w", err)
	}
	if !roleExists {
		return nil, ErrRoleNotFound
	}

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE user_workspace_roles
		SET status = $1, updated_at = $2
		WHERE user_id = $3 AND workspace_id = $4 AND status = $5
	`, AssignmentDisabled, now, userID, workspaceID, AssignmentActive)
	if err != nil {
		return nil, fmt.Errorf("failed to retire previous assignment: %w", err)
	}

	assignment := &Assignment{
		ID:          uuid.NewString(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		RoleID:      roleID,
		Status:      AssignmentActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_workspace_roles (id, user_id, workspace_id, role_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, assignment.ID, assignment.UserID, assignment.WorkspaceID, assignment.RoleID, assignment.Status, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}

	return assignment, nil
}

// GetAssignment retrieves an assignment by ID
func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (*Assignment, error) {
	query := `
		SELECT id, user_id, workspace_id, role_id, status, created_at, updated_at
		FROM user_workspace_roles
		WHERE id = $1
	`

	var a Assignment
	err := s.db.QueryRowContext(ctx, query, assignmentID).Scan(
		&a.ID, &a.UserID, &a.WorkspaceID, &a.RoleID, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	return &a, nil
}

// SetAssignmentStatus enables or disables an assignment. Re-enabling
// fails with ErrActiveAssignmentExists when the user already holds an
// active role in the same workspace.
func (s *Store) SetAssignmentStatus(ctx context.Context, assignmentID string, status AssignmentStatus) error {
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE user_workspace_roles
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, status, now, assignmentID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrActiveAssignmentExists
		}
		return fmt.Errorf("failed to update assignment status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrAssignmentNotFound
	}

	return nil
}

// ListUserAssignments lists all assignments for a user, newest first
func (s *Store) ListUserAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	query := `
		SELECT id, user_id, workspace_id, role_id, status, created_at, updated_at
		FROM user_workspace_roles
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return s.listAssignments(ctx, query, userID)
}

// ListWorkspaceAssignments lists all assignments within a workspace
func (s *Store) ListWorkspaceAssignments(ctx context.Context, workspaceID string) ([]Assignment, error) {
	query := `
		SELECT id, user_id, workspace_id, role_id, status, created_at, updated_at
		FROM user_workspace_roles
		WHERE workspace_id = $1
		ORDER BY created_at DESC
	`
	return s.listAssignments(ctx, query, workspaceID)
}

func (s *Store) listAssignments(ctx context.Context, query string, arg interface{}) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		err := rows.Scan(&a.ID, &a.UserID, &a.WorkspaceID, &a.RoleID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// ActiveGrants returns the user's active assignments joined with their
// roles, the raw material for permission evaluation
func (s *Store) ActiveGrants(ctx context.Context, userID string) ([]Grant, error) {
	query := `
		SELECT a.workspace_id, r.name, r.permissions
		FROM user_workspace_roles a
		JOIN roles r ON r.id = a.role_id
		WHERE a.user_id = $1 AND a.status = $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, AssignmentActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		var permissionsJSON string

		if err := rows.Scan(&g.WorkspaceID, &g.RoleName, &permissionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		if err := json.Unmarshal([]byte(permissionsJSON), &g.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}

		grants = append(grants, g)
	}

	return grants, rows.Err()
}

// isUniqueViolation detects unique constraint violations from both the
// PostgreSQL and SQLite drivers
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
