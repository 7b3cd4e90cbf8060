package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/storage/postgres"
)

// DBLogger persists audit events to the database
type DBLogger struct {
	db *sql.DB
}

// GetMigrations returns the audit schema migrations
func GetMigrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id TEXT PRIMARY KEY,
					timestamp TIMESTAMP NOT NULL,
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					actor_id TEXT,
					workspace_id TEXT,
					resource_type VARCHAR(50),
					resource_id TEXT,
					ip_address VARCHAR(45),
					request_id TEXT,
					message TEXT,
					metadata TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
				CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
				CREATE INDEX IF NOT EXISTS idx_audit_events_actor_id ON audit_events(actor_id);
				CREATE INDEX IF NOT EXISTS idx_audit_events_workspace_id ON audit_events(workspace_id);
				CREATE INDEX IF NOT EXISTS idx_audit_events_resource ON audit_events(resource_type, resource_id);
			`,
		},
	}
}

// RunMigrations applies all pending audit migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return postgres.ApplyMigrations(ctx, db, "audit_migrations", GetMigrations())
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log persists an audit event
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.RequestID(ctx)
	}

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (id, timestamp, event_type, status, actor_id, workspace_id, resource_type, resource_id, ip_address, request_id, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := l.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.EventType,
		event.Status,
		nullIfEmpty(event.ActorID),
		nullIfEmpty(event.WorkspaceID),
		nullIfEmpty(string(event.ResourceType)),
		nullIfEmpty(event.ResourceID),
		nullIfEmpty(event.IPAddress),
		nullIfEmpty(event.RequestID),
		nullIfEmpty(event.Message),
		nullIfEmpty(string(metadataJSON)),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// LogChange records a successful mutation by an actor on a resource
func (l *DBLogger) LogChange(ctx context.Context, eventType EventType, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error {
	return l.Log(ctx, &Event{
		EventType:    eventType,
		Status:       EventStatusSuccess,
		ActorID:      actorID,
		WorkspaceID:  workspaceID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Message:      message,
	})
}

// LogDenied records a denied access attempt
func (l *DBLogger) LogDenied(ctx context.Context, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error {
	return l.Log(ctx, &Event{
		EventType:    EventTypeAccessDenied,
		Status:       EventStatusDenied,
		ActorID:      actorID,
		WorkspaceID:  workspaceID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Message:      message,
	})
}

// Query filters for listing audit events
type Query struct {
	EventType   EventType
	ActorID     string
	WorkspaceID string
	Since       time.Time
	Limit       int
}

// List returns audit events matching the query, newest first
func (l *DBLogger) List(ctx context.Context, q Query) ([]Event, error) {
	query := `
		SELECT id, timestamp, event_type, status, actor_id, workspace_id, resource_type, resource_id, ip_address, request_id, message, metadata
		FROM audit_events
		WHERE ($1 = '' OR event_type = $1)
		  AND ($2 = '' OR actor_id = $2)
		  AND ($3 = '' OR workspace_id = $3)
		  AND timestamp >= $4
		ORDER BY timestamp DESC
		LIMIT $5
	`

	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, query, string(q.EventType), q.ActorID, q.WorkspaceID, q.Since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var actorID, workspaceID, resourceType, resourceID, ipAddress, requestID, message, metadata sql.NullString

		err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.Status, &actorID, &workspaceID, &resourceType, &resourceID, &ipAddress, &requestID, &message, &metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		e.ActorID = actorID.String
		e.WorkspaceID = workspaceID.String
		e.ResourceType = ResourceType(resourceType.String)
		e.ResourceID = resourceID.String
		e.IPAddress = ipAddress.String
		e.RequestID = requestID.String
		e.Message = message.String

		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Close is a no-op; the logger does not own the database handle
func (l *DBLogger) Close() error {
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
