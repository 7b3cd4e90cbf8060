package audit

import (
	"context"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// LogChange records a successful mutation by an actor on a resource
	LogChange(ctx context.Context, eventType EventType, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error

	// LogDenied records a denied access attempt
	LogDenied(ctx context.Context, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error

	// Close flushes any buffered events
	Close() error
}

type contextKey string

// loggerKey is the context key for the audit logger
const loggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the audit logger from context, returning a no-op
// logger when none is set
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards all events
type NopLogger struct{}

// Log discards the event
func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }

// LogChange discards the event
func (NopLogger) LogChange(ctx context.Context, eventType EventType, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error {
	return nil
}

// LogDenied discards the event
func (NopLogger) LogDenied(ctx context.Context, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error {
	return nil
}

// Close is a no-op
func (NopLogger) Close() error { return nil }
