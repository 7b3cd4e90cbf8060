package audit

import (
	"context"

	"github.com/platinummonkey/haven/pkg/observability"
)

// SafeLogger wraps a Logger so write failures are surfaced in the
// application log instead of being silently dropped by call sites.
// Audit writes are best effort; SafeLogger never returns an error.
type SafeLogger struct {
	inner  Logger
	logger *observability.Logger
}

// NewSafeLogger wraps an audit logger with failure logging
func NewSafeLogger(inner Logger, logger *observability.Logger) *SafeLogger {
	return &SafeLogger{
		inner:  inner,
		logger: logger,
	}
}

// Log records an event, logging a warning on failure
func (s *SafeLogger) Log(ctx context.Context, event *Event) error {
	if err := s.inner.Log(ctx, event); err != nil {
		s.warn(err, string(event.EventType))
	}
	return nil
}

// LogChange records a change event, logging a warning on failure
func (s *SafeLogger) LogChange(ctx context.Context, eventType EventType, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error {
	if err := s.inner.LogChange(ctx, eventType, actorID, workspaceID, resourceType, resourceID, message); err != nil {
		s.warn(err, string(eventType))
	}
	return nil
}

// LogDenied records a denial event, logging a warning on failure
func (s *SafeLogger) LogDenied(ctx context.Context, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error {
	if err := s.inner.LogDenied(ctx, actorID, workspaceID, resourceType, resourceID, message); err != nil {
		s.warn(err, string(EventTypeAccessDenied))
	}
	return nil
}

// Close closes the wrapped logger
func (s *SafeLogger) Close() error {
	return s.inner.Close()
}

func (s *SafeLogger) warn(err error, eventType string) {
	s.logger.WithError(err).WithField("event_type", eventType).Warn("Failed to write audit event")
}
