package audit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/haven/pkg/observability"
)

type failingAuditLogger struct {
	err   error
	calls int
}

func (f *failingAuditLogger) Log(ctx context.Context, event *Event) error {
	f.calls++
	return f.err
}

func (f *failingAuditLogger) LogChange(ctx context.Context, eventType EventType, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error {
	f.calls++
	return f.err
}

func (f *failingAuditLogger) LogDenied(ctx context.Context, actorID, workspaceID string, resourceType ResourceType, resourceID, message string) error {
	f.calls++
	return f.err
}

func (f *failingAuditLogger) Close() error { return f.err }

func TestSafeLogger_SurfacesWriteFailures(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	inner := &failingAuditLogger{err: errors.New("audit table unavailable")}
	safe := NewSafeLogger(inner, observability.NewLogger(observability.WarnLevel, &buf))

	// Call sites treat audit as best effort; failures must land in the
	// application log rather than vanish
	require.NoError(t, safe.Log(ctx, &Event{EventType: EventTypeAuthLogin}))
	require.NoError(t, safe.LogChange(ctx, EventTypeWorkspaceCreate, "actor", "ws", ResourceTypeWorkspace, "ws", "created"))
	require.NoError(t, safe.LogDenied(ctx, "actor", "ws", ResourceTypeItem, "item", "denied"))

	assert.Equal(t, 3, inner.calls)
	assert.Contains(t, buf.String(), "Failed to write audit event")
	assert.Contains(t, buf.String(), "audit table unavailable")
}

func TestSafeLogger_QuietOnSuccess(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	inner := &failingAuditLogger{}
	safe := NewSafeLogger(inner, observability.NewLogger(observability.WarnLevel, &buf))

	require.NoError(t, safe.LogChange(ctx, EventTypeWorkspaceCreate, "actor", "ws", ResourceTypeWorkspace, "ws", "created"))
	assert.Empty(t, buf.String())
	assert.NoError(t, safe.Close())
}
