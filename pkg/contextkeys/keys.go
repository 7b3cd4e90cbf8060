// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SessionKey contains *auth.Session
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Type: *auth.Session
	SessionKey Key = "session"

	// TenantKey contains *tenancy.Resolution
	// Set by: middleware.TenantMiddleware (pkg/middleware/tenant.go)
	// Type: *tenancy.Resolution
	TenantKey Key = "tenant"

	// RequestIDKey contains request ID string (UUID)
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID
	// Type: string
	UserIDKey Key = "user_id"
)

// WithSession adds the session to the context
func WithSession(ctx context.Context, session interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// WithTenant adds the tenant resolution to the context
func WithTenant(ctx context.Context, resolution interface{}) context.Context {
	return context.WithValue(ctx, TenantKey, resolution)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds the authenticated user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// RequestID retrieves the request ID, or "" if not set
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// UserID retrieves the authenticated user ID, or "" if anonymous
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}
