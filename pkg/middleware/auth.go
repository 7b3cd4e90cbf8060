package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
)

// AuthMiddleware authenticates requests by their bearer session token
type AuthMiddleware struct {
	sessions *auth.SessionManager
	optional bool // allow anonymous requests through
}

// NewAuthMiddleware creates authentication middleware. With optional
// set, requests without a token continue anonymously; a present but
// invalid token is still rejected.
func NewAuthMiddleware(sessions *auth.SessionManager, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		session, err := m.sessions.Validate(r.Context(), parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrInvalidSession) {
				httputil.WriteUnauthorized(w, "invalid or expired session")
				return
			}
			httputil.WriteInternalError(w, err)
			return
		}

		ctx := contextkeys.WithSession(r.Context(), session)
		ctx = contextkeys.WithUserID(ctx, session.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSession retrieves the authenticated session from the request, or
// nil for anonymous requests
func GetSession(r *http.Request) *auth.Session {
	if session, ok := r.Context().Value(contextkeys.SessionKey).(*auth.Session); ok {
		return session
	}
	return nil
}
