package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/haven/pkg/audit"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/users"
)

// IssuerTokenHeader carries the shared secret that authenticates the
// upstream identity provider to the session-issue endpoint
const IssuerTokenHeader = "X-Haven-Issuer-Token"

// Handlers provides HTTP handlers for session issue and logout
type Handlers struct {
	manager     *SessionManager
	auditLogger audit.Logger

	// issuerToken authenticates callers of IssueSession. Empty means
	// issuance is disabled entirely; sessions are minted for anyone the
	// trusted identity layer vouches for, never for anonymous callers.
	issuerToken string
}

// NewHandlers creates new auth handlers
func NewHandlers(manager *SessionManager, auditLogger audit.Logger, issuerToken string) *Handlers {
	return &Handlers{
		manager:     manager,
		auditLogger: auditLogger,
		issuerToken: issuerToken,
	}
}

// RegisterRoutes registers the auth routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/sessions", h.IssueSession).Methods("POST")
	router.HandleFunc("/auth/logout", h.Logout).Methods("POST")
}

// IssueSession creates a session for a user whose identity was proven
// upstream. The caller must present the configured issuer token; the
// plaintext session token appears only in this response.
func (h *Handlers) IssueSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.issuerToken == "" {
		httputil.WriteForbidden(w, "session issuance is disabled")
		return
	}
	presented := r.Header.Get(IssuerTokenHeader)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(h.issuerToken)) != 1 {
		h.auditLogger.Log(ctx, &audit.Event{
			EventType:    audit.EventTypeAuthLoginFailed,
			Status:       audit.EventStatusDenied,
			ResourceType: audit.ResourceTypeSession,
			Message:      "invalid issuer token",
		})
		httputil.WriteUnauthorized(w, "invalid issuer token")
		return
	}

	var req struct {
		UserID     string `json:"user_id"`
		TTLSeconds int    `json:"ttl_seconds"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	session, token, err := h.manager.Issue(ctx, req.UserID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrUserNotFound):
			httputil.WriteNotFoundError(w, "user not found")
		case errors.Is(err, ErrUserNotActive):
			h.auditLogger.Log(ctx, &audit.Event{
				EventType:    audit.EventTypeAuthLoginFailed,
				Status:       audit.EventStatusDenied,
				ActorID:      req.UserID,
				ResourceType: audit.ResourceTypeSession,
				Message:      "user is not active",
			})
			httputil.WriteForbidden(w, "user is not active")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeAuthLogin, session.UserID, "", audit.ResourceTypeSession, session.ID, "issued session "+session.TokenPrefix)

	httputil.WriteCreated(w, map[string]interface{}{
		"session": session,
		"token":   token,
	})
}

// Logout revokes the bearer token on the request. Idempotent.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		httputil.WriteUnauthorized(w, "missing bearer token")
		return
	}

	session, err := h.manager.Validate(ctx, token)
	if err := h.manager.Revoke(ctx, token); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if err == nil {
		h.auditLogger.LogChange(ctx, audit.EventTypeAuthLogout, session.UserID, "", audit.ResourceTypeSession, session.ID, "revoked session "+session.TokenPrefix)
	}

	httputil.WriteNoContent(w)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
