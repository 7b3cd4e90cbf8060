package middleware

import (
	"net/http"

	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/observability"
	"github.com/platinummonkey/haven/pkg/tenancy"
)

// TenantMiddleware resolves the request's Host header to a workspace
// once per request and stores the resolution in the context
type TenantMiddleware struct {
	resolver *tenancy.Resolver
	logger   *observability.Logger
}

// NewTenantMiddleware creates tenant resolution middleware
func NewTenantMiddleware(resolver *tenancy.Resolver, logger *observability.Logger) *TenantMiddleware {
	return &TenantMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// Handler resolves the tenant and continues regardless of outcome.
// Routes that need a serving workspace add RequireActiveTenant.
func (m *TenantMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolution := m.resolver.Resolve(r.Context(), r.Host)
		ctx := contextkeys.WithTenant(r.Context(), &resolution)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActiveTenant rejects requests whose hostname did not resolve
// to a serving workspace. Disabled and unresolvable tenants get the
// same response body, only the log entry tells them apart.
func (m *TenantMiddleware) RequireActiveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := GetTenant(r)
		if tenant == nil || tenant.Outcome != tenancy.OutcomeActive {
			reason := "unresolvable"
			if tenant != nil && tenant.Outcome == tenancy.OutcomeDisabled {
				reason = "disabled"
			}
			m.logger.WithFields(map[string]interface{}{
				"host":   r.Host,
				"reason": reason,
			}).Warn("Rejecting request for unavailable tenant")
			httputil.WriteServiceUnavailable(w, "site unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetTenant retrieves the tenant resolution from the request, or nil
// when the tenant middleware did not run
func GetTenant(r *http.Request) *tenancy.Resolution {
	if resolution, ok := r.Context().Value(contextkeys.TenantKey).(*tenancy.Resolution); ok {
		return resolution
	}
	return nil
}
