package tenancy

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/haven/pkg/observability"
)

// Resolver maps request hostnames to workspaces, caching results in
// process. Resolve is total and never returns an error.
type Resolver struct {
	store       *Store
	cache       *expirable.LRU[string, Resolution]
	defaultSlug string
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewResolver creates a resolver. defaultSlug names the workspace that
// answers for unmapped hostnames. The cache and metrics may be nil.
func NewResolver(store *Store, cache *expirable.LRU[string, Resolution], defaultSlug string, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		store:       store,
		cache:       cache,
		defaultSlug: defaultSlug,
		logger:      logger,
		metrics:     metrics,
	}
}

// Resolve maps a raw request hostname to a workspace.
//
// Mapped hostnames resolve to their workspace, reporting the disabled
// outcome when the tenant is suspended; there is no fallback in that
// case. Unmapped hostnames resolve to the default workspace. When even
// the default is missing, or storage fails, the outcome is unresolved.
func (r *Resolver) Resolve(ctx context.Context, rawHost string) Resolution {
	start := time.Now()
	hostname := NormalizeHostname(rawHost)

	if r.cache != nil {
		if cached, ok := r.cache.Get(hostname); ok {
			if r.metrics != nil {
				r.metrics.CacheHitsTotal.WithLabelValues("resolver").Inc()
			}
			return cached
		}
		if r.metrics != nil {
			r.metrics.CacheMissesTotal.WithLabelValues("resolver").Inc()
		}
	}

	resolution := r.resolve(ctx, hostname)

	if r.cache != nil {
		r.cache.Add(hostname, resolution)
	}
	if r.metrics != nil {
		r.metrics.RecordResolution(string(resolution.Outcome), time.Since(start))
	}

	return resolution
}

func (r *Resolver) resolve(ctx context.Context, hostname string) Resolution {
	resolution := Resolution{Hostname: hostname, Outcome: OutcomeUnresolved}

	if hostname != "" {
		ws, err := r.store.WorkspaceByHostname(ctx, hostname)
		switch {
		case err == nil:
			// Mapped hostnames never fall through to the default, a
			// suspended tenant's domains answer with the disabled state
			resolution.Workspace = ws
			if ws.IsActive() {
				resolution.Outcome = OutcomeActive
			} else {
				resolution.Outcome = OutcomeDisabled
			}
			return resolution

		case !errors.Is(err, ErrDomainNotFound):
			r.logger.WithError(err).WithField("hostname", hostname).Error("Hostname lookup failed")
			return resolution
		}
	}

	ws, err := r.store.GetWorkspaceBySlug(ctx, r.defaultSlug)
	if err != nil {
		if !errors.Is(err, ErrWorkspaceNotFound) {
			r.logger.WithError(err).WithField("slug", r.defaultSlug).Error("Default workspace lookup failed")
		}
		return resolution
	}

	resolution.Workspace = ws
	resolution.Fallback = true
	if ws.IsActive() {
		resolution.Outcome = OutcomeActive
	} else {
		resolution.Outcome = OutcomeDisabled
	}

	return resolution
}

// Invalidate drops a single hostname from the cache
func (r *Resolver) Invalidate(rawHost string) {
	if r.cache != nil {
		r.cache.Remove(NormalizeHostname(rawHost))
	}
}

// Flush empties the resolution cache. Called after workspace or domain
// mutations, which can change the answer for hostnames other than the
// one edited.
func (r *Resolver) Flush() {
	if r.cache != nil {
		r.cache.Purge()
	}
}
