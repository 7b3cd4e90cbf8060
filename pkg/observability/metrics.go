package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Tenant resolution metrics
	TenantResolutionsTotal  *prometheus.CounterVec
	TenantResolutionLatency prometheus.Histogram

	// Access control metrics
	PermissionChecksTotal *prometheus.CounterVec
	GateDecisionsTotal    *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Billing metrics
	SubscriptionsExpiredTotal prometheus.Counter
	ActiveSubscriptions       prometheus.Gauge

	// Business metrics
	WorkspacesTotal prometheus.Gauge
	DomainsTotal    prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "haven_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TenantResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_tenant_resolutions_total",
				Help: "Total number of hostname tenant resolutions",
			},
			[]string{"outcome"},
		),
		TenantResolutionLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "haven_tenant_resolution_duration_seconds",
				Help:    "Tenant resolution duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_permission_checks_total",
				Help: "Total number of RBAC permission checks",
			},
			[]string{"permission", "allowed"},
		),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_gate_decisions_total",
				Help: "Total number of content access gate decisions",
			},
			[]string{"access", "allowed"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "haven_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "haven_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		SubscriptionsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "haven_subscriptions_expired_total",
				Help: "Total number of subscriptions swept to expired",
			},
		),
		ActiveSubscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "haven_subscriptions_active",
				Help: "Number of currently active subscriptions",
			},
		),
		WorkspacesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "haven_workspaces_total",
				Help: "Number of workspaces",
			},
		),
		DomainsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "haven_workspace_domains_total",
				Help: "Number of workspace domain bindings",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TenantResolutionsTotal,
		m.TenantResolutionLatency,
		m.PermissionChecksTotal,
		m.GateDecisionsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.SubscriptionsExpiredTotal,
		m.ActiveSubscriptions,
		m.WorkspacesTotal,
		m.DomainsTotal,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware returns middleware that records request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// RecordResolution records a tenant resolution outcome
func (m *Metrics) RecordResolution(outcome string, duration time.Duration) {
	m.TenantResolutionsTotal.WithLabelValues(outcome).Inc()
	m.TenantResolutionLatency.Observe(duration.Seconds())
}

// RecordPermissionCheck records a permission check result
func (m *Metrics) RecordPermissionCheck(permission string, allowed bool) {
	m.PermissionChecksTotal.WithLabelValues(permission, strconv.FormatBool(allowed)).Inc()
}

// RecordGateDecision records a content gate decision
func (m *Metrics) RecordGateDecision(access string, allowed bool) {
	m.GateDecisionsTotal.WithLabelValues(access, strconv.FormatBool(allowed)).Inc()
}
