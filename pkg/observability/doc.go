// Package observability provides structured logging, Prometheus metrics,
// health checks, OpenTelemetry integration, and graceful shutdown for the
// Haven platform services.
package observability
