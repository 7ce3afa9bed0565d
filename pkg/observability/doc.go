// Package observability provides structured logging, Prometheus metrics, and
// health checks for the entitlement engine.
//
// Logging uses stdlib slog with a JSON handler. Metrics cover the three hot
// paths: access resolution, seat enforcement, and subscription
// reconciliation, plus database pool gauges. The health checker backs the
// daemon's liveness and readiness probes.
package observability
