// Package observability provides structured logging and Prometheus metrics
// for the cloud tracker.
//
// Loggers are zap based and carry the chi request ID when one is present in
// the request context. AuthMetrics records the outcome of every pass through
// the JWT filter and the latency of principal lookups.
package observability
