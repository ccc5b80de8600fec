// Package observe provides structured logging and telemetry for the badge
// service: a JSON logger, OpenTelemetry metrics exported through a
// Prometheus registry, and optional stdout tracing for debugging.
package observe
