// Package observability builds the process-wide zap logger and the
// OpenTelemetry tracer provider.
//
// Spans are emitted around each fan-out (providers.execute_request) and each
// provider call (provider.<id>). The stdout exporter is meant for local
// development; traces are disabled unless TRACING_ENABLED is set.
package observability
