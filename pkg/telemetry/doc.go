// Package telemetry groups Saturn's observability packages:
//
//   - logging: slog construction, context identifiers and log redaction
//   - metrics: the Prometheus collector and /metrics handler
//   - tracing: OpenTelemetry spans for each pipeline stage
//   - health: the /health dependency report
//
// None of them ever records raw prompt or response content.
package telemetry
