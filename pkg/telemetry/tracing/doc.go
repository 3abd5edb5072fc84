// Package tracing provides OpenTelemetry tracing for Saturn.
//
// New installs an OTLP gRPC exporter and a parent-based sampler (always,
// never or ratio) on the global tracer provider. Pipeline stages open spans
// through Start, so they record into whatever provider is installed and
// cost almost nothing when tracing is disabled:
//
//	ctx, span := tracing.Start(ctx, tracing.SpanPolicy,
//	    attribute.String(tracing.AttrRequestID, rc.RequestID))
//	decision := gate.Evaluate(ctx, rc, estimated)
//	tracing.End(span, nil)
//
// Span names follow the request flow: gateway.request, policy.evaluate,
// rag.retrieve, redaction.scan, budget.check, provider.call and
// audit.persist.
//
// Configuration:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    endpoint: "otel-collector:4317"
//	    insecure: true
package tracing
