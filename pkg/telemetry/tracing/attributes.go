package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys in the "saturn.*" namespace. Raw prompt and response
// content is never recorded on a span.
const (
	AttrRequestID      = "saturn.request_id"
	AttrTenantID       = "saturn.tenant_id"
	AttrUserID         = "saturn.user_id"
	AttrEndpoint       = "saturn.endpoint"
	AttrClassification = "saturn.classification"

	AttrProvider  = "saturn.provider"
	AttrModel     = "saturn.model"
	AttrStreaming = "saturn.streaming"
	AttrAttempts  = "saturn.provider.attempts"

	AttrPolicyDecision = "saturn.policy.decision"
	AttrPolicyHash     = "saturn.policy.hash"

	AttrRedactionDirection = "saturn.redaction.direction"
	AttrRedactionCount     = "saturn.redaction.count"

	AttrConnectors = "saturn.retrieval.connectors"
	AttrChunks     = "saturn.retrieval.chunks"

	AttrBudgetRequested = "saturn.budget.requested"
	AttrBudgetRemaining = "saturn.budget.remaining"

	AttrTokensIn  = "saturn.tokens.in"
	AttrTokensOut = "saturn.tokens.out"

	AttrOutcome = "saturn.outcome"
	AttrReason  = "saturn.reason"
)

// RequestAttributes returns the identifying attributes of a request.
func RequestAttributes(requestID, tenantID, userID, endpoint, classification string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrTenantID, tenantID),
		attribute.String(AttrUserID, userID),
		attribute.String(AttrEndpoint, endpoint),
		attribute.String(AttrClassification, classification),
	}
}

// SetOutcome records the terminal outcome of a request span.
func SetOutcome(span trace.Span, outcome, reason string) {
	span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.String(AttrReason, reason),
	)
}

// SetTokens records token counts.
func SetTokens(span trace.Span, in, out int) {
	span.SetAttributes(
		attribute.Int(AttrTokensIn, in),
		attribute.Int(AttrTokensOut, out),
	)
}
