// Package pipeline enforces governance on every request that crosses the
// gateway.
//
// A Pipeline composes the decision gate, policy transforms, redaction,
// authorized retrieval, the token budget, the provider router, the audit
// chain and governance webhooks. Stages run in a fixed order and any of them
// can stop a request with a *governance.Error, in which case no later stage
// runs. Exactly one audit event is written per request whatever the outcome;
// when that write fails the caller receives an audit_write_failure error
// instead of the provider's answer.
//
// Streams are governed while they flow: deltas are redacted one by one and
// the budget is re-checked every few chunks. Budget settlement and the audit
// write happen when the stream ends, even if the client has disconnected.
package pipeline
