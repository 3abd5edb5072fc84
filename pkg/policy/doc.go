// Package policy implements the fail-closed policy decision gate.
//
// A Client asks a Source (the remote decision service over HTTP, or the
// built-in local rules) for one Decision per request. The response is
// validated against an embedded JSON schema before it is trusted; timeouts,
// transport failures, non-2xx answers and contract violations all produce
// an unavailable deny carrying the cause.
//
// Decisions may mandate transforms on the outbound request. ApplyTransforms
// applies them to a copy in order and rejects any it does not understand,
// so an unsupported transform blocks the request rather than being skipped.
//
// In observe mode a deny is recorded but does not block.
package policy
