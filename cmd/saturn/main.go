// Saturn is an in-path governance gateway for LLM traffic.
//
// Every chat, streaming and embeddings request passes a policy decision,
// PII/PHI redaction, authorized retrieval, a per-tenant token budget and
// provider fallback routing, and leaves exactly one entry in a hash-chained
// audit log.
//
// Usage:
//
//	# Start the gateway
//	saturn run --config saturn.yaml
//
//	# Check a configuration file
//	saturn validate --config saturn.yaml
//
//	# Verify the audit chain
//	saturn audit verify
//
//	# Show the audit event for one request
//	saturn audit show --request-id 7f3c...
//
//	# Re-deliver dead-lettered webhooks
//	saturn webhook replay --dry-run
package main

func main() {
	Execute()
}
