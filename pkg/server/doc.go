// Package server is the HTTP ingress of the gateway.
//
// It exposes an OpenAI-compatible surface in front of the governance
// pipeline:
//
//   - POST /v1/chat/completions - chat completion, as JSON or server-sent
//     events when the body sets "stream": true
//   - POST /v1/embeddings - embeddings
//   - GET /health - dependency health report
//   - GET /metrics - Prometheus exposition
//
// The ingress context comes from headers. X-Request-ID is generated when
// absent and echoed on every response. X-Tenant-ID and X-User-ID identify the
// caller, and X-Data-Classification labels the payload (public, internal, pii
// or phi; the configured default otherwise). Retrieval is requested through
// the "retrieval" field of the chat body:
//
//	{
//	  "model": "gpt-4o",
//	  "messages": [{"role": "user", "content": "What is our refund policy?"}],
//	  "retrieval": {"connectors": ["handbook"], "top_k": 3}
//	}
//
// Every failure is returned in one envelope:
//
//	{"error": {"code": "budget_exceeded", "message": "...", "type": "policy",
//	           "request_id": "...", "policy_hash": "..."}}
//
// The server does no governance of its own. It parses, builds the request
// context and maps pipeline results and errors onto HTTP.
package server
