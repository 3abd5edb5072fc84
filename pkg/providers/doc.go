// Package providers defines the provider-agnostic request and response types,
// the Provider interface and the HTTP base shared by the concrete adapters.
//
// # Attempts
//
// Every Provider method performs a single upstream attempt. The HTTP base maps
// failures onto typed errors that carry the status used by the router's
// fallback classification:
//
//	*RateLimitError    429
//	*ProviderError     the upstream status
//	*TimeoutError      503
//	*ConnectionError   502
//	*ParseError        502
//
// Errors without a status (validation, configuration, caller cancellation)
// are terminal.
//
// # Adapters
//
//   - openai: chat completions, SSE streaming and embeddings
//   - anthropic: Messages API with SSE streaming
//   - generic: OpenAI-compatible endpoints with an optional key
//   - stub: deterministic in-process echo for local runs
//
// # Descriptors
//
// A Descriptor carries the static routing metadata of a configured provider:
// priority, capabilities, per-1K token prices and the supported model list.
// Entries in SupportedModels that end in "*" match by prefix.
//
// # Streaming
//
//	chunks, err := provider.Stream(ctx, req)
//	if err != nil {
//	    return err
//	}
//	for chunk := range chunks {
//	    if chunk.Error != nil {
//	        return chunk.Error
//	    }
//	    fmt.Print(chunk.Delta)
//	}
package providers
