package routing

import (
	"time"

	"mercator-hq/saturn/pkg/providers"
)

// Entry pairs a provider with its routing descriptor.
type Entry struct {
	Descriptor providers.Descriptor
	Provider   providers.Provider
}

// Name returns the descriptor name.
func (e Entry) Name() string {
	return e.Descriptor.Name
}

// Criteria selects and orders the chain for one request.
type Criteria struct {
	// Capability the provider must declare.
	Capability providers.Capability

	// Model the provider must accept. Empty accepts any provider.
	Model string

	// AllowedProviders restricts the chain when non-empty.
	AllowedProviders []string

	// CostAware re-orders the chain by estimated cost, cheapest first.
	// Providers with equal cost keep their priority order.
	CostAware bool

	// EstimatedIn and EstimatedOut are the token estimates used for
	// cost-aware ordering.
	EstimatedIn  int
	EstimatedOut int

	// Primary is moved to the head of the chain when it is eligible.
	Primary string
}

// Outcome classifies one provider attempt.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeRetryableError Outcome = "retryable_error"
	OutcomeTerminalError  Outcome = "terminal_error"
	OutcomeTimeout        Outcome = "timeout"
)

// Attempt records one provider call.
type Attempt struct {
	Provider   string        `json:"provider"`
	Outcome    Outcome       `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	Error      string        `json:"error,omitempty"`
}

// Route describes how a request was routed. It is embedded in every result.
type Route struct {
	// Provider is the provider that answered.
	Provider string

	// Chain lists the providers attempted, in order. Eligible providers
	// after the one that answered are not included.
	Chain []string

	// Attempts lists every call in order, including the successful one.
	Attempts []Attempt
}

// Fallbacks returns the number of failed attempts before the answer.
func (r Route) Fallbacks() int {
	if len(r.Attempts) == 0 {
		return 0
	}
	return len(r.Attempts) - 1
}

// ChatResult is a successful chat completion.
type ChatResult struct {
	Route
	Response *providers.CompletionResponse
}

// StreamResult is an open stream from the committed provider. Chunks replays
// the validated first chunk before the rest of the stream.
type StreamResult struct {
	Route
	Chunks <-chan *providers.StreamChunk
}

// EmbeddingsResult is a successful embeddings call.
type EmbeddingsResult struct {
	Route
	Response *providers.EmbeddingResponse
}

// ProviderStats is a snapshot of the attempts made against one provider.
type ProviderStats struct {
	Attempts        int64
	Successes       int64
	RetryableErrors int64
	TerminalErrors  int64
	Timeouts        int64
}

// RoutingStats is a point-in-time snapshot of router statistics.
type RoutingStats struct {
	// TotalRequests is the number of routed requests.
	TotalRequests int64

	// Fallbacks is the number of requests answered by a provider other than
	// the head of the chain.
	Fallbacks int64

	// Exhausted is the number of requests where every provider failed.
	Exhausted int64

	// Providers holds per-provider attempt counters.
	Providers map[string]ProviderStats

	// LastResetTime is when the statistics were last reset.
	LastResetTime time.Time
}
