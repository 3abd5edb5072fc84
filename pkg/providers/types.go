package providers

import "time"

// Message is a single provider-agnostic chat message.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest is a provider-agnostic chat completion request.
// Adapters transform it to their own wire format.
type CompletionRequest struct {
	// Model is the model identifier (e.g., "gpt-4o", "claude-3-5-sonnet-latest")
	Model string `json:"model"`

	// Messages is the conversation history
	Messages []Message `json:"messages"`

	// Temperature controls randomness. Nil leaves the provider default.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate. Zero means unset.
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling
	TopP float64 `json:"top_p,omitempty"`

	// Stream indicates whether to stream the response
	Stream bool `json:"stream,omitempty"`

	// Stop sequences that will halt generation
	Stop []string `json:"stop,omitempty"`

	// User is an optional end-user identifier forwarded to the provider
	User string `json:"user,omitempty"`
}

// Clone returns a deep copy of the request.
func (r *CompletionRequest) Clone() *CompletionRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.Messages = append([]Message(nil), r.Messages...)
	out.Stop = append([]string(nil), r.Stop...)
	if r.Temperature != nil {
		t := *r.Temperature
		out.Temperature = &t
	}
	return &out
}

// CompletionResponse is a provider-agnostic completion response.
type CompletionResponse struct {
	ID           string     `json:"id"`
	Model        string     `json:"model"`
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Usage        TokenUsage `json:"usage"`
	Created      int64      `json:"created"`
}

// StreamChunk is a single chunk of a streaming response.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final chunk
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is included in the final chunk when the provider reports it
	Usage *TokenUsage `json:"usage,omitempty"`

	// Error is set if the stream failed after it was opened
	Error error `json:"-"`

	Created int64 `json:"created"`
}

// EmbeddingRequest is a provider-agnostic embeddings request.
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// Clone returns a deep copy of the request.
func (r *EmbeddingRequest) Clone() *EmbeddingRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.Input = append([]string(nil), r.Input...)
	return &out
}

// Embedding is one embedding vector.
type Embedding struct {
	Index  int       `json:"index"`
	Vector []float64 `json:"embedding"`
}

// EmbeddingResponse is a provider-agnostic embeddings response.
type EmbeddingResponse struct {
	Model string      `json:"model"`
	Data  []Embedding `json:"data"`
	Usage TokenUsage  `json:"usage"`
}

// ProviderHealth tracks passive health derived from request outcomes.
type ProviderHealth struct {
	IsHealthy             bool
	LastCheck             time.Time
	LastError             error
	ConsecutiveFailures   int
	LastSuccessfulRequest time.Time
	TotalRequests         int64
	FailedRequests        int64
}

// ProviderConfig contains configuration for a single provider instance.
// This is a subset of config.ProviderConfig with only the fields needed by adapters.
type ProviderConfig struct {
	// Name is the provider identifier (e.g., "openai", "anthropic")
	Name string

	// Type is the adapter type (openai, anthropic, generic, stub)
	Type string

	// BaseURL is the API endpoint base URL
	BaseURL string

	// APIKey is the authentication key
	APIKey string

	// Timeout bounds a single upstream call
	Timeout time.Duration

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool
	IdleConnTimeout time.Duration
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)
