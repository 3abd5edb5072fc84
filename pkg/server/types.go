package server

import (
	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/retrieval"
)

// ChatCompletionRequest is the OpenAI-compatible chat completion request body,
// extended with the gateway's retrieval options.
type ChatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []providers.Message `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
	User        string              `json:"user,omitempty"`

	// Retrieval asks the gateway to ground the answer on the named
	// connectors. Connector access is decided by policy.
	Retrieval *governance.RetrievalOptions `json:"retrieval,omitempty"`
}

func (r *ChatCompletionRequest) toProvider() *providers.CompletionRequest {
	out := &providers.CompletionRequest{
		Model:       r.Model,
		Messages:    r.Messages,
		Temperature: r.Temperature,
		Stream:      r.Stream,
		Stop:        r.Stop,
		User:        r.User,
	}
	if r.MaxTokens != nil {
		out.MaxTokens = *r.MaxTokens
	}
	if r.TopP != nil {
		out.TopP = *r.TopP
	}
	return out
}

// ChatCompletionResponse is the non-streaming response body.
type ChatCompletionResponse struct {
	ID        string               `json:"id"`
	Object    string               `json:"object"`
	Created   int64                `json:"created"`
	Model     string               `json:"model"`
	Choices   []Choice             `json:"choices"`
	Usage     providers.TokenUsage `json:"usage"`
	Citations []retrieval.Citation `json:"citations,omitempty"`
}

// Choice is one completion choice.
type Choice struct {
	Index        int               `json:"index"`
	Message      providers.Message `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

// ChatCompletionChunk is one server-sent event of a streaming response.
type ChatCompletionChunk struct {
	ID      string                `json:"id"`
	Object  string                `json:"object"`
	Created int64                 `json:"created"`
	Model   string                `json:"model"`
	Choices []StreamChoice        `json:"choices"`
	Usage   *providers.TokenUsage `json:"usage,omitempty"`
}

// StreamChoice carries the delta of a streamed choice.
type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is incremental content.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// EmbeddingsRequest is the OpenAI-compatible embeddings request body. Input
// accepts a single string or an array of strings.
type EmbeddingsRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// EmbeddingsResponse is the embeddings response body.
type EmbeddingsResponse struct {
	Object string               `json:"object"`
	Model  string               `json:"model"`
	Data   []EmbeddingData      `json:"data"`
	Usage  providers.TokenUsage `json:"usage"`
}

// EmbeddingData is one embedding vector.
type EmbeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// ErrorResponse is the error envelope returned for every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request. Code is the machine-readable reason
// and Type its category.
type ErrorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	RequestID  string `json:"request_id,omitempty"`
	PolicyHash string `json:"policy_hash,omitempty"`
}

func chatResponse(id string, resp *providers.CompletionResponse, citations []retrieval.Citation) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:      "chatcmpl-" + id,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   resp.Model,
		Choices: []Choice{{
			Index:        0,
			Message:      providers.Message{Role: "assistant", Content: resp.Content},
			FinishReason: resp.FinishReason,
		}},
		Usage:     resp.Usage,
		Citations: citations,
	}
}

func streamChunk(id string, c *providers.StreamChunk, first bool) *ChatCompletionChunk {
	choice := StreamChoice{Delta: Delta{Content: c.Delta}}
	if first {
		choice.Delta.Role = "assistant"
	}
	if c.FinishReason != "" {
		reason := c.FinishReason
		choice.FinishReason = &reason
	}
	return &ChatCompletionChunk{
		ID:      "chatcmpl-" + id,
		Object:  "chat.completion.chunk",
		Created: c.Created,
		Model:   c.Model,
		Choices: []StreamChoice{choice},
		Usage:   c.Usage,
	}
}

func embeddingsResponse(resp *providers.EmbeddingResponse) *EmbeddingsResponse {
	out := &EmbeddingsResponse{
		Object: "list",
		Model:  resp.Model,
		Data:   make([]EmbeddingData, 0, len(resp.Data)),
		Usage:  resp.Usage,
	}
	for _, d := range resp.Data {
		out.Data = append(out.Data, EmbeddingData{Object: "embedding", Index: d.Index, Embedding: d.Vector})
	}
	return out
}
