package anthropic

import (
	"context"
	"fmt"
	"strings"

	"mercator-hq/saturn/pkg/providers"
)

// Provider is the Anthropic provider adapter.
// It implements providers.Provider for Anthropic's Messages API.
type Provider struct {
	*providers.HTTPProvider
}

const (
	// DefaultAnthropicVersion is the API version to use
	DefaultAnthropicVersion = "2023-06-01"

	// defaultMaxTokens is sent when the request leaves max_tokens unset;
	// the Messages API requires it.
	defaultMaxTokens = 4096
)

// NewProvider creates a new Anthropic provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "anthropic",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for Anthropic",
		}
	}

	p := &Provider{HTTPProvider: providers.NewHTTPProvider(config)}

	p.Logger().Info("Anthropic provider initialized", "base_url", config.BaseURL)
	return p, nil
}

func (p *Provider) headers(stream bool) map[string]string {
	h := map[string]string{
		"x-api-key":         p.Config().APIKey,
		"anthropic-version": DefaultAnthropicVersion,
		"Content-Type":      "application/json",
	}
	if stream {
		h["Accept"] = "text/event-stream"
	}
	return h
}

// Chat sends a completion request to the Messages API.
func (p *Provider) Chat(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	anthropicReq, err := transformRequest(req)
	if err != nil {
		return nil, err
	}
	anthropicReq.Stream = false

	url := fmt.Sprintf("%s/v1/messages", p.Config().BaseURL)

	var anthropicResp AnthropicResponse
	if err := p.DoJSONRequest(ctx, "POST", url, anthropicReq, &anthropicResp, p.headers(false)); err != nil {
		return nil, err
	}

	resp := transformResponse(&anthropicResp)
	p.Logger().Debug("completion request succeeded", "model", resp.Model, "tokens", resp.Usage.TotalTokens)
	return resp, nil
}

// Stream opens a streaming completion.
func (p *Provider) Stream(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	anthropicReq, err := transformRequest(req)
	if err != nil {
		return nil, err
	}
	anthropicReq.Stream = true

	url := fmt.Sprintf("%s/v1/messages", p.Config().BaseURL)
	stream, err := openMessageStream(ctx, p.HTTPProvider, url, anthropicReq, p.headers(true))
	if err != nil {
		return nil, err
	}

	return providers.PumpStream(ctx, stream), nil
}

// Embeddings is not offered by the Messages API. Descriptors for Anthropic
// providers should not declare the embeddings capability.
func (p *Provider) Embeddings(ctx context.Context, req *providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	return nil, &providers.ValidationError{
		Field:   "capability",
		Message: fmt.Sprintf("provider %q does not support embeddings", p.Name()),
	}
}

// validateRequest validates the completion request.
func validateRequest(req *providers.CompletionRequest) error {
	if req == nil {
		return &providers.ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if req.Model == "" {
		return &providers.ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	return nil
}
