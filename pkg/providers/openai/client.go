package openai

import (
	"context"
	"fmt"
	"strings"

	"mercator-hq/saturn/pkg/providers"
)

// Provider is the OpenAI provider adapter.
// It implements providers.Provider for the chat completions and embeddings APIs.
type Provider struct {
	*providers.HTTPProvider
	omitAuth bool
}

// NewProvider creates a new OpenAI provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "openai",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for OpenAI",
		}
	}

	p := &Provider{HTTPProvider: providers.NewHTTPProvider(config)}

	p.Logger().Info("OpenAI provider initialized", "base_url", config.BaseURL)
	return p, nil
}

func (p *Provider) headers(stream bool) map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
	}
	if key := p.Config().APIKey; key != "" && !p.omitAuth {
		h["Authorization"] = "Bearer " + key
	}
	if stream {
		h["Accept"] = "text/event-stream"
	}
	return h
}

// OmitAuthorization stops the adapter from sending an Authorization header.
// Keyless OpenAI-compatible endpoints use it.
func (p *Provider) OmitAuthorization() {
	p.omitAuth = true
}

// Chat sends a chat completion request.
func (p *Provider) Chat(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	openaiReq := transformRequest(req)
	openaiReq.Stream = false
	openaiReq.StreamOptions = nil

	url := fmt.Sprintf("%s/chat/completions", p.Config().BaseURL)

	var openaiResp OpenAIResponse
	if err := p.DoJSONRequest(ctx, "POST", url, openaiReq, &openaiResp, p.headers(false)); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&openaiResp)
	if err != nil {
		return nil, &providers.ParseError{Provider: p.Name(), Cause: err}
	}

	p.Logger().Debug("completion request succeeded", "model", resp.Model, "tokens", resp.Usage.TotalTokens)
	return resp, nil
}

// Stream opens a streaming chat completion.
func (p *Provider) Stream(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	openaiReq := transformRequest(req)
	openaiReq.Stream = true
	openaiReq.StreamOptions = &StreamOptions{IncludeUsage: true}

	url := fmt.Sprintf("%s/chat/completions", p.Config().BaseURL)
	stream, err := openChatStream(ctx, p.HTTPProvider, url, openaiReq, p.headers(true))
	if err != nil {
		return nil, err
	}

	return providers.PumpStream(ctx, stream), nil
}

// Embeddings computes embeddings for the request inputs.
func (p *Provider) Embeddings(ctx context.Context, req *providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	if req == nil || req.Model == "" {
		return nil, &providers.ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Input) == 0 {
		return nil, &providers.ValidationError{Field: "input", Message: "at least one input is required"}
	}

	url := fmt.Sprintf("%s/embeddings", p.Config().BaseURL)
	body := &OpenAIEmbeddingRequest{Model: req.Model, Input: req.Input}

	var embResp OpenAIEmbeddingResponse
	if err := p.DoJSONRequest(ctx, "POST", url, body, &embResp, p.headers(false)); err != nil {
		return nil, err
	}
	if len(embResp.Data) != len(req.Input) {
		return nil, &providers.ParseError{
			Provider: p.Name(),
			Cause:    fmt.Errorf("expected %d embeddings, got %d", len(req.Input), len(embResp.Data)),
		}
	}

	return transformEmbeddingResponse(&embResp), nil
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
