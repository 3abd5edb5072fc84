package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	testhelpers "mercator-hq/saturn/internal/providers"
	"mercator-hq/saturn/pkg/providers"
)

func newTestProvider(t *testing.T, mock *testhelpers.MockServer) *Provider {
	t.Helper()
	p, err := NewProvider(testhelpers.TestConfigWithURL("openai", "openai", mock.URL()+"/v1"))
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProvider_Chat(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testhelpers.MockOpenAIResponse("Hello, world!", "gpt-4o"),
	})

	p := newTestProvider(t, mock)
	req := testhelpers.UserRequest("gpt-4o", "Hello")
	req.MaxTokens = 64

	resp, err := p.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "Hello, world!" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 30 {
		t.Errorf("TotalTokens = %d, want 30", resp.Usage.TotalTokens)
	}
	if resp.FinishReason != providers.FinishReasonStop {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", mock.RequestCount())
	}

	body, headers := mock.LastRequest()
	if headers.Get("Authorization") != "Bearer test-key" {
		t.Errorf("Authorization = %q", headers.Get("Authorization"))
	}
	var sent OpenAIRequest
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.MaxTokens != 64 || sent.Stream {
		t.Errorf("unexpected sent request: %+v", sent)
	}
}

func TestProvider_ChatErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"rate limited", http.StatusTooManyRequests},
		{"unavailable", http.StatusServiceUnavailable},
		{"bad request", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testhelpers.NewMockServer()
			defer mock.Close()
			mock.SetResponse("/v1/chat/completions", testhelpers.MockErrorResponse(tt.status, "nope"))

			p := newTestProvider(t, mock)
			_, err := p.Chat(context.Background(), testhelpers.UserRequest("gpt-4o", "hi"))
			if got := providers.StatusCode(err); got != tt.status {
				t.Errorf("StatusCode = %d, want %d (err %v)", got, tt.status, err)
			}
			if mock.RequestCount() != 1 {
				t.Errorf("RequestCount = %d, want a single attempt", mock.RequestCount())
			}
		})
	}
}

func TestProvider_ChatValidation(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	p := newTestProvider(t, mock)

	_, err := p.Chat(context.Background(), &providers.CompletionRequest{Model: "gpt-4o"})
	var ve *providers.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if mock.RequestCount() != 0 {
		t.Error("invalid request reached the upstream")
	}
}

func TestProvider_Embeddings(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/embeddings", testhelpers.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testhelpers.MockOpenAIEmbeddingResponse("text-embedding-3-small", 2),
	})

	p := newTestProvider(t, mock)
	resp, err := p.Embeddings(context.Background(), &providers.EmbeddingRequest{
		Model: "text-embedding-3-small",
		Input: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Embeddings() error = %v", err)
	}
	if len(resp.Data) != 2 || len(resp.Data[1].Vector) != 3 {
		t.Errorf("unexpected embeddings: %+v", resp.Data)
	}
	if resp.Usage.PromptTokens != 8 {
		t.Errorf("PromptTokens = %d, want 8", resp.Usage.PromptTokens)
	}
}

func TestNewProvider_RequiresKey(t *testing.T) {
	_, err := NewProvider(providers.ProviderConfig{Name: "openai"})
	var ce *providers.ConfigError
	if !errors.As(err, &ce) || ce.Field != "api_key" {
		t.Fatalf("expected api_key ConfigError, got %v", err)
	}
}
