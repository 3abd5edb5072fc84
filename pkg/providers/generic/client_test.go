package generic

import (
	"context"
	"errors"
	"net/http"
	"testing"

	testhelpers "mercator-hq/saturn/internal/providers"
	"mercator-hq/saturn/pkg/providers"
)

func TestProvider_KeylessChat(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testhelpers.MockOpenAIResponse("Hello from Ollama!", "llama3"),
	})

	config := testhelpers.TestConfigWithURL("ollama", "generic", mock.URL()+"/v1")
	config.APIKey = ""
	p, err := NewProvider(config)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer p.Close()

	resp, err := p.Chat(context.Background(), testhelpers.UserRequest("llama3", "hi"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "Hello from Ollama!" {
		t.Errorf("Content = %q", resp.Content)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name() = %q", p.Name())
	}

	_, headers := mock.LastRequest()
	if got := headers.Get("Authorization"); got != "" {
		t.Errorf("keyless provider sent Authorization %q", got)
	}
}

func TestNewProvider_RequiresBaseURL(t *testing.T) {
	_, err := NewProvider(providers.ProviderConfig{Name: "local"})
	var ce *providers.ConfigError
	if !errors.As(err, &ce) || ce.Field != "base_url" {
		t.Fatalf("expected base_url ConfigError, got %v", err)
	}
}
