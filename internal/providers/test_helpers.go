package providers

import (
	"time"

	"mercator-hq/saturn/pkg/providers"
)

// TestConfigWithURL returns a provider configuration pointed at baseURL.
func TestConfigWithURL(name, providerType, baseURL string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:                name,
		Type:                providerType,
		BaseURL:             baseURL,
		APIKey:              "test-key",
		Timeout:             5 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
	}
}

// UserRequest creates a single-turn completion request.
func UserRequest(model, content string) *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Model:    model,
		Messages: []providers.Message{{Role: providers.RoleUser, Content: content}},
	}
}

// CollectStreamChunks drains a stream channel, stopping at the first error chunk.
func CollectStreamChunks(chunks <-chan *providers.StreamChunk) ([]*providers.StreamChunk, error) {
	var collected []*providers.StreamChunk
	for chunk := range chunks {
		if chunk.Error != nil {
			return collected, chunk.Error
		}
		collected = append(collected, chunk)
	}
	return collected, nil
}

// ConcatenateChunks concatenates the delta content from all chunks.
func ConcatenateChunks(chunks []*providers.StreamChunk) string {
	var result string
	for _, chunk := range chunks {
		result += chunk.Delta
	}
	return result
}
