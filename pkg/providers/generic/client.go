package generic

import (
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/providers/openai"
)

// Provider is a generic OpenAI-compatible provider adapter for endpoints such
// as Ollama, vLLM or LM Studio. It reuses the OpenAI wire format but requires
// an explicit base URL and treats the API key as optional.
type Provider struct {
	*openai.Provider
}

// placeholderKey satisfies the OpenAI adapter's key check and is not sent upstream.
const placeholderKey = "not-required"

// NewProvider creates a new generic OpenAI-compatible provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "generic",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base URL is required for generic provider",
		}
	}

	keyless := config.APIKey == ""
	if keyless {
		config.APIKey = placeholderKey
	}

	openaiProvider, err := openai.NewProvider(config)
	if err != nil {
		return nil, err
	}
	if keyless {
		openaiProvider.OmitAuthorization()
	}

	return &Provider{Provider: openaiProvider}, nil
}
