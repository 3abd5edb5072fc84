package providerfactory

import (
	"fmt"
	"log/slog"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/providers/anthropic"
	"mercator-hq/saturn/pkg/providers/generic"
	"mercator-hq/saturn/pkg/providers/openai"
	"mercator-hq/saturn/pkg/providers/stub"
)

// NewProvider creates a new provider instance based on the configuration.
//
// Supported provider types:
//   - "openai": OpenAI API
//   - "anthropic": Anthropic Messages API
//   - "generic": OpenAI-compatible APIs (Ollama, LM Studio, vLLM, etc.)
//   - "stub": deterministic in-process provider
//
// Example:
//
//	provider, err := NewProvider(providers.ProviderConfig{
//	    Name:   "openai",
//	    Type:   "openai",
//	    APIKey: "sk-...",
//	})
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
func NewProvider(cfg providers.ProviderConfig) (providers.Provider, error) {
	slog.Debug("creating provider",
		"name", cfg.Name,
		"type", cfg.Type,
		"base_url", cfg.BaseURL,
	)

	var (
		provider providers.Provider
		err      error
	)
	switch cfg.Type {
	case "openai":
		provider, err = openai.NewProvider(cfg)
	case "anthropic":
		provider, err = anthropic.NewProvider(cfg)
	case "generic":
		provider, err = generic.NewProvider(cfg)
	case "stub":
		provider, err = stub.NewProvider(cfg)
	default:
		return nil, &providers.ConfigError{
			Provider: cfg.Name,
			Field:    "type",
			Message:  fmt.Sprintf("unsupported provider type: %q (supported: openai, anthropic, generic, stub)", cfg.Type),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", cfg.Name, err)
	}

	slog.Info("provider created",
		"name", cfg.Name,
		"type", cfg.Type,
	)
	return provider, nil
}

// AdapterConfig converts a configured provider into the adapter configuration.
func AdapterConfig(name string, pc config.ProviderConfig) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:    name,
		Type:    pc.ResolvedType(name),
		BaseURL: pc.BaseURL,
		APIKey:  pc.APIKey,
		Timeout: pc.Timeout,
	}
}

// NewDescriptor derives the routing descriptor for a configured provider.
func NewDescriptor(name string, pc config.ProviderConfig) (providers.Descriptor, error) {
	caps := pc.Capabilities
	if len(caps) == 0 {
		caps = config.DefaultProviderCapabilities()
	}

	d := providers.Descriptor{
		Name:            name,
		Priority:        pc.Priority,
		CostPer1KIn:     pc.CostPer1KInput,
		CostPer1KOut:    pc.CostPer1KOutput,
		SupportedModels: append([]string(nil), pc.Models...),
	}
	for _, c := range caps {
		capability, err := providers.ParseCapability(c)
		if err != nil {
			return providers.Descriptor{}, &providers.ConfigError{Provider: name, Field: "capabilities", Message: err.Error()}
		}
		d.Capabilities = append(d.Capabilities, capability)
	}

	// The Messages API has no embeddings endpoint.
	if pc.ResolvedType(name) == "anthropic" && d.Supports(providers.CapabilityEmbeddings) {
		return providers.Descriptor{}, &providers.ConfigError{
			Provider: name,
			Field:    "capabilities",
			Message:  "anthropic providers cannot serve embeddings",
		}
	}
	return d, nil
}
