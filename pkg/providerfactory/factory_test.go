package providerfactory

import (
	"errors"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/providers"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		config  providers.ProviderConfig
		wantErr bool
	}{
		{
			name: "openai",
			config: providers.ProviderConfig{
				Name:    "openai",
				Type:    "openai",
				BaseURL: "https://api.openai.com/v1",
				APIKey:  "test-key",
				Timeout: 30 * time.Second,
			},
		},
		{
			name: "anthropic",
			config: providers.ProviderConfig{
				Name:    "anthropic",
				Type:    "anthropic",
				BaseURL: "https://api.anthropic.com",
				APIKey:  "test-key",
			},
		},
		{
			name: "generic",
			config: providers.ProviderConfig{
				Name:    "ollama",
				Type:    "generic",
				BaseURL: "http://localhost:11434/v1",
			},
		},
		{
			name:   "stub",
			config: providers.ProviderConfig{Name: "local", Type: "stub"},
		},
		{
			name:    "unsupported type",
			config:  providers.ProviderConfig{Name: "x", Type: "bedrock"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantErr {
				var configErr *providers.ConfigError
				if !errors.As(err, &configErr) {
					t.Fatalf("expected ConfigError, got %T: %v", err, err)
				}
				if configErr.Field != "type" {
					t.Errorf("expected error for field 'type', got %q", configErr.Field)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider() failed: %v", err)
			}
			defer provider.Close()
			if provider.Name() != tt.config.Name {
				t.Errorf("Name() = %q, want %q", provider.Name(), tt.config.Name)
			}
		})
	}
}

func TestAdapterConfig_InfersType(t *testing.T) {
	got := AdapterConfig("openai-primary", config.ProviderConfig{APIKey: "k", Timeout: time.Second})
	if got.Type != "openai" || got.Name != "openai-primary" || got.APIKey != "k" || got.Timeout != time.Second {
		t.Errorf("AdapterConfig() = %+v", got)
	}
}

func TestNewDescriptor(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		config   config.ProviderConfig
		wantCaps []providers.Capability
		wantErr  bool
	}{
		{
			name:     "default capabilities",
			provider: "stub",
			config:   config.ProviderConfig{Type: "stub", Priority: 7},
			wantCaps: []providers.Capability{providers.CapabilityChat, providers.CapabilityStream},
		},
		{
			name:     "explicit capabilities",
			provider: "openai",
			config:   config.ProviderConfig{Capabilities: []string{"embeddings"}},
			wantCaps: []providers.Capability{providers.CapabilityEmbeddings},
		},
		{
			name:     "unknown capability",
			provider: "openai",
			config:   config.ProviderConfig{Capabilities: []string{"vision"}},
			wantErr:  true,
		},
		{
			name:     "anthropic embeddings rejected",
			provider: "claude",
			config:   config.ProviderConfig{Capabilities: []string{"chat", "embeddings"}},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDescriptor(tt.provider, tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDescriptor() error = %v", err)
			}
			if d.Name != tt.provider || d.Priority != tt.config.Priority {
				t.Errorf("descriptor = %+v", d)
			}
			if len(d.Capabilities) != len(tt.wantCaps) {
				t.Fatalf("capabilities = %v, want %v", d.Capabilities, tt.wantCaps)
			}
			for i := range tt.wantCaps {
				if d.Capabilities[i] != tt.wantCaps[i] {
					t.Errorf("capabilities = %v, want %v", d.Capabilities, tt.wantCaps)
				}
			}
		})
	}
}
