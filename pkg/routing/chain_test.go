package routing

import (
	"reflect"
	"testing"

	mockrouting "mercator-hq/saturn/internal/routing"
	"mercator-hq/saturn/pkg/providers"
)

func entry(name string, priority int, caps []providers.Capability, models ...string) Entry {
	return Entry{
		Descriptor: providers.Descriptor{
			Name:            name,
			Priority:        priority,
			Capabilities:    caps,
			SupportedModels: models,
		},
		Provider: mockrouting.NewMockProvider(name),
	}
}

var chatStream = []providers.Capability{providers.CapabilityChat, providers.CapabilityStream}

func TestBuildChain(t *testing.T) {
	priced := func(e Entry, in, out float64) Entry {
		e.Descriptor.CostPer1KIn = in
		e.Descriptor.CostPer1KOut = out
		return e
	}

	entries := []Entry{
		entry("zeta", 10, chatStream),
		entry("alpha", 10, chatStream),
		entry("first", 1, []providers.Capability{providers.CapabilityChat}),
		entry("embedder", 5, []providers.Capability{providers.CapabilityEmbeddings}),
		entry("gpt-only", 3, chatStream, "gpt-4*"),
	}

	tests := []struct {
		name     string
		entries  []Entry
		criteria Criteria
		want     []string
	}{
		{
			name:     "priority then name",
			entries:  entries,
			criteria: Criteria{Capability: providers.CapabilityChat},
			want:     []string{"first", "gpt-only", "alpha", "zeta"},
		},
		{
			name:     "capability filter",
			entries:  entries,
			criteria: Criteria{Capability: providers.CapabilityStream},
			want:     []string{"gpt-only", "alpha", "zeta"},
		},
		{
			name:     "model filter",
			entries:  entries,
			criteria: Criteria{Capability: providers.CapabilityChat, Model: "claude-3"},
			want:     []string{"first", "alpha", "zeta"},
		},
		{
			name:     "model prefix match",
			entries:  entries,
			criteria: Criteria{Capability: providers.CapabilityStream, Model: "gpt-4o"},
			want:     []string{"gpt-only", "alpha", "zeta"},
		},
		{
			name:     "allowed providers",
			entries:  entries,
			criteria: Criteria{Capability: providers.CapabilityChat, AllowedProviders: []string{"zeta", "first"}},
			want:     []string{"first", "zeta"},
		},
		{
			name:     "primary moved to head",
			entries:  entries,
			criteria: Criteria{Capability: providers.CapabilityChat, Primary: "zeta"},
			want:     []string{"zeta", "first", "gpt-only", "alpha"},
		},
		{
			name:     "ineligible primary ignored",
			entries:  entries,
			criteria: Criteria{Capability: providers.CapabilityChat, Primary: "embedder"},
			want:     []string{"first", "gpt-only", "alpha", "zeta"},
		},
		{
			name: "cost aware keeps priority among equal cost",
			entries: []Entry{
				priced(entry("expensive", 1, chatStream), 0.03, 0.06),
				priced(entry("cheap-b", 3, chatStream), 0.001, 0.002),
				priced(entry("cheap-a", 2, chatStream), 0.001, 0.002),
			},
			criteria: Criteria{Capability: providers.CapabilityChat, CostAware: true, EstimatedIn: 100, EstimatedOut: 100},
			want:     []string{"cheap-a", "cheap-b", "expensive"},
		},
		{
			name:     "embeddings capability",
			entries:  entries,
			criteria: Criteria{Capability: providers.CapabilityEmbeddings, Model: "text-embedding-3"},
			want:     []string{"embedder"},
		},
		{
			name:     "empty",
			entries:  nil,
			criteria: Criteria{Capability: providers.CapabilityChat},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Names(BuildChain(tt.entries, tt.criteria))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildChain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildChain_DoesNotModifyInput(t *testing.T) {
	entries := []Entry{entry("b", 2, chatStream), entry("a", 1, chatStream)}
	BuildChain(entries, Criteria{Capability: providers.CapabilityChat})
	if entries[0].Name() != "b" {
		t.Error("BuildChain must not reorder the caller's slice")
	}
}
