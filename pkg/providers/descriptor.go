package providers

import (
	"fmt"
	"strings"
)

// Capability is an operation a provider can serve.
type Capability string

const (
	CapabilityChat       Capability = "chat"
	CapabilityStream     Capability = "stream"
	CapabilityEmbeddings Capability = "embeddings"
)

// ParseCapability parses a configured capability name.
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(strings.ToLower(s)); c {
	case CapabilityChat, CapabilityStream, CapabilityEmbeddings:
		return c, nil
	default:
		return "", fmt.Errorf("unknown capability %q", s)
	}
}

// Descriptor is the static routing metadata of a configured provider.
type Descriptor struct {
	// Name is the provider's configured name
	Name string

	// Priority orders providers in a chain; lower values are tried first
	Priority int

	// Capabilities lists the operations the provider serves
	Capabilities []Capability

	// CostPer1KIn is the USD price per 1000 prompt tokens
	CostPer1KIn float64

	// CostPer1KOut is the USD price per 1000 completion tokens
	CostPer1KOut float64

	// SupportedModels restricts the models the provider accepts. An entry
	// ending in "*" matches by prefix. Empty means any model.
	SupportedModels []string
}

// Supports reports whether the provider declares the capability.
func (d Descriptor) Supports(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// SupportsModel reports whether the provider accepts the model.
func (d Descriptor) SupportsModel(model string) bool {
	if len(d.SupportedModels) == 0 {
		return true
	}
	for _, m := range d.SupportedModels {
		if prefix, ok := strings.CutSuffix(m, "*"); ok {
			if strings.HasPrefix(model, prefix) {
				return true
			}
			continue
		}
		if m == model {
			return true
		}
	}
	return false
}
