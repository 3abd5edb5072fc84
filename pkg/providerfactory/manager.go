package providerfactory

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/routing"
)

// Manager owns the configured provider instances and their routing
// descriptors. It handles provider lifecycle (creation and shutdown).
//
// Manager is thread-safe and can be used concurrently.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]routing.Entry
	logger  *slog.Logger
}

// NewManager creates an empty provider manager.
func NewManager() *Manager {
	return &Manager{
		entries: make(map[string]routing.Entry),
		logger:  slog.Default().With("component", "providerfactory.manager"),
	}
}

// NewManagerFromConfig creates a manager holding every enabled provider in
// the configuration.
func NewManagerFromConfig(cfg map[string]config.ProviderConfig) (*Manager, error) {
	m := NewManager()
	if err := m.LoadFromConfig(cfg); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// AddProvider creates a provider and its descriptor. If a provider with the
// same name already exists, it is replaced and the old one is closed.
func (m *Manager) AddProvider(name string, pc config.ProviderConfig) error {
	descriptor, err := NewDescriptor(name, pc)
	if err != nil {
		return fmt.Errorf("failed to add provider %q: %w", name, err)
	}
	provider, err := NewProvider(AdapterConfig(name, pc))
	if err != nil {
		return fmt.Errorf("failed to add provider %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[name]; ok {
		m.logger.Warn("replacing existing provider", "name", name)
		_ = existing.Provider.Close()
	}
	m.entries[name] = routing.Entry{Descriptor: descriptor, Provider: provider}

	m.logger.Info("provider added to manager",
		"name", name,
		"priority", descriptor.Priority,
		"capabilities", descriptor.Capabilities,
		"total_providers", len(m.entries),
	)
	return nil
}

// RemoveProvider closes and removes a provider.
func (m *Manager) RemoveProvider(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return fmt.Errorf("provider %q not found", name)
	}
	delete(m.entries, name)
	if err := e.Provider.Close(); err != nil {
		return fmt.Errorf("failed to close provider %q: %w", name, err)
	}
	return nil
}

// LoadFromConfig adds every enabled provider. Disabled providers are skipped.
func (m *Manager) LoadFromConfig(cfg map[string]config.ProviderConfig) error {
	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		pc := cfg[name]
		if pc.Disabled {
			m.logger.Info("skipping disabled provider", "name", name)
			continue
		}
		if err := m.AddProvider(name, pc); err != nil {
			return err
		}
		loaded++
	}

	m.logger.Info("providers loaded", "count", loaded)
	return nil
}

// GetProvider returns a provider by name.
func (m *Manager) GetProvider(name string) (providers.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return e.Provider, nil
}

// Entries returns the routing entries sorted by name.
func (m *Manager) Entries() []routing.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]routing.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Descriptors returns the routing descriptors sorted by name.
func (m *Manager) Descriptors() []providers.Descriptor {
	entries := m.Entries()
	out := make([]providers.Descriptor, len(entries))
	for i, e := range entries {
		out[i] = e.Descriptor
	}
	return out
}

// ProviderNames returns the provider names sorted.
func (m *Manager) ProviderNames() []string {
	return routing.Names(m.Entries())
}

// ProviderCount returns the number of providers.
func (m *Manager) ProviderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close closes all providers.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, e := range m.entries {
		if err := e.Provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	m.entries = make(map[string]routing.Entry)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.logger.Info("provider manager closed")
	return nil
}

// GetHealthSummary returns passive health observed from real traffic.
// Providers that do not report health count as healthy.
func (m *Manager) GetHealthSummary() HealthSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := HealthSummary{
		Total:   len(m.entries),
		Details: make(map[string]providers.ProviderHealth),
	}
	for name, e := range m.entries {
		health := providers.ProviderHealth{IsHealthy: true}
		if reporter, ok := e.Provider.(providers.HealthReporter); ok {
			health = reporter.Health()
		}
		summary.Details[name] = health
		if health.IsHealthy {
			summary.Healthy++
		}
	}
	summary.Unhealthy = summary.Total - summary.Healthy
	return summary
}

// HealthSummary provides an overview of provider health across the manager.
type HealthSummary struct {
	// Total is the total number of providers
	Total int `json:"total"`

	// Healthy is the number of healthy providers
	Healthy int `json:"healthy"`

	// Unhealthy is the number of unhealthy providers
	Unhealthy int `json:"unhealthy"`

	// Details contains per-provider health information
	Details map[string]providers.ProviderHealth `json:"-"`
}
