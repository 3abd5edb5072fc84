package retrieval

import (
	"errors"
	"io"
	"sort"
	"sync"

	"mercator-hq/saturn/pkg/config"
)

// DefaultPriority is used for connectors registered without one.
const DefaultPriority = config.DefaultConnectorPriority

type registration struct {
	connector Connector
	priority  int
}

// Registry holds the configured connectors by name.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]registration)}
}

// Register adds or replaces a connector. Lower priority ranks first when
// chunk scores tie.
func (r *Registry) Register(name string, priority int, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[name] = registration{connector: c, priority: priority}
}

// Get returns a registered connector.
func (r *Registry) Get(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.connectors[name]
	return reg.connector, ok
}

// Priority returns the registered priority, or DefaultPriority.
func (r *Registry) Priority(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.connectors[name]; ok {
		return reg.priority
	}
	return DefaultPriority
}

// Names returns the registered connector names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every connector that holds resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, reg := range r.connectors {
		if c, ok := reg.connector.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
