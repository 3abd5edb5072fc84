// Package connectors builds the retrieval registry from configuration.
package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/retrieval"
	"mercator-hq/saturn/pkg/retrieval/connectors/filesystem"
	"mercator-hq/saturn/pkg/retrieval/connectors/postgres"
)

// NewRegistry creates and registers every configured connector. On error
// the connectors created so far are closed.
func NewRegistry(ctx context.Context, cfg config.RetrievalConfig) (*retrieval.Registry, error) {
	registry := retrieval.NewRegistry()

	names := make([]string, 0, len(cfg.Connectors))
	for name := range cfg.Connectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cc := cfg.Connectors[name]
		c, err := New(ctx, name, cc)
		if err != nil {
			_ = registry.Close()
			return nil, err
		}
		registry.Register(name, cc.Priority, c)
		slog.Debug("retrieval connector registered", "name", name, "type", cc.Type, "priority", cc.Priority)
	}
	return registry, nil
}

// New creates one connector.
func New(ctx context.Context, name string, cc config.ConnectorConfig) (retrieval.Connector, error) {
	switch cc.Type {
	case "filesystem":
		return filesystem.New(name, cc.IndexPath), nil
	case "postgres":
		c, err := postgres.New(ctx, name, cc.DSN, cc.Table)
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", name, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("connector %q: unsupported type %q", name, cc.Type)
	}
}
