package storage

import (
	"fmt"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/config"
)

// NewSink creates the sink named by the audit configuration.
func NewSink(cfg config.AuditConfig) (audit.Sink, error) {
	switch cfg.Backend {
	case "", "file":
		path := cfg.Path
		if path == "" {
			path = config.DefaultAuditPath
		}
		return NewFileSink(path)
	case "sqlite":
		sc := DefaultSQLiteConfig()
		if cfg.Path != "" {
			sc.Path = cfg.Path
		}
		return NewSQLiteSink(sc)
	case "memory":
		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend %q", cfg.Backend)
	}
}
