package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/webhook/deadletter"
)

// Config contains configuration for dead-letter pruning.
type Config struct {
	// RetentionDays is how long dead letters are kept.
	// 0 means keep them forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// ConfigFrom extracts retention settings from the dead-letter configuration.
func ConfigFrom(cfg config.DeadLetterConfig) *Config {
	return &Config{RetentionDays: cfg.RetentionDays, PruneSchedule: cfg.PruneSchedule}
}

// Pruner removes dead letters older than the retention period.
type Pruner struct {
	store  deadletter.Store
	config *Config
	logger *slog.Logger
	now    func() time.Time
}

// NewPruner creates a new pruner.
func NewPruner(store deadletter.Store, cfg *Config) *Pruner {
	if cfg == nil {
		cfg = &Config{RetentionDays: config.DefaultDeadLetterRetention, PruneSchedule: config.DefaultDeadLetterSchedule}
	}
	return &Pruner{
		store:  store,
		config: cfg,
		logger: slog.Default().With("component", "webhook.retention"),
		now:    time.Now,
	}
}

// Prune deletes expired dead letters and returns how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.config.RetentionDays <= 0 {
		p.logger.Debug("retention disabled, nothing pruned")
		return 0, nil
	}

	cutoff := p.now().Add(-deadletter.RetentionDays(p.config.RetentionDays))
	deleted, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune dead letters before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if deleted > 0 {
		p.logger.Info("dead letters pruned",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	}
	return deleted, nil
}
