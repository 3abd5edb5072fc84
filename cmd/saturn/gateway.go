package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/audit/storage"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/limits/budget"
	"mercator-hq/saturn/pkg/pipeline"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/processing/costs"
	"mercator-hq/saturn/pkg/processing/tokens"
	"mercator-hq/saturn/pkg/providerfactory"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/redaction"
	"mercator-hq/saturn/pkg/retrieval"
	"mercator-hq/saturn/pkg/retrieval/connectors"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/server"
	"mercator-hq/saturn/pkg/telemetry/health"
	"mercator-hq/saturn/pkg/telemetry/logging"
	"mercator-hq/saturn/pkg/telemetry/metrics"
	"mercator-hq/saturn/pkg/telemetry/tracing"
	"mercator-hq/saturn/pkg/webhook"
	"mercator-hq/saturn/pkg/webhook/deadletter"
	"mercator-hq/saturn/pkg/webhook/retention"
)

// gateway owns every component built from one configuration. Close releases
// them in reverse construction order.
type gateway struct {
	cfg    *config.Config
	logger *slog.Logger

	tracer     *tracing.Tracer
	collector  *metrics.Collector
	redactor   *redaction.Engine
	manager    *providerfactory.Manager
	registry   *retrieval.Registry
	tracker    *budget.Tracker
	sink       audit.Sink
	writer     *audit.Writer
	deadLetter deadletter.Store
	dispatcher *webhook.Dispatcher
	scheduler  *retention.Scheduler
	estimator  *tokens.SimpleEstimator
	costs      *costs.Calculator
	health     *health.Checker

	pipeline *pipeline.Pipeline
	server   *server.Server

	closers []func(context.Context) error
}

// buildGateway wires the pipeline and HTTP server from cfg. On error every
// component built so far is closed.
func buildGateway(ctx context.Context, cfg *config.Config) (g *gateway, err error) {
	g = &gateway{cfg: cfg}
	defer func() {
		if err != nil {
			_ = g.Close(context.Background())
			g = nil
		}
	}()

	if g.redactor, err = redaction.NewEngineFromConfig(cfg.Redaction); err != nil {
		return nil, fmt.Errorf("redaction: %w", err)
	}

	if g.logger, err = logging.New(cfg.Telemetry.Logging, logging.Options{Writer: os.Stdout, Redactor: g.redactor}); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	slog.SetDefault(g.logger)

	if g.tracer, err = tracing.New(&cfg.Telemetry.Tracing); err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	g.onClose(g.tracer.Shutdown)

	g.collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	gate, err := policy.NewClientFromConfig(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	if g.manager, err = providerfactory.NewManagerFromConfig(cfg.Providers); err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}
	g.onClose(func(context.Context) error { return g.manager.Close() })
	router := routing.NewRouter(g.manager.Entries(), routing.Options{
		RetryableStatuses: cfg.Routing.RetryableStatuses,
		OnAttempt:         g.collector.RecordAttempt,
	})

	var retriever *retrieval.Retriever
	if cfg.Retrieval.Enabled {
		if g.registry, err = connectors.NewRegistry(ctx, cfg.Retrieval); err != nil {
			return nil, fmt.Errorf("retrieval: %w", err)
		}
		g.onClose(func(context.Context) error { return g.registry.Close() })
		retriever = retrieval.NewRetrieverFromConfig(g.registry, cfg.Retrieval)
	}

	if !cfg.Budget.Disabled {
		if g.tracker, err = budget.NewTrackerFromConfig(cfg.Budget, g.collector.Budget()); err != nil {
			return nil, fmt.Errorf("budget: %w", err)
		}
		g.onClose(func(context.Context) error { return g.tracker.Close() })
	}

	if g.sink, err = storage.NewSink(cfg.Audit); err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}
	if g.writer, err = audit.NewWriter(ctx, g.sink, audit.Options{
		Backend:       cfg.Audit.Backend,
		AppendTimeout: cfg.Audit.AppendTimeout,
	}); err != nil {
		_ = g.sink.Close()
		return nil, fmt.Errorf("audit writer: %w", err)
	}
	// The writer closes the sink.
	g.onClose(func(context.Context) error { return g.writer.Close() })

	dl := cfg.Webhooks.DeadLetter
	if g.deadLetter, err = deadletter.NewStore(dl.Backend, dl.Path, deadletter.RetentionDays(dl.RetentionDays)); err != nil {
		return nil, fmt.Errorf("dead letter store: %w", err)
	}
	g.onClose(func(context.Context) error { return g.deadLetter.Close() })
	g.dispatcher = webhook.NewDispatcherFromConfig(cfg.Webhooks, g.deadLetter, g.collector)
	g.onClose(g.dispatcher.Close)

	if dl.RetentionDays > 0 && dl.PruneSchedule != "" {
		g.scheduler = retention.NewScheduler(retention.NewPruner(g.deadLetter, retention.ConfigFrom(dl)))
		if err := g.scheduler.Start(ctx); err != nil {
			g.logger.Warn("dead-letter retention scheduler not started", "error", err)
			g.scheduler = nil
		} else {
			g.onClose(func(context.Context) error { g.scheduler.Stop(); return nil })
		}
	}

	g.estimator = tokens.NewSimpleEstimator(cfg.Processing.Tokens)
	g.costs = costs.NewCalculator(g.manager.Descriptors())

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Logger = g.logger
	deps := pipeline.Deps{
		Gate:      gate,
		Redactor:  g.redactor,
		Router:    router,
		Audit:     g.writer,
		Retriever: retriever,
		Budget:    g.tracker,
		Estimator: g.estimator,
		Costs:     g.costs,
		Notifier:  g.dispatcher,
		Recorder:  g.collector,
	}
	if g.pipeline, err = pipeline.New(deps, opts); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	g.health = health.New(Version, 0)
	g.registerChecks()

	srvOpts := server.Options{Health: g.health.Handler(), Logger: g.logger}
	if cfg.Telemetry.Metrics.Enabled {
		srvOpts.Metrics = g.collector.Handler()
		srvOpts.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	g.server = server.New(cfg.Server, g.pipeline, srvOpts)
	return g, nil
}

func (g *gateway) onClose(fn func(context.Context) error) {
	g.closers = append(g.closers, fn)
}

func (g *gateway) registerChecks() {
	g.health.Register("audit", func(ctx context.Context) error {
		_, err := g.sink.Last(ctx)
		return err
	})
	g.health.Register("providers", func(ctx context.Context) error {
		if s := g.manager.GetHealthSummary(); s.Total > 0 && s.Healthy == 0 {
			return fmt.Errorf("all %d providers unhealthy", s.Total)
		}
		return nil
	})
	if g.tracker != nil {
		g.health.Register("budget", func(ctx context.Context) error {
			_, err := g.tracker.Summary(ctx, "_health")
			return err
		})
	}
}

// reload applies the parts of a new configuration that are safe to change
// while serving. Everything else needs a restart.
func (g *gateway) reload(_, cur *config.Config) {
	g.estimator.Update(cur.Processing.Tokens)

	names := make([]string, 0, len(cur.Providers))
	for name := range cur.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	descriptors := make([]providers.Descriptor, 0, len(names))
	for _, name := range names {
		d, err := providerfactory.NewDescriptor(name, cur.Providers[name])
		if err != nil {
			g.logger.Warn("pricing not reloaded for provider", "provider", name, "error", err)
			continue
		}
		descriptors = append(descriptors, d)
	}
	g.costs.UpdatePricing(descriptors)

	g.logger.Info("configuration reloaded",
		"applied", []string{"processing.tokens", "providers.*.cost_per_1k"},
	)
}

// Close shuts components down in reverse order and joins their errors.
func (g *gateway) Close(ctx context.Context) error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	g.closers = nil
	return errors.Join(errs...)
}
