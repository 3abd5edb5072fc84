package pipeline

import (
	"errors"
	"log/slog"
	"time"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/limits/budget"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/processing/costs"
	"mercator-hq/saturn/pkg/processing/tokens"
	"mercator-hq/saturn/pkg/redaction"
	"mercator-hq/saturn/pkg/retrieval"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/webhook"
)

// Endpoint names recorded in audit events and metrics.
const (
	EndpointChat       = "/v1/chat/completions"
	EndpointEmbeddings = "/v1/embeddings"
)

// Notifier fires governance webhooks. *webhook.Dispatcher implements it.
type Notifier interface {
	ShouldFire(t webhook.EventType) bool
	Dispatch(t webhook.EventType, payload any) []webhook.Outcome
}

// Recorder receives pipeline metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordRequest(endpoint, outcome string, d time.Duration)
	RecordPolicyDecision(label string)
	RecordRedaction(direction string, matches int)
	RecordAudit(result string)
	RecordUsage(provider, model string, promptTokens, completionTokens int, costUSD float64)
	RecordStreamTruncation(reason string)
}

type noopNotifier struct{}

func (noopNotifier) ShouldFire(webhook.EventType) bool { return false }

func (noopNotifier) Dispatch(webhook.EventType, any) []webhook.Outcome { return nil }

type noopRecorder struct{}

func (noopRecorder) RecordRequest(string, string, time.Duration) {}
func (noopRecorder) RecordPolicyDecision(string) {}
func (noopRecorder) RecordRedaction(string, int) {}
func (noopRecorder) RecordAudit(string) {}
func (noopRecorder) RecordUsage(string, string, int, int, float64) {}
func (noopRecorder) RecordStreamTruncation(string) {}

// Deps are the stages a Pipeline composes.
type Deps struct {
	Gate     *policy.Client
	Redactor *redaction.Engine
	Router   *routing.Router
	Audit    *audit.Writer

	// Retriever serves retrieval requests. Nil refuses every retrieval
	// request as unauthorized.
	Retriever *retrieval.Retriever

	// Budget enforces token ceilings. Nil disables budget enforcement.
	Budget *budget.Tracker

	Estimator tokens.Estimator

	// Costs prices provider usage. Nil records zero cost.
	Costs *costs.Calculator

	Notifier Notifier
	Recorder Recorder
}

// Options tune the pipeline.
type Options struct {
	// CostAware orders the provider chain by estimated cost.
	CostAware bool

	// Primary is moved to the head of every provider chain.
	Primary string

	// DefaultMaxTokens is the completion estimate for requests that do not
	// set max_tokens.
	// Default: 512
	DefaultMaxTokens int

	// StreamCheckEvery is the number of streamed chunks between running
	// budget checks.
	// Default: 8
	StreamCheckEvery int

	Logger *slog.Logger
}

// OptionsFromConfig derives pipeline options from the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CostAware:        cfg.Routing.CostAware,
		Primary:          cfg.Routing.Primary,
		DefaultMaxTokens: cfg.Budget.DefaultMaxTokens,
		StreamCheckEvery: cfg.Budget.StreamCheckEvery,
	}
}

// Pipeline enforces governance on every request before, during and after the
// provider call. It is safe for concurrent use.
type Pipeline struct {
	gate      *policy.Client
	redactor  *redaction.Engine
	retriever *retrieval.Retriever
	router    *routing.Router
	budget    *budget.Tracker
	audit     *audit.Writer
	estimator tokens.Estimator
	costs     *costs.Calculator
	notifier  Notifier
	recorder  Recorder

	opts   Options
	logger *slog.Logger
}

// New creates a pipeline. Gate, Redactor, Router, Audit and Estimator are
// required.
func New(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.Gate == nil:
		return nil, errors.New("pipeline: policy gate is required")
	case deps.Redactor == nil:
		return nil, errors.New("pipeline: redaction engine is required")
	case deps.Router == nil:
		return nil, errors.New("pipeline: router is required")
	case deps.Audit == nil:
		return nil, errors.New("pipeline: audit writer is required")
	case deps.Estimator == nil:
		return nil, errors.New("pipeline: token estimator is required")
	}

	if opts.DefaultMaxTokens <= 0 {
		opts.DefaultMaxTokens = config.DefaultBudgetMaxTokens
	}
	if opts.StreamCheckEvery <= 0 {
		opts.StreamCheckEvery = config.DefaultStreamCheckEvery
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retriever := deps.Retriever
	if retriever == nil {
		retriever = retrieval.NewRetriever(retrieval.NewRegistry(), retrieval.Options{})
	}

	p := &Pipeline{
		gate:      deps.Gate,
		redactor:  deps.Redactor,
		retriever: retriever,
		router:    deps.Router,
		budget:    deps.Budget,
		audit:     deps.Audit,
		estimator: deps.Estimator,
		costs:     deps.Costs,
		notifier:  deps.Notifier,
		recorder:  deps.Recorder,
		opts:      opts,
		logger:    logger.With("component", "pipeline"),
	}
	if p.notifier == nil {
		p.notifier = noopNotifier{}
	}
	if p.recorder == nil {
		p.recorder = noopRecorder{}
	}
	return p, nil
}

func (p *Pipeline) cost(provider string, promptTokens, completionTokens int) float64 {
	if p.costs == nil {
		return 0
	}
	return p.costs.CalculateRequestCost(provider, promptTokens, completionTokens).TotalCost
}
