package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/limits/budget"
	"mercator-hq/saturn/pkg/routing"
)

// otherModel replaces model labels once the cardinality limit is reached.
const otherModel = "other"

// Collector owns every Prometheus metric Saturn exports. It records pipeline
// outcomes, provider attempts and webhook deliveries, and registers the
// budget tracker's metrics on the same registry.
//
// All record methods are no-ops when metrics are disabled.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	requests   *RequestMetrics
	providers  *ProviderMetrics
	governance *GovernanceMetrics
	budget     *budget.Metrics

	// Model names come from callers, so they are capped.
	models *CardinalityLimiter
}

// NewCollector creates a collector. A nil registry gets a fresh one with the
// Go runtime and process collectors attached.
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	router := routing.NewRouter(entries, routing.Options{OnAttempt: collector.RecordAttempt})
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}

	return &Collector{
		config:     cfg,
		registry:   registry,
		requests:   NewRequestMetrics(cfg, registry),
		providers:  NewProviderMetrics(cfg.Namespace, registry),
		governance: NewGovernanceMetrics(cfg.Namespace, registry),
		budget:     budget.NewMetrics(cfg.Namespace, registry),
		models:     NewCardinalityLimiter(500),
	}
}

// Enabled reports whether metrics are recorded.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Budget returns the budget tracker metrics, or nil when metrics are
// disabled so the tracker skips recording.
func (c *Collector) Budget() *budget.Metrics {
	if !c.config.Enabled {
		return nil
	}
	return c.budget
}

// RecordRequest records one finished request.
//
//	collector.RecordRequest("/v1/chat/completions", "denied", 3*time.Millisecond)
func (c *Collector) RecordRequest(endpoint, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requests.RecordRequest(endpoint, outcome, duration)
}

// RecordUsage records token usage and cost for an answered request.
func (c *Collector) RecordUsage(provider, model string, promptTokens, completionTokens int, cost float64) {
	if !c.config.Enabled {
		return
	}
	if !c.models.Allow(model) {
		model = otherModel
	}
	c.requests.RecordTokens(provider, model, promptTokens, completionTokens)
	c.requests.RecordCost(provider, model, cost)
}

// RecordStreamTruncation records a stream that ended early.
func (c *Collector) RecordStreamTruncation(reason string) {
	if !c.config.Enabled {
		return
	}
	c.requests.truncations.WithLabelValues(reason).Inc()
}

// RecordAttempt records a provider attempt. It matches routing.Options.OnAttempt.
func (c *Collector) RecordAttempt(a routing.Attempt) {
	if !c.config.Enabled {
		return
	}
	c.providers.RecordAttempt(a)
}

// RecordPolicyDecision records a decision label (allow, deny, transform, observe).
func (c *Collector) RecordPolicyDecision(label string) {
	if !c.config.Enabled {
		return
	}
	c.governance.policyDecisions.WithLabelValues(label).Inc()
}

// RecordRedaction records one scan in a direction (input, context, output).
func (c *Collector) RecordRedaction(direction string, matches int) {
	if !c.config.Enabled {
		return
	}
	c.governance.redactionScans.WithLabelValues(direction).Inc()
	if matches > 0 {
		c.governance.redactionMatches.WithLabelValues(direction).Add(float64(matches))
	}
}

// RecordAudit records an audit append result (ok, failed).
func (c *Collector) RecordAudit(result string) {
	if !c.config.Enabled {
		return
	}
	c.governance.auditAppends.WithLabelValues(result).Inc()
}

// RecordWebhookDelivery implements webhook.Recorder.
func (c *Collector) RecordWebhookDelivery(eventType, result string) {
	if !c.config.Enabled {
		return
	}
	c.governance.webhookDeliveries.WithLabelValues(eventType, result).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of distinct values seen for a label.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits under the limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
