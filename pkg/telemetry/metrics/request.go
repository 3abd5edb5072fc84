package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/saturn/pkg/config"
)

// RequestMetrics tracks request outcomes and usage.
//
// Metrics:
//   - saturn_requests_total: requests by endpoint and outcome
//   - saturn_request_duration_seconds: request duration by endpoint
//   - saturn_tokens_total: tokens by provider, model and direction
//   - saturn_cost_usd_total: estimated spend by provider and model
//   - saturn_stream_truncations_total: streams ended early by reason
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	costTotal       *prometheus.CounterVec
	truncations     *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics.
func NewRequestMetrics(cfg config.MetricsConfig, registry prometheus.Registerer) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of governed requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of governed requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"endpoint"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "tokens_total",
				Help:      "Total number of tokens by provider, model and direction",
			},
			[]string{"provider", "model", "direction"},
		),

		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cost_usd_total",
				Help:      "Estimated provider spend in USD",
			},
			[]string{"provider", "model"},
		),

		truncations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "stream_truncations_total",
				Help:      "Total number of streams ended early by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.tokensTotal,
		rm.costTotal,
		rm.truncations,
	)
	return rm
}

// RecordRequest records a finished request.
func (rm *RequestMetrics) RecordRequest(endpoint, outcome string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(endpoint, outcome).Inc()
	rm.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordTokens records prompt and completion tokens.
func (rm *RequestMetrics) RecordTokens(provider, model string, prompt, completion int) {
	if prompt > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completion))
	}
}

// RecordCost records spend. Zero costs are skipped.
func (rm *RequestMetrics) RecordCost(provider, model string, cost float64) {
	if cost <= 0 {
		return
	}
	rm.costTotal.WithLabelValues(provider, model).Add(cost)
}
