package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/saturn/pkg/routing"
)

// ProviderMetrics tracks upstream provider attempts.
type ProviderMetrics struct {
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewProviderMetrics creates and registers provider metrics.
func NewProviderMetrics(namespace string, registry prometheus.Registerer) *ProviderMetrics {
	pm := &ProviderMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "attempts_total",
				Help:      "Total number of provider attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "latency_seconds",
				Help:      "Provider call latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"provider"},
		),
	}
	registry.MustRegister(pm.attempts, pm.latency)
	return pm
}

// RecordAttempt records one attempt.
func (pm *ProviderMetrics) RecordAttempt(a routing.Attempt) {
	pm.attempts.WithLabelValues(a.Provider, string(a.Outcome)).Inc()
	pm.latency.WithLabelValues(a.Provider).Observe(a.Latency.Seconds())
}
