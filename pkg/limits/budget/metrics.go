package budget

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check results recorded by Metrics.
const (
	ResultAllowed     = "allowed"
	ResultDenied      = "denied"
	ResultUnavailable = "unavailable"
)

// Metrics contains Prometheus metrics for budget enforcement.
type Metrics struct {
	checks        *prometheus.CounterVec
	utilization   *prometheus.GaugeVec
	alerts        *prometheus.CounterVec
	committed     *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
}

// NewMetrics registers budget metrics with reg. A nil registerer uses the
// default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "budget",
				Name:      "checks_total",
				Help:      "Total number of budget checks by phase and result",
			},
			[]string{"phase", "result"},
		),

		utilization: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "budget",
				Name:      "utilization_ratio",
				Help:      "Window usage as a fraction of the tenant ceiling",
			},
			[]string{"tenant_id"},
		),

		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "budget",
				Name:      "alerts_total",
				Help:      "Total number of checks that reached the alert threshold",
			},
			[]string{"tenant_id"},
		),

		committed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "budget",
				Name:      "committed_tokens_total",
				Help:      "Total number of tokens committed against budgets",
			},
			[]string{"tenant_id"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "budget",
				Name:      "backend_duration_seconds",
				Help:      "Duration of budget backend calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 15),
			},
			[]string{"backend", "operation"},
		),
	}
}

func (m *Metrics) recordCheck(phase, result string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(phase, result).Inc()
}

func (m *Metrics) recordSnapshot(s Snapshot) {
	if m == nil {
		return
	}
	m.utilization.WithLabelValues(s.TenantID).Set(s.UtilizationPct / 100)
	if s.AlertTriggered {
		m.alerts.WithLabelValues(s.TenantID).Inc()
	}
}

func (m *Metrics) recordCommit(tenantID string, tokens int64) {
	if m == nil || tokens <= 0 {
		return
	}
	m.committed.WithLabelValues(tenantID).Add(float64(tokens))
}

func (m *Metrics) recordDuration(backend, operation string, seconds float64) {
	if m == nil {
		return
	}
	m.checkDuration.WithLabelValues(backend, operation).Observe(seconds)
}
