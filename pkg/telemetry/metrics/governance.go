package metrics

import "github.com/prometheus/client_golang/prometheus"

// GovernanceMetrics tracks the enforcement stages: policy, redaction, audit
// and webhooks.
type GovernanceMetrics struct {
	policyDecisions   *prometheus.CounterVec
	redactionScans    *prometheus.CounterVec
	redactionMatches  *prometheus.CounterVec
	auditAppends      *prometheus.CounterVec
	webhookDeliveries *prometheus.CounterVec
}

// NewGovernanceMetrics creates and registers governance metrics.
func NewGovernanceMetrics(namespace string, registry prometheus.Registerer) *GovernanceMetrics {
	gm := &GovernanceMetrics{
		policyDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "decisions_total",
				Help:      "Total number of policy decisions by label",
			},
			[]string{"decision"},
		),
		redactionScans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "redaction",
				Name:      "scans_total",
				Help:      "Total number of redaction scans by direction",
			},
			[]string{"direction"},
		),
		redactionMatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "redaction",
				Name:      "matches_total",
				Help:      "Total number of redacted spans by direction",
			},
			[]string{"direction"},
		),
		auditAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "appends_total",
				Help:      "Total number of audit appends by result",
			},
			[]string{"result"},
		),
		webhookDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "deliveries_total",
				Help:      "Total number of webhook delivery outcomes by event type",
			},
			[]string{"event_type", "result"},
		),
	}
	registry.MustRegister(
		gm.policyDecisions,
		gm.redactionScans,
		gm.redactionMatches,
		gm.auditAppends,
		gm.webhookDeliveries,
	)
	return gm
}
