// Package metrics exports Saturn's Prometheus metrics.
//
// A Collector owns a registry and records:
//
//   - requests_total and request_duration_seconds per endpoint and outcome
//   - tokens_total and cost_usd_total per provider and model
//   - provider_attempts_total and provider_latency_seconds per provider
//   - policy_decisions_total per decision label
//   - redaction_scans_total and redaction_matches_total per direction
//   - audit_appends_total per result
//   - webhook_deliveries_total per event type and result
//   - stream_truncations_total per reason
//   - the budget_* metrics of the budget tracker
//
// Every name is prefixed with the configured namespace (default "saturn").
// Model labels are capped by a CardinalityLimiter; values past the cap are
// recorded as "other".
//
// The collector satisfies the pipeline's recorder, the webhook dispatcher's
// Recorder and the router's OnAttempt hook, so one instance is shared by all
// of them:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	r.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
