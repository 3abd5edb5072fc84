package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/limits/budget"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/redaction"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/telemetry/tracing"
	"mercator-hq/saturn/pkg/webhook"
)

// Notice is the payload of every governance webhook.
type Notice struct {
	RequestID  string         `json:"request_id"`
	TenantID   string         `json:"tenant_id"`
	UserID     string         `json:"user_id,omitempty"`
	Endpoint   string         `json:"endpoint"`
	Model      string         `json:"model,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	ReasonCode string         `json:"reason_code,omitempty"`
	PolicyHash string         `json:"policy_hash,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// run is the state of one request as it moves through the stages. The audit
// event is filled in stage by stage and persisted exactly once.
type run struct {
	p      *Pipeline
	rc     governance.RequestContext
	start  time.Time
	span   trace.Span
	logger *slog.Logger

	ev          audit.Event
	decision    *policy.Decision
	reservation *budget.Reservation
	forced      bool
}

func (p *Pipeline) begin(ctx context.Context, rc governance.RequestContext, endpoint string, payload any, streaming bool) (context.Context, *run) {
	if rc.Endpoint == "" {
		rc.Endpoint = endpoint
	}
	ctx, span := tracing.Start(ctx, tracing.SpanRequest, tracing.RequestAttributes(
		rc.RequestID, rc.TenantID, rc.UserID, rc.Endpoint, string(rc.Classification))...)

	hash := p.gate.LastPolicyHash()
	if hash == "" {
		hash = policy.UnavailableHash
	}
	r := &run{
		p:      p,
		rc:     rc,
		start:  time.Now(),
		span:   span,
		logger: p.logger.With("request_id", rc.RequestID, "tenant_id", rc.TenantID),
		ev: audit.Event{
			RequestID:          rc.RequestID,
			TenantID:           rc.TenantID,
			UserID:             rc.UserID,
			Endpoint:           rc.Endpoint,
			RequestedModel:     rc.Model,
			Streaming:          streaming,
			PolicyHash:         hash,
			PolicyMode:         string(p.gate.Mode()),
			RequestPayloadHash: audit.HashJSON(payload),
		},
	}
	return ctx, r
}

func (r *run) policyHash() string {
	return r.ev.PolicyHash
}

// evaluate asks the gate and stamps the decision on the event.
func (r *run) evaluate(ctx context.Context, estimatedTokens int) (policy.Decision, *governance.Error) {
	ctx, span := tracing.Start(ctx, tracing.SpanPolicy)
	d := r.p.gate.Evaluate(ctx, r.rc, estimatedTokens)
	span.SetAttributes(
		attribute.String(tracing.AttrPolicyDecision, d.Label()),
		attribute.String(tracing.AttrPolicyHash, d.PolicyHash),
	)
	tracing.End(span, d.Fault)

	r.decision = &d
	r.ev.PolicyDecision = d.Label()
	r.ev.PolicyDecisionID = d.DecisionID
	r.ev.PolicyHash = d.PolicyHash
	r.ev.PolicyMode = string(d.Mode)
	r.p.recorder.RecordPolicyDecision(d.Label())

	if !d.Blocks() {
		if !d.Allow {
			r.logger.Info("policy denial observed", "reason", d.Reason(), "policy_hash", d.PolicyHash)
		}
		return d, nil
	}
	if d.Unavailable {
		return d, governance.NewError(governance.KindPolicyUnavailable, policy.ReasonPolicyUnavailable, d.PolicyHash, d.Fault)
	}
	return d, governance.NewError(governance.KindPolicyDenied, d.Reason(), d.PolicyHash, nil)
}

// redact scans one string, honoring a redact transform.
func (r *run) redact(text string) redaction.Result {
	if r.forced {
		return r.p.redactor.ScanForced(text, r.rc.Classification)
	}
	return r.p.redactor.Scan(text, r.rc.Classification)
}

func (r *run) recordRedaction(direction string, res redaction.Result) {
	switch direction {
	case "output":
		r.ev.OutputRedactionCount += res.MatchCount
	default:
		r.ev.InputRedactionCount += res.MatchCount
	}
	for _, id := range res.RuleIDs {
		if !contains(r.ev.RedactionRules, id) {
			r.ev.RedactionRules = append(r.ev.RedactionRules, id)
		}
	}
	if res.Scanned {
		r.p.recorder.RecordRedaction(direction, res.MatchCount)
	}
}

func (r *run) route(rt routing.Route) {
	r.ev.Provider = rt.Provider
	r.ev.FallbackChain = rt.Chain
	r.ev.Attempts = rt.Attempts
	r.ev.ProviderAttempts = len(rt.Attempts)
}

// release returns an unused reservation. It runs after the caller may have
// gone away, so cancellation is ignored.
func (r *run) release(ctx context.Context) {
	if r.reservation == nil {
		return
	}
	if err := r.p.budget.Release(context.WithoutCancel(ctx), r.reservation); err != nil {
		r.logger.Warn("failed to release budget reservation", "error", err)
	}
	r.reservation = nil
}

// commit settles the reservation at the actual token count.
func (r *run) commit(ctx context.Context, actual int64) {
	if r.reservation == nil {
		return
	}
	snap, err := r.p.budget.Commit(context.WithoutCancel(ctx), r.reservation, actual)
	r.reservation = nil
	if err != nil {
		r.logger.Warn("failed to commit budget usage", "tokens", actual, "error", err)
		return
	}
	r.ev.Budget = &snap
	if snap.AlertTriggered {
		r.notify(webhook.EventBudgetWarning, "", map[string]any{
			"ceiling":         snap.Ceiling,
			"used":            snap.Used,
			"utilization_pct": snap.UtilizationPct,
		})
	}
}

// notify fires a webhook and records each endpoint's outcome on the audit
// event. Webhooks fire before the event is persisted so the record lists them.
func (r *run) notify(t webhook.EventType, reason string, details map[string]any) {
	if !r.p.notifier.ShouldFire(t) {
		return
	}
	outcomes := r.p.notifier.Dispatch(t, Notice{
		RequestID:  r.rc.RequestID,
		TenantID:   r.rc.TenantID,
		UserID:     r.rc.UserID,
		Endpoint:   r.rc.Endpoint,
		Model:      r.rc.Model,
		Provider:   r.ev.Provider,
		ReasonCode: reason,
		PolicyHash: r.policyHash(),
		Details:    details,
	})
	for _, o := range outcomes {
		r.ev.WebhookEvents = append(r.ev.WebhookEvents, audit.WebhookDispatch{
			EventType: string(o.EventType),
			Endpoint:  o.EndpointURL,
			Status:    o.Status,
		})
		if o.Status != webhook.StatusQueued {
			r.logger.Warn("webhook not queued",
				"event_type", o.EventType,
				"endpoint", o.EndpointURL,
				"status", o.Status,
			)
		}
	}
}

// fail terminates the request with gerr. The denial or fault is audited and
// the matching webhook fired. An audit failure replaces gerr.
func (r *run) fail(ctx context.Context, gerr *governance.Error) error {
	if gerr.PolicyHash == "" {
		gerr.PolicyHash = r.policyHash()
	}
	r.release(ctx)

	switch gerr.Kind {
	case governance.KindPolicyDenied, governance.KindPolicyUnavailable:
		r.notify(webhook.EventPolicyDenied, gerr.Reason, nil)
	case governance.KindBudgetExceeded:
		var details map[string]any
		if r.ev.Budget != nil {
			details = map[string]any{"ceiling": r.ev.Budget.Ceiling, "used": r.ev.Budget.Used}
		}
		r.notify(webhook.EventBudgetExceeded, gerr.Reason, details)
	case governance.KindProviderExhausted, governance.KindProviderFailed:
		r.notify(webhook.EventProviderError, gerr.Reason, map[string]any{
			"attempts": len(r.ev.Attempts),
			"chain":    r.ev.FallbackChain,
		})
	}

	r.ev.Outcome = outcomeOf(gerr)
	r.ev.ReasonCode = gerr.Reason
	r.logger.Info("request terminated",
		"kind", gerr.Kind,
		"reason", gerr.Reason,
		"policy_hash", gerr.PolicyHash,
	)

	if _, err := r.persist(ctx); err != nil {
		r.finish(string(audit.OutcomeFailed), err)
		return err
	}
	r.finish(string(r.ev.Outcome), gerr)
	return gerr
}

// persist appends the audit event. It ignores cancellation of ctx: a request
// that reached a terminal outcome is always recorded.
func (r *run) persist(ctx context.Context) (audit.Event, error) {
	ctx, span := tracing.Start(context.WithoutCancel(ctx), tracing.SpanAudit)
	ev, err := r.p.audit.Append(ctx, r.ev)
	tracing.End(span, err)
	if err == nil {
		r.p.recorder.RecordAudit("ok")
		r.ev = ev
		return ev, nil
	}

	r.p.recorder.RecordAudit("failed")
	r.logger.Error("failed to persist audit event", "outcome", r.ev.Outcome, "error", err)
	if r.p.notifier.ShouldFire(webhook.EventAuditFailure) {
		r.p.notifier.Dispatch(webhook.EventAuditFailure, Notice{
			RequestID:  r.rc.RequestID,
			TenantID:   r.rc.TenantID,
			UserID:     r.rc.UserID,
			Endpoint:   r.rc.Endpoint,
			ReasonCode: string(governance.KindAuditWriteFailure),
			PolicyHash: r.policyHash(),
		})
	}
	return audit.Event{}, governance.NewError(governance.KindAuditWriteFailure, string(governance.KindAuditWriteFailure), r.policyHash(), err)
}

// finish records request metrics and ends the request span.
func (r *run) finish(outcome string, err error) {
	r.p.recorder.RecordRequest(r.rc.Endpoint, outcome, time.Since(r.start))
	tracing.SetOutcome(r.span, outcome, r.ev.ReasonCode)
	tracing.SetTokens(r.span, r.ev.TokensIn, r.ev.TokensOut)
	if r.ev.Provider != "" {
		r.span.SetAttributes(
			attribute.String(tracing.AttrProvider, r.ev.Provider),
			attribute.Int(tracing.AttrAttempts, r.ev.ProviderAttempts),
		)
	}
	tracing.End(r.span, err)
}

// outcomeOf maps a terminal error to the audit outcome. Governance refusals
// are denials; everything else is a failure.
func outcomeOf(gerr *governance.Error) audit.Outcome {
	switch gerr.Kind {
	case governance.KindPolicyDenied, governance.KindPolicyUnavailable,
		governance.KindBudgetExceeded, governance.KindBudgetBackendUnavailable,
		governance.KindRetrievalUnauthorized, governance.KindCitationIntegrityViolation:
		return audit.OutcomeDenied
	default:
		return audit.OutcomeFailed
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
