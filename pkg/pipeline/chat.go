package pipeline

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/processing/tokens"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/retrieval"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/telemetry/tracing"
	"mercator-hq/saturn/pkg/webhook"
)

// ChatResult is a governed chat completion. Response content has been
// through output redaction.
type ChatResult struct {
	RequestID  string
	Provider   string
	PolicyHash string
	Response   *providers.CompletionResponse
	Citations  []retrieval.Citation

	// Event is the persisted audit event.
	Event audit.Event
}

// prepared is a completion request that passed every stage before the
// provider call.
type prepared struct {
	req      *providers.CompletionRequest
	estimate tokens.Estimate
}

// Chat runs a non-streaming completion through the pipeline:
//
//	gate → transforms → input redaction → retrieval → model constraints →
//	budget check → router → output redaction → budget commit → audit
//
// Any stage can stop the request with a *governance.Error; later stages do not
// run. The outcome is audited either way, and an audit failure is returned
// instead of the response.
func (p *Pipeline) Chat(ctx context.Context, rc governance.RequestContext, req *providers.CompletionRequest) (*ChatResult, error) {
	if rc.Model == "" && req != nil {
		rc.Model = req.Model
	}
	ctx, r := p.begin(ctx, rc, EndpointChat, req, false)

	prep, gerr := p.prepare(ctx, r, req)
	if gerr != nil {
		return nil, r.fail(ctx, gerr)
	}

	callCtx, span := tracing.Start(ctx, tracing.SpanProviderCall, attribute.String(tracing.AttrModel, prep.req.Model))
	res, err := p.router.Chat(callCtx, p.criteria(r, prep), prep.req)
	tracing.End(span, err)
	if err != nil {
		r.route(routing.Route{Chain: routing.ChainOf(err), Attempts: routing.AttemptsOf(err)})
		return nil, r.fail(ctx, providerError(err, r.policyHash()))
	}
	r.route(res.Route)

	resp := *res.Response
	r.ev.ProviderResponseHash = audit.HashJSON(res.Response)

	_, rspan := tracing.Start(ctx, tracing.SpanRedaction, attribute.String(tracing.AttrRedactionDirection, "output"))
	scanned := r.redact(resp.Content)
	resp.Content = scanned.Text
	r.recordRedaction("output", scanned)
	rspan.SetAttributes(attribute.Int(tracing.AttrRedactionCount, scanned.MatchCount))
	tracing.End(rspan, nil)

	in, out := usageOf(resp.Usage, prep.estimate.PromptTokens, p.estimator.EstimateText(res.Response.Content, prep.req.Model))
	r.settle(ctx, res.Provider, prep.req.Model, in, out)
	r.succeed()

	ev, err := r.persist(ctx)
	if err != nil {
		r.finish(string(audit.OutcomeFailed), err)
		return nil, err
	}
	r.finish(string(audit.OutcomeSuccess), nil)

	return &ChatResult{
		RequestID:  rc.RequestID,
		Provider:   res.Provider,
		PolicyHash: ev.PolicyHash,
		Response:   &resp,
		Citations:  ev.RetrievalCitations,
		Event:      ev,
	}, nil
}

// prepare runs the stages shared by Chat and Stream, up to and including the
// budget reservation.
func (p *Pipeline) prepare(ctx context.Context, r *run, req *providers.CompletionRequest) (*prepared, *governance.Error) {
	if req == nil {
		return nil, invalidRequest(errors.New("request body is required"), r.policyHash())
	}
	if err := r.rc.Validate(); err != nil {
		return nil, invalidRequest(err, r.policyHash())
	}
	if len(req.Messages) == 0 {
		return nil, invalidRequest(errors.New("messages must not be empty"), r.policyHash())
	}

	estimate := p.estimator.EstimateRequest(req, p.opts.DefaultMaxTokens)
	decision, gerr := r.evaluate(ctx, estimate.TotalTokens)
	if gerr != nil {
		return nil, gerr
	}

	out, applied, err := policy.ApplyTransforms(req, decision.Transforms)
	if err != nil {
		return nil, transformError(err, decision.PolicyHash)
	}
	r.ev.TransformsApplied = applied.Operations
	r.forced = applied.ForceRedact

	_, span := tracing.Start(ctx, tracing.SpanRedaction, attribute.String(tracing.AttrRedactionDirection, "input"))
	scanned := p.redactor.ScanMessages(out.Messages, r.rc.Classification, r.forced)
	out.Messages = scanned.Messages
	r.recordRedaction("input", scanned.Result)
	span.SetAttributes(attribute.Int(tracing.AttrRedactionCount, scanned.MatchCount))
	tracing.End(span, nil)

	if gerr := p.retrieve(ctx, r, decision, out); gerr != nil {
		return nil, gerr
	}

	if err := decision.CheckModel(out.Model); err != nil {
		return nil, modelError(err, decision.PolicyHash)
	}
	r.ev.SelectedModel = out.Model
	r.ev.ProviderRequestHash = audit.HashJSON(out)

	estimate = p.estimator.EstimateRequest(out, p.opts.DefaultMaxTokens)
	if gerr := r.reserve(ctx, int64(estimate.TotalTokens)); gerr != nil {
		return nil, gerr
	}
	return &prepared{req: out, estimate: estimate}, nil
}

// retrieve appends authorized retrieval context to req. The user content it
// searches with has already been redacted; the context itself is scanned
// before it is appended.
func (p *Pipeline) retrieve(ctx context.Context, r *run, decision policy.Decision, req *providers.CompletionRequest) *governance.Error {
	if !r.rc.RetrievalRequested() {
		return nil
	}

	ctx, span := tracing.Start(ctx, tracing.SpanRetrieval,
		attribute.StringSlice(tracing.AttrConnectors, r.rc.Retrieval.Connectors))
	res, err := p.retriever.Retrieve(ctx, r.rc, decision, retrieval.LastUserMessage(req.Messages))
	if err != nil {
		tracing.End(span, err)
		return retrievalError(err, decision.PolicyHash)
	}
	span.SetAttributes(attribute.Int(tracing.AttrChunks, len(res.Chunks)))
	tracing.End(span, nil)

	if len(res.Chunks) == 0 {
		return nil
	}
	msg := retrieval.BuildContext(res.Chunks)
	scanned := r.redact(msg.Content)
	msg.Content = scanned.Text
	r.recordRedaction("context", scanned)

	req.Messages = append(req.Messages, msg)
	r.ev.RetrievalCitations = retrieval.Citations(res.Chunks)
	return nil
}

// reserve holds the estimated tokens against the tenant's ceiling.
func (r *run) reserve(ctx context.Context, tokens int64) *governance.Error {
	if r.p.budget == nil {
		return nil
	}
	ctx, span := tracing.Start(ctx, tracing.SpanBudget, attribute.Int64(tracing.AttrBudgetRequested, tokens))
	res, snap, err := r.p.budget.Check(ctx, r.rc.TenantID, tokens)
	if snap.TenantID != "" {
		r.ev.Budget = &snap
		span.SetAttributes(attribute.Int64(tracing.AttrBudgetRemaining, snap.Remaining))
	}
	tracing.End(span, err)
	if err != nil {
		return budgetError(err, r.policyHash())
	}
	r.reservation = res
	return nil
}

func (p *Pipeline) criteria(r *run, prep *prepared) routing.Criteria {
	var allowed []string
	if r.decision != nil {
		allowed = r.decision.AllowedProviders()
	}
	return routing.Criteria{
		Model:            prep.req.Model,
		AllowedProviders: allowed,
		CostAware:        p.opts.CostAware,
		EstimatedIn:      prep.estimate.PromptTokens,
		EstimatedOut:     prep.estimate.EstimatedCompletionTokens,
		Primary:          p.opts.Primary,
	}
}

// settle records usage on the event, commits it to the budget and reports
// it to metrics.
func (r *run) settle(ctx context.Context, provider, model string, in, out int) {
	cost := r.p.cost(provider, in, out)
	r.ev.TokensIn = in
	r.ev.TokensOut = out
	r.ev.CostUSD = cost
	r.p.recorder.RecordUsage(provider, model, in, out, cost)
	r.commit(ctx, int64(in+out))
}

// succeed marks the request successful and fires its webhooks.
func (r *run) succeed() {
	r.ev.Outcome = audit.OutcomeSuccess
	r.announce()
}

// announce fires the webhooks of a request that reached a provider.
func (r *run) announce() {
	if fallbacks := r.ev.ProviderAttempts - 1; fallbacks > 0 {
		r.notify(webhook.EventProviderFallback, "", map[string]any{
			"fallbacks": fallbacks,
			"chain":     r.ev.FallbackChain,
		})
	}
	if n := r.ev.InputRedactionCount + r.ev.OutputRedactionCount; n > 0 {
		r.notify(webhook.EventRedactionHit, "", map[string]any{
			"input_count":  r.ev.InputRedactionCount,
			"output_count": r.ev.OutputRedactionCount,
			"rules":        r.ev.RedactionRules,
		})
	}
}

// usageOf prefers provider-reported usage and falls back to estimates.
func usageOf(u providers.TokenUsage, estimatedIn, estimatedOut int) (int, int) {
	in, out := u.PromptTokens, u.CompletionTokens
	if in <= 0 && out <= 0 {
		return estimatedIn, estimatedOut
	}
	return in, out
}
