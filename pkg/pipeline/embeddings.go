package pipeline

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/redaction"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/telemetry/tracing"
)

// EmbeddingsResult is a governed embeddings call.
type EmbeddingsResult struct {
	RequestID  string
	Provider   string
	PolicyHash string
	Response   *providers.EmbeddingResponse
	Event      audit.Event
}

// Embeddings runs an embeddings request through the pipeline:
//
//	gate → transforms → input redaction → model constraints → budget →
//	router → budget commit → audit
//
// Embedding vectors carry no text, so there is no output redaction.
func (p *Pipeline) Embeddings(ctx context.Context, rc governance.RequestContext, req *providers.EmbeddingRequest) (*EmbeddingsResult, error) {
	if rc.Model == "" && req != nil {
		rc.Model = req.Model
	}
	ctx, r := p.begin(ctx, rc, EndpointEmbeddings, req, false)

	out, estimate, gerr := p.prepareEmbeddings(ctx, r, req)
	if gerr != nil {
		return nil, r.fail(ctx, gerr)
	}

	var allowed []string
	if r.decision != nil {
		allowed = r.decision.AllowedProviders()
	}
	callCtx, span := tracing.Start(ctx, tracing.SpanProviderCall, attribute.String(tracing.AttrModel, out.Model))
	res, err := p.router.Embeddings(callCtx, routing.Criteria{
		Model:            out.Model,
		AllowedProviders: allowed,
		CostAware:        p.opts.CostAware,
		EstimatedIn:      estimate,
		Primary:          p.opts.Primary,
	}, out)
	tracing.End(span, err)
	if err != nil {
		r.route(routing.Route{Chain: routing.ChainOf(err), Attempts: routing.AttemptsOf(err)})
		return nil, r.fail(ctx, providerError(err, r.policyHash()))
	}
	r.route(res.Route)
	r.ev.ProviderResponseHash = audit.HashJSON(res.Response)

	in := res.Response.Usage.PromptTokens
	if in <= 0 {
		in = estimate
	}
	r.settle(ctx, res.Provider, out.Model, in, 0)
	r.succeed()

	ev, err := r.persist(ctx)
	if err != nil {
		r.finish(string(audit.OutcomeFailed), err)
		return nil, err
	}
	r.finish(string(audit.OutcomeSuccess), nil)

	return &EmbeddingsResult{
		RequestID:  rc.RequestID,
		Provider:   res.Provider,
		PolicyHash: ev.PolicyHash,
		Response:   res.Response,
		Event:      ev,
	}, nil
}

func (p *Pipeline) prepareEmbeddings(ctx context.Context, r *run, req *providers.EmbeddingRequest) (*providers.EmbeddingRequest, int, *governance.Error) {
	if req == nil {
		return nil, 0, invalidRequest(errors.New("request body is required"), r.policyHash())
	}
	if err := r.rc.Validate(); err != nil {
		return nil, 0, invalidRequest(err, r.policyHash())
	}
	if len(req.Input) == 0 {
		return nil, 0, invalidRequest(errors.New("input must not be empty"), r.policyHash())
	}

	decision, gerr := r.evaluate(ctx, p.estimator.EstimateEmbeddings(req))
	if gerr != nil {
		return nil, 0, gerr
	}

	out, applied, err := policy.ApplyEmbeddingTransforms(req, decision.Transforms)
	if err != nil {
		return nil, 0, transformError(err, decision.PolicyHash)
	}
	r.ev.TransformsApplied = applied.Operations
	r.forced = applied.ForceRedact

	_, span := tracing.Start(ctx, tracing.SpanRedaction, attribute.String(tracing.AttrRedactionDirection, "input"))
	var scanned redaction.Result
	for i, in := range out.Input {
		res := r.redact(in)
		out.Input[i] = res.Text
		scanned.Merge(res)
	}
	r.recordRedaction("input", scanned)
	span.SetAttributes(attribute.Int(tracing.AttrRedactionCount, scanned.MatchCount))
	tracing.End(span, nil)

	if err := decision.CheckModel(out.Model); err != nil {
		return nil, 0, modelError(err, decision.PolicyHash)
	}
	r.ev.SelectedModel = out.Model
	r.ev.ProviderRequestHash = audit.HashJSON(out)

	estimate := p.estimator.EstimateEmbeddings(out)
	if gerr := r.reserve(ctx, int64(estimate)); gerr != nil {
		return nil, 0, gerr
	}
	return out, estimate, nil
}
