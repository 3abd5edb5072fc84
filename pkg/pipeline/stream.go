package pipeline

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/limits/budget"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/redaction"
	"mercator-hq/saturn/pkg/retrieval"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/telemetry/tracing"
	"mercator-hq/saturn/pkg/webhook"
)

// FinishReasonBudgetExceeded is the finish reason of the terminal chunk sent
// when the token budget runs out mid-stream.
const FinishReasonBudgetExceeded = "budget_exceeded"

// StreamResult is an open governed stream. Read Chunks until it is closed,
// then call Wait for the audit outcome.
type StreamResult struct {
	RequestID  string
	Provider   string
	Model      string
	PolicyHash string
	Citations  []retrieval.Citation

	// Chunks carries redacted deltas. A chunk with Error set is the last
	// one sent.
	Chunks <-chan *providers.StreamChunk

	done  chan struct{}
	event audit.Event
	err   error
}

// Wait blocks until the stream has been settled and audited. The error is
// non-nil only when the audit event could not be persisted.
func (s *StreamResult) Wait() (audit.Event, error) {
	<-s.done
	return s.event, s.err
}

// streamState accumulates what the relay saw.
type streamState struct {
	raw        strings.Builder
	completion int
	chunks     int
	usage      *providers.TokenUsage
	output     redaction.Result
	truncation string
	err        error
}

// Stream runs a streaming completion through the pipeline. The stages before
// the provider call are those of Chat. Once a provider has produced its first
// chunk, a relay goroutine redacts every delta, counts tokens and re-checks
// the budget every StreamCheckEvery chunks. When the budget runs out it sends
// a terminal chunk with finish reason "budget_exceeded" and stops.
//
// Budget commit and audit run when the stream ends, whether it completed, was
// truncated or the caller went away.
func (p *Pipeline) Stream(ctx context.Context, rc governance.RequestContext, req *providers.CompletionRequest) (*StreamResult, error) {
	if rc.Model == "" && req != nil {
		rc.Model = req.Model
	}
	ctx, r := p.begin(ctx, rc, EndpointChat, req, true)

	prep, gerr := p.prepare(ctx, r, req)
	if gerr != nil {
		return nil, r.fail(ctx, gerr)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	callCtx, span := tracing.Start(streamCtx, tracing.SpanProviderCall,
		attribute.String(tracing.AttrModel, prep.req.Model),
		attribute.Bool(tracing.AttrStreaming, true),
	)
	res, err := p.router.Stream(callCtx, p.criteria(r, prep), prep.req)
	if err != nil {
		tracing.End(span, err)
		cancel()
		r.route(routing.Route{Chain: routing.ChainOf(err), Attempts: routing.AttemptsOf(err)})
		return nil, r.fail(ctx, providerError(err, r.policyHash()))
	}
	r.route(res.Route)

	out := make(chan *providers.StreamChunk)
	sr := &StreamResult{
		RequestID:  rc.RequestID,
		Provider:   res.Provider,
		Model:      prep.req.Model,
		PolicyHash: r.policyHash(),
		Citations:  r.ev.RetrievalCitations,
		Chunks:     out,
		done:       make(chan struct{}),
	}
	go p.relay(ctx, cancel, span, r, prep, res.Chunks, out, sr)
	return sr, nil
}

func (p *Pipeline) relay(ctx context.Context, cancel context.CancelFunc, span trace.Span, r *run, prep *prepared,
	upstream <-chan *providers.StreamChunk, out chan<- *providers.StreamChunk, sr *StreamResult) {
	defer close(sr.done)

	st := &streamState{}
	send := func(c *providers.StreamChunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			st.truncation = audit.TruncationClientDisconnected
			break loop

		case chunk, ok := <-upstream:
			if !ok {
				if ctx.Err() != nil {
					st.truncation = audit.TruncationClientDisconnected
				}
				break loop
			}
			if chunk.Error != nil {
				st.truncation = audit.TruncationProviderError
				st.err = chunk.Error
				send(chunk)
				break loop
			}

			st.chunks++
			st.raw.WriteString(chunk.Delta)
			st.completion += p.estimator.EstimateText(chunk.Delta, prep.req.Model)
			if chunk.Usage != nil {
				u := *chunk.Usage
				st.usage = &u
			}

			if terminal := p.checkRunning(ctx, r, prep, st); terminal != nil {
				send(terminal)
				break loop
			}

			c := *chunk
			if c.Delta != "" {
				scanned := r.redact(c.Delta)
				c.Delta = scanned.Text
				st.output.Merge(scanned)
			}
			if !send(&c) {
				st.truncation = audit.TruncationClientDisconnected
				break loop
			}
		}
	}

	cancel()
	close(out)
	tracing.End(span, st.err)

	sr.event, sr.err = p.settleStream(ctx, r, prep, st)
}

// checkRunning re-checks the budget every StreamCheckEvery chunks. It returns
// the terminal chunk to send when the stream must stop.
func (p *Pipeline) checkRunning(ctx context.Context, r *run, prep *prepared, st *streamState) *providers.StreamChunk {
	if r.reservation == nil || st.chunks%p.opts.StreamCheckEvery != 0 {
		return nil
	}

	snap, err := p.budget.CheckRunning(ctx, r.reservation, int64(prep.estimate.PromptTokens+st.completion))
	if snap.TenantID != "" {
		r.ev.Budget = &snap
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		st.truncation = audit.TruncationClientDisconnected
		return nil
	}

	var exceeded *budget.ExceededError
	if errors.As(err, &exceeded) {
		r.logger.Info("stream truncated by budget",
			"tokens", exceeded.Requested,
			"used", exceeded.Used,
			"ceiling", exceeded.Ceiling,
		)
		st.truncation = audit.TruncationBudgetExceeded
		return &providers.StreamChunk{Model: prep.req.Model, FinishReason: FinishReasonBudgetExceeded}
	}

	r.logger.Warn("budget backend failed mid-stream", "error", err)
	st.truncation = audit.TruncationBudgetUnavailable
	return &providers.StreamChunk{Model: prep.req.Model, Error: budgetError(err, r.policyHash())}
}

// settleStream commits usage and audits a finished stream. It runs after the
// caller may have gone away.
func (p *Pipeline) settleStream(ctx context.Context, r *run, prep *prepared, st *streamState) (audit.Event, error) {
	ctx = context.WithoutCancel(ctx)

	r.ev.ProviderResponseHash = audit.HashBytes([]byte(st.raw.String()))
	r.recordRedaction("output", st.output)

	in, out := prep.estimate.PromptTokens, st.completion
	if st.usage != nil {
		in, out = usageOf(*st.usage, in, out)
	}
	r.settle(ctx, r.ev.Provider, prep.req.Model, in, out)

	r.ev.Outcome = audit.OutcomeSuccess
	if st.truncation != "" {
		r.ev.StreamTruncated = true
		r.ev.TruncationReason = st.truncation
		p.recorder.RecordStreamTruncation(st.truncation)
		r.notify(webhook.EventStreamTruncated, st.truncation, map[string]any{
			"chunks":     st.chunks,
			"tokens_out": out,
		})
	}
	r.announce()

	switch st.truncation {
	case audit.TruncationBudgetExceeded:
		r.ev.Outcome = audit.OutcomeDenied
		r.ev.ReasonCode = budget.ReasonBudgetExceeded
		r.notify(webhook.EventBudgetExceeded, budget.ReasonBudgetExceeded, map[string]any{"mid_stream": true})
	case audit.TruncationBudgetUnavailable:
		r.ev.Outcome = audit.OutcomeDenied
		r.ev.ReasonCode = budget.ReasonBackendUnavailable
	case audit.TruncationProviderError:
		r.ev.Outcome = audit.OutcomeFailed
		r.ev.ReasonCode = ReasonProviderError
		r.notify(webhook.EventProviderError, ReasonProviderError, map[string]any{"mid_stream": true})
	}

	ev, err := r.persist(ctx)
	if err != nil {
		r.finish(string(audit.OutcomeFailed), err)
		return audit.Event{}, err
	}
	r.finish(string(ev.Outcome), st.err)
	return ev, nil
}
