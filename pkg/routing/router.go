package routing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/saturn/pkg/providers"
)

// DefaultRetryableStatuses are the upstream statuses that fall through to the
// next provider in the chain.
var DefaultRetryableStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
}

// Options configures a Router.
type Options struct {
	// RetryableStatuses replaces DefaultRetryableStatuses when non-empty.
	RetryableStatuses []int

	// OnAttempt is called after every provider attempt.
	OnAttempt func(Attempt)
}

// Router sends a request along a provider chain until one provider answers.
//
// Each provider is attempted at most once per request. An error whose status
// is retryable moves on to the next provider; any other error is returned
// immediately as a *TerminalError. When the chain runs out the router returns
// an *ExhaustedError. Timeouts count as 503 and connection failures as 502.
//
// Router is safe for concurrent use.
type Router struct {
	entries   []Entry
	retryable map[int]bool
	onAttempt func(Attempt)
	stats     *AtomicRoutingStats
	logger    *slog.Logger
}

// NewRouter creates a router over the configured providers.
func NewRouter(entries []Entry, opts Options) *Router {
	statuses := opts.RetryableStatuses
	if len(statuses) == 0 {
		statuses = DefaultRetryableStatuses
	}
	retryable := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		retryable[s] = true
	}

	return &Router{
		entries:   append([]Entry(nil), entries...),
		retryable: retryable,
		onAttempt: opts.OnAttempt,
		stats:     NewAtomicRoutingStats(),
		logger:    slog.Default().With("component", "routing.router"),
	}
}

// Chain returns the ordered chain for the criteria.
func (r *Router) Chain(c Criteria) []Entry {
	return BuildChain(r.entries, c)
}

// Stats returns a snapshot of routing statistics.
func (r *Router) Stats() *RoutingStats {
	return r.stats.Snapshot()
}

// Chat routes a chat completion.
func (r *Router) Chat(ctx context.Context, c Criteria, req *providers.CompletionRequest) (*ChatResult, error) {
	c.Capability = providers.CapabilityChat
	var resp *providers.CompletionResponse
	route, err := r.do(ctx, c, func(ctx context.Context, e Entry) error {
		var err error
		resp, err = e.Provider.Chat(ctx, req.Clone())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ChatResult{Route: route, Response: resp}, nil
}

// Embeddings routes an embeddings request.
func (r *Router) Embeddings(ctx context.Context, c Criteria, req *providers.EmbeddingRequest) (*EmbeddingsResult, error) {
	c.Capability = providers.CapabilityEmbeddings
	var resp *providers.EmbeddingResponse
	route, err := r.do(ctx, c, func(ctx context.Context, e Entry) error {
		var err error
		resp, err = e.Provider.Embeddings(ctx, req.Clone())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &EmbeddingsResult{Route: route, Response: resp}, nil
}

// Stream routes a streaming completion.
//
// A provider is committed only after its first chunk arrives without error.
// An open error, a first-chunk error or a stream that closes before its first
// chunk is an attempt failure classified like any other. Once committed the
// router never switches providers; later chunk errors reach the caller.
func (r *Router) Stream(ctx context.Context, c Criteria, req *providers.CompletionRequest) (*StreamResult, error) {
	c.Capability = providers.CapabilityStream
	var out <-chan *providers.StreamChunk
	route, err := r.do(ctx, c, func(ctx context.Context, e Entry) error {
		attemptCtx, cancel := context.WithCancel(ctx)

		streamReq := req.Clone()
		streamReq.Stream = true
		chunks, err := e.Provider.Stream(attemptCtx, streamReq)
		if err != nil {
			cancel()
			return err
		}

		first, err := firstChunk(attemptCtx, e.Name(), chunks)
		if err != nil {
			cancel()
			return err
		}
		out = replay(attemptCtx, cancel, first, chunks)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &StreamResult{Route: route, Chunks: out}, nil
}

func firstChunk(ctx context.Context, provider string, chunks <-chan *providers.StreamChunk) (*providers.StreamChunk, error) {
	select {
	case chunk, ok := <-chunks:
		if !ok || chunk == nil {
			return nil, &providers.StreamError{Provider: provider, Message: "stream closed before first chunk"}
		}
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// replay forwards first and then the rest of the stream. cancel releases the
// provider when the caller stops reading.
func replay(ctx context.Context, cancel context.CancelFunc, first *providers.StreamChunk, chunks <-chan *providers.StreamChunk) <-chan *providers.StreamChunk {
	out := make(chan *providers.StreamChunk)
	go func() {
		defer close(out)
		defer cancel()

		select {
		case out <- first:
		case <-ctx.Done():
			return
		}
		for chunk := range chunks {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (r *Router) do(ctx context.Context, c Criteria, call func(context.Context, Entry) error) (Route, error) {
	chain := r.Chain(c)
	if len(chain) == 0 {
		return Route{}, &NoEligibleProviderError{Capability: string(c.Capability), Model: c.Model}
	}

	r.stats.IncrementTotal()
	var route Route
	var lastErr error

	for i, e := range chain {
		route.Chain = append(route.Chain, e.Name())
		start := time.Now()
		err := call(ctx, e)
		attempt := Attempt{Provider: e.Name(), Latency: time.Since(start)}

		if err == nil {
			attempt.Outcome = OutcomeSuccess
			r.record(attempt)
			route.Attempts = append(route.Attempts, attempt)
			route.Provider = e.Name()
			if i > 0 {
				r.stats.IncrementFallback()
			}
			return route, nil
		}

		attempt.Outcome, attempt.StatusCode = r.classify(err)
		if ctx.Err() != nil {
			// The caller gave up; nothing downstream will read an answer.
			attempt.Outcome = OutcomeTerminalError
		}
		attempt.Error = err.Error()
		r.record(attempt)
		route.Attempts = append(route.Attempts, attempt)

		if attempt.Outcome == OutcomeTerminalError {
			r.logger.Warn("provider failed with terminal error",
				"provider", e.Name(),
				"status", attempt.StatusCode,
				"error", err,
			)
			return route, &TerminalError{Provider: e.Name(), Chain: route.Chain, Attempts: route.Attempts, Err: err}
		}

		r.logger.Warn("provider failed, falling back",
			"provider", e.Name(),
			"status", attempt.StatusCode,
			"outcome", attempt.Outcome,
			"remaining", len(chain)-i-1,
		)
		lastErr = err
	}

	r.stats.IncrementExhausted()
	return route, &ExhaustedError{Chain: route.Chain, Attempts: route.Attempts, LastErr: lastErr}
}

// classify maps a provider error to an attempt outcome and status.
func (r *Router) classify(err error) (Outcome, int) {
	status := providers.StatusCode(err)

	var timeoutErr *providers.TimeoutError
	timedOut := errors.As(err, &timeoutErr) || errors.Is(err, context.DeadlineExceeded)
	if timedOut && status == 0 {
		status = http.StatusServiceUnavailable
	}

	if !r.retryable[status] {
		return OutcomeTerminalError, status
	}
	if timedOut {
		return OutcomeTimeout, status
	}
	return OutcomeRetryableError, status
}

func (r *Router) record(a Attempt) {
	r.stats.RecordAttempt(a)
	if r.onAttempt != nil {
		r.onAttempt(a)
	}
}
