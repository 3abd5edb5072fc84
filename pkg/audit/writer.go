package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/config"
)

// Options configure a Writer.
type Options struct {
	// Backend names the sink in errors and logs.
	Backend string

	// AppendTimeout bounds a single persist.
	// Default: config.DefaultAuditAppendTimeout
	AppendTimeout time.Duration
}

type appendRequest struct {
	ctx   context.Context
	event Event
	reply chan appendResult
}

type appendResult struct {
	event Event
	err   error
}

// Writer appends events to a hash chain. A single goroutine owns the chain
// head and the sink, so appends are totally ordered even when many requests
// finish at once. The head advances only after the sink confirms the write.
type Writer struct {
	sink     Sink
	opts     Options
	requests chan appendRequest
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	head string
}

// NewWriter recovers the chain head from the sink's last event and starts
// the writer goroutine.
func NewWriter(ctx context.Context, sink Sink, opts Options) (*Writer, error) {
	if opts.AppendTimeout <= 0 {
		opts.AppendTimeout = config.DefaultAuditAppendTimeout
	}
	if opts.Backend == "" {
		opts.Backend = "unknown"
	}

	head := GenesisHash
	last, err := sink.Last(ctx)
	if err != nil {
		return nil, NewStorageError(opts.Backend, "recover_head", err)
	}
	if last != nil {
		head = last.PayloadHash
	}

	w := &Writer{
		sink:     sink,
		opts:     opts,
		requests: make(chan appendRequest),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "audit.writer", "backend", opts.Backend),
		now:      time.Now,
		head:     head,
	}

	w.wg.Add(1)
	go w.run()

	w.logger.Info("audit writer started",
		"head", head,
		"recovered", last != nil,
		"append_timeout", opts.AppendTimeout,
	)
	return w, nil
}

// Append chains and persists ev, returning it with event_id, created_at,
// prev_hash and payload_hash set. On error nothing was chained and the head
// is unchanged.
//
// Once the writer accepted the event, Append waits for the persist result
// even if ctx is cancelled, so a returned error always means the event is
// not in the chain.
func (w *Writer) Append(ctx context.Context, ev Event) (Event, error) {
	req := appendRequest{ctx: ctx, event: ev, reply: make(chan appendResult, 1)}
	select {
	case w.requests <- req:
	case <-w.done:
		return Event{}, ErrWriterClosed
	case <-ctx.Done():
		return Event{}, NewStorageError(w.opts.Backend, "append", ctx.Err())
	}
	res := <-req.reply
	return res.event, res.err
}

// Head returns the payload_hash of the last persisted event, or
// GenesisHash when the chain is empty.
func (w *Writer) Head() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.head
}

// Sink returns the underlying sink.
func (w *Writer) Sink() Sink {
	return w.sink
}

// Close stops the writer goroutine and closes the sink.
func (w *Writer) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.sink.Close()
		w.logger.Info("audit writer closed", "head", w.Head())
	})
	return err
}

func (w *Writer) run() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.requests:
			ev, err := w.write(req.ctx, req.event)
			req.reply <- appendResult{event: ev, err: err}
		case <-w.done:
			return
		}
	}
}

// write runs on the writer goroutine only.
func (w *Writer) write(ctx context.Context, ev Event) (Event, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = w.now().UTC()
	}
	ev.PrevHash = w.Head()

	hash, err := PayloadHash(ev)
	if err != nil {
		return Event{}, NewStorageError(w.opts.Backend, "hash", err)
	}
	ev.PayloadHash = hash

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opts.AppendTimeout)
	defer cancel()

	start := time.Now()
	if err := w.sink.Append(persistCtx, ev); err != nil {
		w.logger.Error("failed to persist audit event",
			"event_id", ev.EventID,
			"request_id", ev.RequestID,
			"error", err,
		)
		return Event{}, NewStorageError(w.opts.Backend, "append", err)
	}

	w.mu.Lock()
	w.head = hash
	w.mu.Unlock()

	w.logger.Debug("audit event appended",
		"event_id", ev.EventID,
		"request_id", ev.RequestID,
		"outcome", ev.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ev, nil
}
