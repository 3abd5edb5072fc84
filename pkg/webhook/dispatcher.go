package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/webhook/deadletter"
)

// Version is stamped into every envelope.
const Version = "1"

// enqueueDeadLetterTimeout bounds the dead-letter write made on the caller's
// goroutine when an event cannot be queued. A store slower than this loses
// the event and it is counted as dropped.
const enqueueDeadLetterTimeout = 250 * time.Millisecond

// Options configure a Dispatcher.
type Options struct {
	Workers        int
	QueueSize      int
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Client defaults to an http.Client without a global timeout; each
	// attempt is bounded by Timeout.
	Client *http.Client

	// DeadLetter receives exhausted deliveries. Nil logs and drops them.
	DeadLetter deadletter.Store

	Recorder Recorder
}

type delivery struct {
	endpoint Endpoint
	envelope Envelope
	body     []byte
	key      string
}

// Dispatcher delivers events to webhook endpoints on a fixed worker pool.
// Dispatch never blocks on the network: it enqueues and returns. Each
// delivery is retried with exponential backoff up to MaxRetries and then
// written to the dead-letter store, so background work always terminates.
type Dispatcher struct {
	endpoints []Endpoint
	opts      Options
	sender    sender
	queue     chan delivery

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher starts opts.Workers delivery workers.
func NewDispatcher(endpoints []Endpoint, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = config.DefaultWebhookWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = config.DefaultWebhookQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultWebhookTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = config.DefaultWebhookInitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		endpoints: append([]Endpoint(nil), endpoints...),
		opts:      opts,
		sender:    sender{client: opts.Client, timeout: opts.Timeout},
		queue:     make(chan delivery, opts.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    slog.Default().With("component", "webhook.dispatcher"),
		now:       time.Now,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.logger.Info("webhook dispatcher started",
		"endpoints", len(endpoints),
		"workers", opts.Workers,
		"queue_size", opts.QueueSize,
		"max_retries", opts.MaxRetries,
	)
	return d
}

// EndpointsFromConfig converts configured endpoints. Unknown event types
// are rejected by config validation and skipped here.
func EndpointsFromConfig(cfg []config.WebhookEndpointConfig) []Endpoint {
	out := make([]Endpoint, 0, len(cfg))
	for _, c := range cfg {
		ep := Endpoint{URL: c.URL, Secret: c.Secret, Enabled: !c.Disabled}
		for _, s := range c.EventTypes {
			if t, err := ParseEventType(s); err == nil {
				ep.EventTypes = append(ep.EventTypes, t)
			}
		}
		out = append(out, ep)
	}
	return out
}

// NewDispatcherFromConfig builds a dispatcher from configuration.
func NewDispatcherFromConfig(cfg config.WebhooksConfig, store deadletter.Store, recorder Recorder) *Dispatcher {
	return NewDispatcher(EndpointsFromConfig(cfg.Endpoints), Options{
		Workers:        cfg.Workers,
		QueueSize:      cfg.QueueSize,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		DeadLetter:     store,
		Recorder:       recorder,
	})
}

// ShouldFire reports whether any endpoint subscribes to t.
func (d *Dispatcher) ShouldFire(t EventType) bool {
	for _, ep := range d.endpoints {
		if ep.Subscribes(t) {
			return true
		}
	}
	return false
}

// Dispatch hands the event to every subscribed endpoint and returns one
// outcome per endpoint without waiting for delivery. When the queue is full
// or the dispatcher is closed the event goes straight to the dead-letter
// store.
func (d *Dispatcher) Dispatch(t EventType, payload any) []Outcome {
	if !d.ShouldFire(t) {
		return nil
	}

	env, body, err := d.envelope(t, payload)
	if err != nil {
		d.logger.Error("failed to encode webhook event", "event_type", t, "error", err)
		return nil
	}

	var outcomes []Outcome
	for _, ep := range d.endpoints {
		if !ep.Subscribes(t) {
			continue
		}
		del := delivery{endpoint: ep, envelope: env, body: body, key: IdempotencyKey(ep.URL, env.EventID)}
		outcomes = append(outcomes, Outcome{
			EventID:     env.EventID,
			EventType:   t,
			EndpointURL: ep.URL,
			Status:      d.enqueue(del),
		})
	}
	return outcomes
}

func (d *Dispatcher) envelope(t EventType, payload any) (Envelope, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("marshal payload: %w", err)
	}
	id, err := EventID(t, raw)
	if err != nil {
		return Envelope{}, nil, err
	}
	env := Envelope{
		EventID:   id,
		EventType: t,
		Timestamp: d.now().UTC(),
		Version:   Version,
		Payload:   raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, err
	}
	return env, body, nil
}

func (d *Dispatcher) enqueue(del delivery) string {
	d.mu.RLock()
	if !d.closed {
		select {
		case d.queue <- del:
			d.mu.RUnlock()
			return StatusQueued
		default:
		}
	}
	closed := d.closed
	d.mu.RUnlock()

	reason := "queue_full"
	if closed {
		reason = "dispatcher_closed"
	}
	d.logger.Warn("webhook not queued, dead-lettering",
		"event_type", del.envelope.EventType,
		"endpoint", del.endpoint.URL,
		"reason", reason,
	)
	if err := d.deadLetter(del, 0, 0, errors.New(reason), min(d.opts.Timeout, enqueueDeadLetterTimeout)); err != nil {
		d.opts.Recorder.RecordWebhookDelivery(string(del.envelope.EventType), ResultDropped)
		return StatusDropped
	}
	return StatusDeadLettered
}

// Close stops accepting events and waits for queued deliveries. If ctx
// expires first, in-flight retries are cancelled and dead-lettered.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("webhook dispatcher drained")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		d.logger.Warn("webhook dispatcher close timed out, remaining deliveries dead-lettered")
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for del := range d.queue {
		d.deliver(del)
	}
}

func (d *Dispatcher) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.InitialBackoff
	b.MaxInterval = d.opts.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	return b
}

func (d *Dispatcher) deliver(del delivery) {
	eventType := string(del.envelope.EventType)
	header := deliveryHeader(del.envelope, del.key, del.endpoint.Secret, del.body)

	var (
		attempts   int
		lastStatus int
		lastErr    error
	)
	op := func() (int, error) {
		attempts++
		status, err := d.sender.post(d.ctx, del.endpoint.URL, del.body, header)
		lastStatus = status
		if err != nil {
			lastErr = err
			return 0, err
		}
		if successStatus(status) {
			return status, nil
		}
		lastErr = fmt.Errorf("status %d", status)
		if retryableStatus(status) {
			return status, lastErr
		}
		return status, backoff.Permanent(lastErr)
	}

	_, err := backoff.Retry(d.ctx, op,
		backoff.WithBackOff(d.backoff()),
		backoff.WithMaxTries(uint(d.opts.MaxRetries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			d.opts.Recorder.RecordWebhookDelivery(eventType, ResultRetried)
			d.logger.Debug("retrying webhook delivery",
				"event_id", del.envelope.EventID,
				"endpoint", del.endpoint.URL,
				"error", err,
				"wait", wait,
			)
		}),
	)
	if err == nil {
		d.opts.Recorder.RecordWebhookDelivery(eventType, ResultDelivered)
		d.logger.Debug("webhook delivered",
			"event_id", del.envelope.EventID,
			"event_type", eventType,
			"endpoint", del.endpoint.URL,
			"attempts", attempts,
		)
		return
	}
	if lastErr == nil {
		lastErr = err
	}

	d.logger.Warn("webhook delivery failed, dead-lettering",
		"event_id", del.envelope.EventID,
		"event_type", eventType,
		"endpoint", del.endpoint.URL,
		"attempts", attempts,
		"status_code", lastStatus,
		"error", lastErr,
	)
	if err := d.deadLetter(del, attempts, lastStatus, lastErr, d.opts.Timeout); err != nil {
		d.opts.Recorder.RecordWebhookDelivery(eventType, ResultDropped)
	}
}

func (d *Dispatcher) deadLetter(del delivery, attempts, status int, cause error, timeout time.Duration) error {
	if d.opts.DeadLetter == nil {
		d.logger.Error("no dead-letter store configured, dropping webhook",
			"event_id", del.envelope.EventID,
			"endpoint", del.endpoint.URL,
		)
		return errors.New("no dead-letter store")
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(d.ctx), timeout)
	defer cancel()

	rec := deadletter.Record{
		EventID:        del.envelope.EventID,
		EventType:      string(del.envelope.EventType),
		EndpointURL:    del.endpoint.URL,
		Payload:        del.body,
		Attempts:       attempts,
		StatusCode:     status,
		IdempotencyKey: del.key,
		FirstSeenAt:    del.envelope.Timestamp,
	}
	if cause != nil {
		rec.LastError = cause.Error()
	}
	if err := d.opts.DeadLetter.Append(ctx, rec); err != nil {
		d.logger.Error("failed to write dead letter",
			"event_id", rec.EventID,
			"endpoint", rec.EndpointURL,
			"error", err,
		)
		return err
	}
	d.opts.Recorder.RecordWebhookDelivery(rec.EventType, ResultDeadLettered)
	return nil
}
