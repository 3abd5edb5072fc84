package pipeline_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	mockrouting "mercator-hq/saturn/internal/routing"
	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/webhook"
	"mercator-hq/saturn/pkg/webhook/deadletter"
)

func newDispatcher(t *testing.T, url string) (*webhook.Dispatcher, deadletter.Store) {
	t.Helper()
	store, err := deadletter.NewJSONLStore(filepath.Join(t.TempDir(), "dead_letters.jsonl"), 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	d := webhook.NewDispatcher([]webhook.Endpoint{{URL: url, Enabled: true}}, webhook.Options{
		Workers:        1,
		Timeout:        time.Second,
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		DeadLetter:     store,
	})
	return d, store
}

func closeDispatcher(t *testing.T, d *webhook.Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("dispatcher Close: %v", err)
	}
}

func TestPipeline_Chat_FailingReceiverDeadLetters(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, store := newDispatcher(t, srv.URL)
	provider := mockrouting.NewMockProvider("alpha", mockrouting.Step{Content: "noted"})
	h := newHarness(t, setup{providers: []*mockrouting.MockProvider{provider}, notifier: d})

	res, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationPII), chatRequest("mail bob@example.com"))
	if err != nil {
		t.Fatalf("Chat must succeed while the receiver fails: %v", err)
	}
	if res.Response.Content != "noted" {
		t.Errorf("response content = %q", res.Response.Content)
	}

	ev := h.only(t)
	if ev.Outcome != audit.OutcomeSuccess {
		t.Errorf("outcome = %q", ev.Outcome)
	}
	want := audit.WebhookDispatch{EventType: string(webhook.EventRedactionHit), Endpoint: srv.URL, Status: webhook.StatusQueued}
	if got, ok := dispatched(ev, webhook.EventRedactionHit); !ok || got != want {
		t.Errorf("redaction_hit dispatch = %+v, want %+v", got, want)
	}

	closeDispatcher(t, d)

	records, err := store.List(context.Background(), deadletter.Filter{EventTypes: []string{string(webhook.EventRedactionHit)}})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("dead letters = %+v, want one redaction_hit record", records)
	}
	rec := records[0]
	if rec.EndpointURL != srv.URL || rec.StatusCode != http.StatusInternalServerError {
		t.Errorf("dead letter = %+v", rec)
	}
	if rec.Attempts != 2 || hits.Load() < 2 {
		t.Errorf("attempts = %d, receiver hits = %d, want 2 each", rec.Attempts, hits.Load())
	}
}

func TestPipeline_Chat_RecordsDeadLetteredOutcome(t *testing.T) {
	d, store := newDispatcher(t, "http://127.0.0.1:1")
	closeDispatcher(t, d)

	h := newHarness(t, setup{notifier: d})
	if _, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationPII), chatRequest("mail bob@example.com")); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	ev := h.only(t)
	got, ok := dispatched(ev, webhook.EventRedactionHit)
	if !ok || got.Status != webhook.StatusDeadLettered || got.Endpoint != "http://127.0.0.1:1" {
		t.Errorf("redaction_hit dispatch = %+v (all: %+v)", got, ev.WebhookEvents)
	}

	records, err := store.List(context.Background(), deadletter.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) == 0 || records[0].LastError != "dispatcher_closed" {
		t.Errorf("dead letters = %+v", records)
	}
}
