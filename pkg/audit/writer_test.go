package audit_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/audit/storage"
)

// flakySink fails appends while failing is set.
type flakySink struct {
	*storage.MemorySink
	mu      sync.Mutex
	failing bool
}

func (f *flakySink) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *flakySink) Append(ctx context.Context, ev audit.Event) error {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return f.MemorySink.Append(ctx, ev)
}

func newWriter(t *testing.T, sink audit.Sink) *audit.Writer {
	t.Helper()
	w, err := audit.NewWriter(context.Background(), sink, audit.Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWriter_AppendChains(t *testing.T) {
	sink := storage.NewMemorySink()
	w := newWriter(t, sink)
	ctx := context.Background()

	if w.Head() != audit.GenesisHash {
		t.Fatalf("empty chain head = %q", w.Head())
	}

	first, err := w.Append(ctx, audit.Event{RequestID: "r1", Outcome: audit.OutcomeSuccess})
	if err != nil {
		t.Fatal(err)
	}
	if first.PrevHash != audit.GenesisHash {
		t.Errorf("first prev_hash = %q", first.PrevHash)
	}
	if first.EventID == "" || first.CreatedAt.IsZero() {
		t.Error("writer should stamp event_id and created_at")
	}

	second, err := w.Append(ctx, audit.Event{RequestID: "r2", Outcome: audit.OutcomeDenied, ReasonCode: "policy_denied"})
	if err != nil {
		t.Fatal(err)
	}
	if second.PrevHash != first.PayloadHash {
		t.Error("second event should link to the first")
	}
	if w.Head() != second.PayloadHash {
		t.Error("head should be the last payload hash")
	}

	n, err := audit.VerifySink(ctx, sink)
	if err != nil || n != 2 {
		t.Fatalf("VerifySink = %d, %v", n, err)
	}
}

func TestWriter_FailedPersistKeepsHead(t *testing.T) {
	sink := &flakySink{MemorySink: storage.NewMemorySink()}
	w := newWriter(t, sink)
	ctx := context.Background()

	ok, err := w.Append(ctx, audit.Event{RequestID: "r1"})
	if err != nil {
		t.Fatal(err)
	}

	sink.setFailing(true)
	_, err = w.Append(ctx, audit.Event{RequestID: "r2"})
	var se *audit.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if w.Head() != ok.PayloadHash {
		t.Error("failed persist must not advance the head")
	}

	sink.setFailing(false)
	next, err := w.Append(ctx, audit.Event{RequestID: "r3"})
	if err != nil {
		t.Fatal(err)
	}
	if next.PrevHash != ok.PayloadHash {
		t.Error("next event must link to the last persisted event")
	}
	if _, err := audit.VerifySink(ctx, sink); err != nil {
		t.Errorf("chain broken after a failed persist: %v", err)
	}
}

func TestWriter_ConcurrentAppends(t *testing.T) {
	sink := storage.NewMemorySink()
	w := newWriter(t, sink)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := w.Append(ctx, audit.Event{RequestID: fmt.Sprintf("r%d", i)}); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	n, err := audit.VerifySink(ctx, sink)
	if err != nil {
		t.Fatalf("concurrent appends broke the chain: %v", err)
	}
	if n != 50 {
		t.Errorf("events = %d, want 50", n)
	}
}

func TestWriter_RecoversHeadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "events.jsonl")
	ctx := context.Background()

	sink, err := storage.NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := audit.NewWriter(ctx, sink, audit.Options{Backend: "file"})
	if err != nil {
		t.Fatal(err)
	}
	last, err := w.Append(ctx, audit.Event{RequestID: "before-restart"})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := storage.NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}
	w2, err := audit.NewWriter(ctx, reopened, audit.Options{Backend: "file"})
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Close()

	if w2.Head() != last.PayloadHash {
		t.Fatalf("recovered head = %q, want %q", w2.Head(), last.PayloadHash)
	}
	if _, err := w2.Append(ctx, audit.Event{RequestID: "after-restart"}); err != nil {
		t.Fatal(err)
	}
	if n, err := audit.VerifySink(ctx, reopened); err != nil || n != 2 {
		t.Errorf("VerifySink = %d, %v", n, err)
	}
}

func TestWriter_AppendAfterClose(t *testing.T) {
	w, err := audit.NewWriter(context.Background(), storage.NewMemorySink(), audit.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(context.Background(), audit.Event{}); !errors.Is(err, audit.ErrWriterClosed) {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}
}
