package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/config"
)

func chained(t *testing.T, requestIDs ...string) []audit.Event {
	t.Helper()
	prev := audit.GenesisHash
	var out []audit.Event
	for i, id := range requestIDs {
		ev := audit.Event{
			EventID:   id + "-event",
			CreatedAt: time.Date(2026, 2, 1, 0, 0, i, 123456789, time.UTC),
			RequestID: id,
			TenantID:  "acme",
			Outcome:   audit.OutcomeSuccess,
			CostUSD:   0.0042,
			PrevHash:  prev,
		}
		h, err := audit.PayloadHash(ev)
		if err != nil {
			t.Fatal(err)
		}
		ev.PayloadHash = h
		prev = h
		out = append(out, ev)
	}
	return out
}

func exerciseSink(t *testing.T, sink audit.Sink) {
	t.Helper()
	ctx := context.Background()

	last, err := sink.Last(ctx)
	if err != nil {
		t.Fatalf("Last on empty sink: %v", err)
	}
	if last != nil {
		t.Fatalf("empty sink returned %+v", last)
	}

	events := chained(t, "r1", "r2", "r1")
	for _, ev := range events {
		if err := sink.Append(ctx, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := sink.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("ReadAll returned %d events", len(all))
	}
	if err := audit.VerifyChain(all); err != nil {
		t.Errorf("read-back chain does not verify: %v", err)
	}

	found, err := sink.FindByRequestID(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 || found[0].EventID != "r1-event" {
		t.Errorf("FindByRequestID = %+v", found)
	}

	last, err = sink.Last(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.PayloadHash != events[2].PayloadHash {
		t.Errorf("Last = %+v", last)
	}
}

func TestFileSink(t *testing.T) {
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "nested", "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	exerciseSink(t, sink)
}

func TestFileSink_AppendAfterClose(t *testing.T) {
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(context.Background(), audit.Event{}); err == nil {
		t.Error("expected error appending to a closed sink")
	}
}

func TestSQLiteSink(t *testing.T) {
	sink, err := NewSQLiteSink(&SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	exerciseSink(t, sink)
}

func TestSQLiteSink_RejectsDuplicateEventID(t *testing.T) {
	sink, err := NewSQLiteSink(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "audit.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	ev := chained(t, "r1")[0]
	ctx := context.Background()
	if err := sink.Append(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(ctx, ev); err == nil {
		t.Error("expected unique constraint violation")
	}
}

func TestSQLiteSink_AppendOnly(t *testing.T) {
	sink, err := NewSQLiteSink(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "audit.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Append(ctx, chained(t, "r1")[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := sink.db.ExecContext(ctx, `DELETE FROM audit_events`); err == nil {
		t.Error("delete should be refused")
	}
	if _, err := sink.db.ExecContext(ctx, `UPDATE audit_events SET outcome = 'denied'`); err == nil {
		t.Error("update should be refused")
	}
}

func TestMemorySink(t *testing.T) {
	exerciseSink(t, NewMemorySink())
}

func TestNewSink(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.AuditConfig
		wantErr bool
	}{
		{"file", config.AuditConfig{Backend: "file", Path: filepath.Join(dir, "a.jsonl")}, false},
		{"sqlite", config.AuditConfig{Backend: "sqlite", Path: filepath.Join(dir, "a.db")}, false},
		{"memory", config.AuditConfig{Backend: "memory"}, false},
		{"unknown", config.AuditConfig{Backend: "kafka"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewSink(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			_ = sink.Close()
		})
	}
}
