package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/retrieval"
)

func sampleEvents() []audit.Event {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []audit.Event{
		{
			EventID: "e1", CreatedAt: base, RequestID: "r1", TenantID: "acme",
			Endpoint: "chat", Outcome: audit.OutcomeSuccess, Provider: "openai",
			RedactionRules: []string{"email", "ssn"}, InputRedactionCount: 2,
			RetrievalCitations: []retrieval.Citation{{ConnectorID: "handbook", SourceID: "handbook/refunds", ChunkID: "c3"}},
			TokensIn: 40, TokensOut: 12, CostUSD: 0.00042,
			PrevHash: audit.GenesisHash, PayloadHash: "h1",
		},
		{
			EventID: "e2", CreatedAt: base.Add(time.Hour), RequestID: "r2", TenantID: "globex",
			Endpoint: "chat", Outcome: audit.OutcomeDenied, ReasonCode: "model_not_allowed",
			PrevHash: "h1", PayloadHash: "h2",
		},
		{
			EventID: "e3", CreatedAt: base.Add(2 * time.Hour), RequestID: "r3", TenantID: "acme",
			Endpoint: "embeddings", Outcome: audit.OutcomeFailed, ReasonCode: "all_providers_failed",
			PrevHash: "h2", PayloadHash: "h3",
		},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"csv", false},
		{"CSV", false},
		{"jsonl", false},
		{"ndjson", false},
		{"xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			_, err := New(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
		})
	}
}

func TestApply(t *testing.T) {
	events := sampleEvents()
	base := events[0].CreatedAt

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter", Filter{}, []string{"e1", "e2", "e3"}},
		{"tenant", Filter{TenantID: "acme"}, []string{"e1", "e3"}},
		{"outcome", Filter{Outcome: audit.OutcomeDenied}, []string{"e2"}},
		{"since inclusive", Filter{Since: base.Add(time.Hour)}, []string{"e2", "e3"}},
		{"until exclusive", Filter{Until: base.Add(time.Hour)}, []string{"e1"}},
		{"combined", Filter{TenantID: "acme", Since: base.Add(time.Minute)}, []string{"e3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(events, tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, ev := range got {
				if ev.EventID != tt.want[i] {
					t.Errorf("event %d = %s, want %s", i, ev.EventID, tt.want[i])
				}
			}
		})
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), sampleEvents(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, name := range []string{"event_id", "outcome", "redaction_rules", "citations", "cost_usd", "payload_hash"} {
		if _, ok := col[name]; !ok {
			t.Errorf("header missing %q", name)
		}
	}

	first := rows[1]
	if first[col["redaction_rules"]] != "email;ssn" {
		t.Errorf("redaction_rules = %q", first[col["redaction_rules"]])
	}
	if first[col["citations"]] != "handbook:handbook/refunds#c3" {
		t.Errorf("citations = %q", first[col["citations"]])
	}
	if first[col["cost_usd"]] != "0.000420" {
		t.Errorf("cost_usd = %q", first[col["cost_usd"]])
	}
	if first[col["created_at"]] != "2026-03-01T12:00:00Z" {
		t.Errorf("created_at = %q", first[col["created_at"]])
	}
	if rows[2][col["reason_code"]] != "model_not_allowed" {
		t.Errorf("reason_code = %q", rows[2][col["reason_code"]])
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(context.Background(), sampleEvents()[:1], &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if strings.HasPrefix(buf.String(), "event_id") {
		t.Error("header written when disabled")
	}
}

func TestJSONLExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONLExporter{}).Export(context.Background(), sampleEvents(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	sc := bufio.NewScanner(&buf)
	var ids []string
	for sc.Scan() {
		var ev audit.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line is not an event: %v", err)
		}
		ids = append(ids, ev.EventID)
	}
	if strings.Join(ids, ",") != "e1,e2,e3" {
		t.Errorf("ids = %v", ids)
	}
}

func TestExport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, exp := range []Exporter{NewCSVExporter(true), &JSONLExporter{}} {
		if err := exp.Export(ctx, sampleEvents(), &bytes.Buffer{}); err == nil {
			t.Errorf("%T: expected context error", exp)
		}
	}
}
