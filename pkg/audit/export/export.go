package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/saturn/pkg/audit"
)

// Exporter writes events to w in append order.
type Exporter interface {
	Export(ctx context.Context, events []audit.Event, w io.Writer) error
}

// New returns the exporter for format ("csv" or "jsonl").
func New(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "csv":
		return NewCSVExporter(true), nil
	case "jsonl", "ndjson":
		return &JSONLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want csv or jsonl)", format)
	}
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	TenantID string
	Outcome  audit.Outcome
	Since    time.Time
	Until    time.Time
}

func (f Filter) matches(ev audit.Event) bool {
	switch {
	case f.TenantID != "" && ev.TenantID != f.TenantID:
		return false
	case f.Outcome != "" && ev.Outcome != f.Outcome:
		return false
	case !f.Since.IsZero() && ev.CreatedAt.Before(f.Since):
		return false
	case !f.Until.IsZero() && !ev.CreatedAt.Before(f.Until):
		return false
	}
	return true
}

// Apply returns the events matching f, keeping their order.
func Apply(events []audit.Event, f Filter) []audit.Event {
	out := make([]audit.Event, 0, len(events))
	for _, ev := range events {
		if f.matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// CSVExporter flattens events into one row each. List fields are joined
// with ";".
type CSVExporter struct {
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"event_id", "created_at", "request_id", "tenant_id", "user_id", "endpoint",
	"outcome", "reason_code",
	"requested_model", "selected_model", "provider",
	"policy_decision", "policy_decision_id", "policy_hash", "policy_mode", "transforms_applied",
	"input_redaction_count", "output_redaction_count", "redaction_rules",
	"citations",
	"streaming", "stream_truncated", "truncation_reason",
	"provider_attempts", "fallback_chain",
	"tokens_in", "tokens_out", "cost_usd",
	"webhook_events",
	"prev_hash", "payload_hash",
}

// Export writes a header row (when configured) and one row per event.
func (e *CSVExporter) Export(ctx context.Context, events []audit.Event, w io.Writer) error {
	cw := csv.NewWriter(w)
	if e.IncludeHeader {
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
	}
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(csvRow(ev)); err != nil {
			return fmt.Errorf("csv export at event %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	return nil
}

func csvRow(ev audit.Event) []string {
	citations := make([]string, 0, len(ev.RetrievalCitations))
	for _, c := range ev.RetrievalCitations {
		citations = append(citations, c.ConnectorID+":"+c.SourceID+"#"+c.ChunkID)
	}
	webhooks := make([]string, 0, len(ev.WebhookEvents))
	for _, w := range ev.WebhookEvents {
		webhooks = append(webhooks, w.EventType+"@"+w.Endpoint+"="+w.Status)
	}
	created := ""
	if !ev.CreatedAt.IsZero() {
		created = ev.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		ev.EventID, created, ev.RequestID, ev.TenantID, ev.UserID, ev.Endpoint,
		string(ev.Outcome), ev.ReasonCode,
		ev.RequestedModel, ev.SelectedModel, ev.Provider,
		ev.PolicyDecision, ev.PolicyDecisionID, ev.PolicyHash, ev.PolicyMode, strings.Join(ev.TransformsApplied, ";"),
		strconv.Itoa(ev.InputRedactionCount), strconv.Itoa(ev.OutputRedactionCount), strings.Join(ev.RedactionRules, ";"),
		strings.Join(citations, ";"),
		strconv.FormatBool(ev.Streaming), strconv.FormatBool(ev.StreamTruncated), ev.TruncationReason,
		strconv.Itoa(ev.ProviderAttempts), strings.Join(ev.FallbackChain, ";"),
		strconv.Itoa(ev.TokensIn), strconv.Itoa(ev.TokensOut), strconv.FormatFloat(ev.CostUSD, 'f', 6, 64),
		strings.Join(webhooks, ";"),
		ev.PrevHash, ev.PayloadHash,
	}
}

// JSONLExporter writes each event as one JSON object per line, the same
// encoding the file sink uses.
type JSONLExporter struct{}

// Export writes events as JSON Lines.
func (e *JSONLExporter) Export(ctx context.Context, events []audit.Event, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("jsonl export at event %d: %w", i, err)
		}
	}
	return nil
}
