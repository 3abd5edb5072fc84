package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"mercator-hq/saturn/pkg/webhook/deadletter"
)

// Replay outcomes per record.
const (
	ReplayDelivered = "delivered"
	ReplayFailed    = "failed"
	ReplayDryRun    = "dry_run"
)

// ReplayOptions control a replay run.
type ReplayOptions struct {
	// DryRun reports what would be sent without sending or deleting.
	DryRun bool

	// EndpointOverride sends every record to this URL instead of the one
	// it was dead-lettered for.
	EndpointOverride string
}

// ReplayResult is the outcome for one dead-letter record.
type ReplayResult struct {
	RecordID    string `json:"record_id"`
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	EndpointURL string `json:"endpoint_url"`
	Outcome     string `json:"outcome"`
	StatusCode  int    `json:"status_code,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ReplaySummary reports a replay run.
type ReplaySummary struct {
	TotalRecords      int            `json:"total_records"`
	ConsideredRecords int            `json:"considered_records"`
	Attempted         int            `json:"attempted"`
	Succeeded         int            `json:"succeeded"`
	Failed            int            `json:"failed"`
	DryRun            bool           `json:"dry_run"`
	Results           []ReplayResult `json:"results"`
}

// Replayer re-delivers dead-letter records. Each record is sent once per
// run with its original idempotency key and X-Saturn-Replay set, and is
// deleted after a 2xx, so running a replay twice never double-delivers a
// record the receiver already acknowledged.
type Replayer struct {
	store   deadletter.Store
	secrets map[string]string
	sender  sender
	logger  *slog.Logger
}

// NewReplayer creates a replayer. Endpoint secrets are used to sign
// replayed bodies for URLs that are still configured.
func NewReplayer(store deadletter.Store, endpoints []Endpoint, timeout time.Duration, client *http.Client) *Replayer {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	secrets := make(map[string]string, len(endpoints))
	for _, ep := range endpoints {
		if ep.Secret != "" {
			secrets[ep.URL] = ep.Secret
		}
	}
	return &Replayer{
		store:   store,
		secrets: secrets,
		sender:  sender{client: client, timeout: timeout},
		logger:  slog.Default().With("component", "webhook.replayer"),
	}
}

// Replay re-attempts the records selected by f. Reading the store applies
// its retention rule first.
func (r *Replayer) Replay(ctx context.Context, f deadletter.Filter, opts ReplayOptions) (*ReplaySummary, error) {
	all, err := r.store.List(ctx, deadletter.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}

	summary := &ReplaySummary{TotalRecords: len(all), DryRun: opts.DryRun, Results: []ReplayResult{}}
	var delivered []string

	for _, rec := range all {
		if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, rec.EventType) {
			continue
		}
		if f.Limit > 0 && summary.ConsideredRecords >= f.Limit {
			break
		}
		summary.ConsideredRecords++

		res, attempted := r.replayOne(ctx, rec, opts)
		if attempted {
			summary.Attempted++
		}
		switch res.Outcome {
		case ReplayDelivered:
			summary.Succeeded++
			delivered = append(delivered, rec.ID)
		case ReplayDryRun:
			summary.Succeeded++
		default:
			summary.Failed++
		}
		summary.Results = append(summary.Results, res)
	}

	if len(delivered) > 0 {
		if _, err := r.store.Delete(ctx, delivered); err != nil {
			return summary, fmt.Errorf("delete replayed dead letters: %w", err)
		}
	}

	r.logger.Info("dead-letter replay finished",
		"total", summary.TotalRecords,
		"considered", summary.ConsideredRecords,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"dry_run", opts.DryRun,
	)
	return summary, nil
}

// replayOne reports whether the record was attempted; malformed records
// fail without an attempt.
func (r *Replayer) replayOne(ctx context.Context, rec deadletter.Record, opts ReplayOptions) (ReplayResult, bool) {
	res := ReplayResult{RecordID: rec.ID, EventID: rec.EventID, EventType: rec.EventType}

	url := rec.EndpointURL
	if opts.EndpointOverride != "" {
		url = opts.EndpointOverride
	}
	res.EndpointURL = url
	if url == "" {
		res.Outcome, res.Error = ReplayFailed, "missing endpoint_url"
		return res, false
	}

	trimmed := bytes.TrimSpace(rec.Payload)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		res.Outcome, res.Error = ReplayFailed, "payload must be a JSON object"
		return res, false
	}

	if opts.DryRun {
		res.Outcome = ReplayDryRun
		return res, true
	}

	key := rec.IdempotencyKey
	if key == "" {
		key = IdempotencyKey(rec.EndpointURL, rec.EventID)
	}
	header := deliveryHeader(Envelope{EventID: rec.EventID, EventType: EventType(rec.EventType), Version: Version}, key, r.secrets[url], trimmed)
	header.Set(HeaderReplay, "true")

	status, err := r.sender.post(ctx, url, trimmed, header)
	res.StatusCode = status
	switch {
	case err != nil:
		res.Outcome, res.Error = ReplayFailed, err.Error()
	case successStatus(status):
		res.Outcome = ReplayDelivered
	default:
		res.Outcome, res.Error = ReplayFailed, "non-2xx response"
	}
	return res, true
}
