package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Record is a delivery that exhausted its retries.
type Record struct {
	ID             string          `json:"id"`
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	EndpointURL    string          `json:"endpoint_url"`
	Payload        json.RawMessage `json:"payload"`
	Attempts       int             `json:"attempts"`
	LastError      string          `json:"last_error,omitempty"`
	StatusCode     int             `json:"status_code,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	FirstSeenAt    time.Time       `json:"first_seen_at"`
}

// Filter selects records for List. Zero values match everything.
type Filter struct {
	// EventTypes restricts results to these types.
	EventTypes []string

	// Limit caps the number of records. Zero means no limit.
	Limit int
}

func (f Filter) matches(r Record) bool {
	return len(f.EventTypes) == 0 || slices.Contains(f.EventTypes, r.EventType)
}

// Store is a durable dead-letter store. List applies the retention rule
// before reading, so an expired record is never replayed.
type Store interface {
	// Append persists a record.
	Append(ctx context.Context, r Record) error

	// List returns records oldest first.
	List(ctx context.Context, f Filter) ([]Record, error)

	// Prune removes records first seen before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)

	// Delete removes records by id.
	Delete(ctx context.Context, ids []string) (int, error)

	Close() error
}

// NewStore creates the store for backend ("sqlite" or "jsonl"). A
// positive retention prunes on every List.
func NewStore(backend, path string, retention time.Duration) (Store, error) {
	switch backend {
	case "sqlite":
		return NewSQLiteStore(path, retention)
	case "", "jsonl":
		return NewJSONLStore(path, retention)
	default:
		return nil, fmt.Errorf("unsupported dead-letter backend %q", backend)
	}
}

// RetentionDays converts a day count into a retention duration.
func RetentionDays(days int) time.Duration {
	if days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}
