package webhook

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// EventType identifies what happened.
type EventType string

const (
	EventPolicyDenied     EventType = "policy_denied"
	EventBudgetExceeded   EventType = "budget_exceeded"
	EventBudgetWarning    EventType = "budget_warning"
	EventProviderFallback EventType = "provider_fallback"
	EventProviderError    EventType = "provider_error"
	EventRedactionHit     EventType = "redaction_hit"
	EventStreamTruncated  EventType = "stream_truncated"
	EventAuditFailure     EventType = "audit_failure"
)

// AllEventTypes lists every event type the dispatcher emits.
var AllEventTypes = []EventType{
	EventPolicyDenied, EventBudgetExceeded, EventBudgetWarning, EventProviderFallback,
	EventProviderError, EventRedactionHit, EventStreamTruncated, EventAuditFailure,
}

// ParseEventType validates an event type name.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !slices.Contains(AllEventTypes, t) {
		return "", fmt.Errorf("unknown webhook event type %q", s)
	}
	return t, nil
}

// Endpoint is a webhook receiver.
type Endpoint struct {
	URL string

	// Secret keys the HMAC-SHA256 body signature. Empty disables signing.
	Secret string

	// EventTypes filters deliveries. Empty subscribes to every type.
	EventTypes []EventType

	Enabled bool
}

// Subscribes reports whether the endpoint receives events of type t.
func (e Endpoint) Subscribes(t EventType) bool {
	if !e.Enabled {
		return false
	}
	return len(e.EventTypes) == 0 || slices.Contains(e.EventTypes, t)
}

// Envelope is the JSON body POSTed to receivers.
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType EventType       `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Payload   json.RawMessage `json:"payload"`
}

// Delivery statuses reported by Dispatch.
const (
	StatusQueued       = "queued"
	StatusDeadLettered = "dead_lettered"
	StatusDropped      = "dropped"
)

// Outcome is the immediate result of handing one event to one endpoint.
type Outcome struct {
	EventID     string    `json:"event_id"`
	EventType   EventType `json:"event_type"`
	EndpointURL string    `json:"endpoint_url"`
	Status      string    `json:"status"`
}

// Delivery results reported to a Recorder.
const (
	ResultDelivered    = "delivered"
	ResultRetried      = "retried"
	ResultDeadLettered = "dead_lettered"
	ResultDropped      = "dropped"
)

// Recorder receives delivery metrics.
type Recorder interface {
	RecordWebhookDelivery(eventType, result string)
}

type noopRecorder struct{}

func (noopRecorder) RecordWebhookDelivery(string, string) {}
