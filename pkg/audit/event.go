package audit

import (
	"context"
	"time"

	"mercator-hq/saturn/pkg/limits/budget"
	"mercator-hq/saturn/pkg/retrieval"
	"mercator-hq/saturn/pkg/routing"
)

// GenesisHash is the prev_hash of the first event in a chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Outcome is the terminal result of a request.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeFailed  Outcome = "failed"
)

// Truncation reasons for streamed responses.
const (
	TruncationBudgetExceeded     = "budget_exceeded"
	TruncationClientDisconnected = "client_disconnected"
	TruncationProviderError      = "provider_error"
	TruncationBudgetUnavailable  = "budget_backend_unavailable"
)

// Event is one tamper-evident audit record. Exactly one event is written
// per request, whatever its outcome. Raw prompt and response content never
// appears; only hashes and counts.
type Event struct {
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`

	RequestID string  `json:"request_id"`
	TenantID  string  `json:"tenant_id"`
	UserID    string  `json:"user_id"`
	Endpoint  string  `json:"endpoint"`
	Outcome   Outcome `json:"outcome"`

	// ReasonCode is empty on success.
	ReasonCode string `json:"reason_code"`

	RequestedModel string `json:"requested_model"`
	SelectedModel  string `json:"selected_model"`
	Provider       string `json:"provider"`

	PolicyDecision    string   `json:"policy_decision"`
	PolicyDecisionID  string   `json:"policy_decision_id"`
	PolicyHash        string   `json:"policy_hash"`
	PolicyMode        string   `json:"policy_mode"`
	TransformsApplied []string `json:"transforms_applied"`

	InputRedactionCount  int      `json:"input_redaction_count"`
	OutputRedactionCount int      `json:"output_redaction_count"`
	RedactionRules       []string `json:"redaction_rules"`

	RetrievalCitations []retrieval.Citation `json:"retrieval_citations"`

	Streaming        bool   `json:"streaming"`
	StreamTruncated  bool   `json:"stream_truncated"`
	TruncationReason string `json:"truncation_reason,omitempty"`

	ProviderAttempts int               `json:"provider_attempts"`
	FallbackChain    []string          `json:"fallback_chain"`
	Attempts         []routing.Attempt `json:"attempts"`

	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
	CostUSD   float64 `json:"cost_usd"`

	Budget *budget.Snapshot `json:"budget,omitempty"`

	WebhookEvents []WebhookDispatch `json:"webhook_events"`

	RequestPayloadHash   string `json:"request_payload_hash"`
	ProviderRequestHash  string `json:"provider_request_hash"`
	ProviderResponseHash string `json:"provider_response_hash"`

	PrevHash    string `json:"prev_hash"`
	PayloadHash string `json:"payload_hash,omitempty"`
}

// Sink persists audit events in append order. Implementations live in the
// storage package.
type Sink interface {
	// Append durably persists one event. A nil return means the event is
	// on stable storage.
	Append(ctx context.Context, ev Event) error

	// Last returns the most recently appended event, or nil when empty.
	Last(ctx context.Context) (*Event, error)

	// ReadAll returns every event in append order.
	ReadAll(ctx context.Context) ([]Event, error)

	// FindByRequestID returns the events for a request in append order.
	FindByRequestID(ctx context.Context, requestID string) ([]Event, error)

	Close() error
}

// WebhookDispatch records one webhook event handed to one endpoint. Status is
// "queued", "dead_lettered" or "dropped".
type WebhookDispatch struct {
	EventType string `json:"event_type"`
	Endpoint  string `json:"endpoint"`
	Status    string `json:"status"`
}
