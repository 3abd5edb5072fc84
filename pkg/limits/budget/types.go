package budget

import "time"

// Reservation is tokens held against a tenant's ceiling between Check and
// Commit or Release.
type Reservation struct {
	ID       string
	TenantID string

	// Tokens is the amount currently held. CheckRunning raises it.
	Tokens int64

	Ceiling   int64
	CreatedAt time.Time
}

// Snapshot is a tenant's budget position, recorded in audit events.
type Snapshot struct {
	TenantID       string  `json:"tenant_id"`
	WindowSeconds  int64   `json:"window_seconds"`
	Ceiling        int64   `json:"ceiling"`
	Used           int64   `json:"used"`
	Remaining      int64   `json:"remaining"`
	UtilizationPct float64 `json:"utilization_pct"`

	// AlertTriggered is set on the commit whose tokens carried usage across
	// the alert threshold. Later commits above the threshold leave it unset.
	AlertTriggered bool `json:"alert_triggered,omitempty"`
}

// Usage is a backend's answer to IncrementAndCheck.
type Usage struct {
	// Allowed reports whether the increment was applied.
	Allowed bool

	// Used is the window usage after the increment, or the current usage
	// when it was refused.
	Used int64
}
