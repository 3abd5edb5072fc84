package budget

import (
	"errors"
	"fmt"
)

// Reason codes for budget denials.
const (
	ReasonBudgetExceeded     = "budget_exceeded"
	ReasonBackendUnavailable = "budget_backend_unavailable"
)

var (
	// ErrBudgetExceeded is matched by *ExceededError.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrBackendUnavailable is matched by *BackendUnavailableError.
	ErrBackendUnavailable = errors.New("budget backend unavailable")
)

// ExceededError is a request that would take a tenant past its ceiling.
type ExceededError struct {
	TenantID  string
	Requested int64
	Used      int64
	Ceiling   int64

	// MidStream is set when the ceiling was reached during a stream rather
	// than before the request.
	MidStream bool
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	when := "pre-request"
	if e.MidStream {
		when = "mid-stream"
	}
	return fmt.Sprintf("budget exceeded for tenant %q (%s): requested %d, used %d of %d",
		e.TenantID, when, e.Requested, e.Used, e.Ceiling)
}

// Is implements error matching for errors.Is().
func (e *ExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

// BackendUnavailableError is a backend fault. The tracker denies on it.
type BackendUnavailableError struct {
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("budget backend %s unavailable during %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is().
func (e *BackendUnavailableError) Is(target error) bool {
	return target == ErrBackendUnavailable
}
