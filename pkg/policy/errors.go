package policy

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDecision is wrapped by every contract violation in a
	// decision service response.
	ErrMalformedDecision = errors.New("malformed policy decision")

	// ErrUnsupportedTransform is matched by *TransformError.
	ErrUnsupportedTransform = errors.New("unsupported transform")
)

// ServiceError is a non-2xx answer from the decision service.
type ServiceError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("decision service returned status %d: %s", e.StatusCode, e.Body)
}

// ContractError is a decision response that failed schema validation or
// decoding.
type ContractError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("policy decision contract violation: %s: %v", e.Message, e.Cause)
	}
	return "policy decision contract violation: " + e.Message
}

// Unwrap returns the underlying cause.
func (e *ContractError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is().
func (e *ContractError) Is(target error) bool {
	return target == ErrMalformedDecision
}

// TransformError is a transform the pipeline cannot apply. Unknown
// transforms are never skipped.
type TransformError struct {
	Index     int
	Field     string
	Operation string
	Message   string
}

// Error implements the error interface.
func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %d (%s on %q): %s", e.Index, e.Operation, e.Field, e.Message)
}

// Is implements error matching for errors.Is().
func (e *TransformError) Is(target error) bool {
	return target == ErrUnsupportedTransform
}

// ConstraintError is a request that violates a decision constraint.
type ConstraintError struct {
	Reason  string
	Message string
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return e.Reason + ": " + e.Message
}
