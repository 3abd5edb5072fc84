package governance

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a terminal pipeline outcome.
type Kind string

const (
	KindPolicyUnavailable          Kind = "policy_unavailable"
	KindPolicyDenied               Kind = "policy_denied"
	KindBudgetExceeded             Kind = "budget_exceeded"
	KindBudgetBackendUnavailable   Kind = "budget_backend_unavailable"
	KindRetrievalUnauthorized      Kind = "retrieval_unauthorized"
	KindCitationIntegrityViolation Kind = "citation_integrity_violation"
	KindRetrievalFailed            Kind = "retrieval_failed"
	KindProviderExhausted          Kind = "provider_exhausted"
	KindProviderFailed             Kind = "provider_failed"
	KindAuditWriteFailure          Kind = "audit_write_failure"
	KindInvalidRequest             Kind = "invalid_request"
)

// Sentinel errors for errors.Is comparisons against an *Error's kind.
var (
	ErrPolicyUnavailable          = errors.New("policy unavailable")
	ErrPolicyDenied               = errors.New("policy denied")
	ErrBudgetExceeded             = errors.New("budget exceeded")
	ErrBudgetBackendUnavailable   = errors.New("budget backend unavailable")
	ErrRetrievalUnauthorized      = errors.New("retrieval unauthorized")
	ErrCitationIntegrityViolation = errors.New("citation integrity violation")
	ErrRetrievalFailed            = errors.New("retrieval failed")
	ErrProviderExhausted          = errors.New("provider chain exhausted")
	ErrProviderFailed             = errors.New("provider failed")
	ErrAuditWriteFailure          = errors.New("audit write failure")
	ErrInvalidRequest             = errors.New("invalid request")
)

var kindSentinels = map[Kind]error{
	KindPolicyUnavailable:          ErrPolicyUnavailable,
	KindPolicyDenied:               ErrPolicyDenied,
	KindBudgetExceeded:             ErrBudgetExceeded,
	KindBudgetBackendUnavailable:   ErrBudgetBackendUnavailable,
	KindRetrievalUnauthorized:      ErrRetrievalUnauthorized,
	KindCitationIntegrityViolation: ErrCitationIntegrityViolation,
	KindRetrievalFailed:            ErrRetrievalFailed,
	KindProviderExhausted:          ErrProviderExhausted,
	KindProviderFailed:             ErrProviderFailed,
	KindAuditWriteFailure:          ErrAuditWriteFailure,
	KindInvalidRequest:             ErrInvalidRequest,
}

// Error is a terminal pipeline outcome. Reason is a machine-readable code and
// PolicyHash identifies the policy version in effect when the pipeline stopped.
type Error struct {
	Kind       Kind
	Reason     string
	Message    string
	PolicyHash string
	Cause      error
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, reason, policyHash string, cause error) *Error {
	e := &Error{
		Kind:       kind,
		Reason:     reason,
		PolicyHash: policyHash,
		Cause:      cause,
	}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinel as well as another *Error of the same kind.
func (e *Error) Is(target error) bool {
	if s, ok := kindSentinels[e.Kind]; ok && s == target {
		return true
	}
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind && (other.Reason == "" || other.Reason == e.Reason)
	}
	return false
}

// HTTPStatus maps the error kind to the status code returned at ingress.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindPolicyDenied, KindRetrievalUnauthorized:
		return http.StatusForbidden
	case KindPolicyUnavailable, KindBudgetBackendUnavailable, KindRetrievalFailed:
		return http.StatusServiceUnavailable
	case KindBudgetExceeded:
		return http.StatusTooManyRequests
	case KindProviderExhausted, KindProviderFailed:
		return http.StatusBadGateway
	case KindInvalidRequest:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Category groups kinds for the error envelope's "type" field.
func (e *Error) Category() string {
	switch e.Kind {
	case KindPolicyUnavailable, KindPolicyDenied, KindBudgetExceeded,
		KindBudgetBackendUnavailable, KindRetrievalUnauthorized:
		return "policy"
	case KindProviderExhausted, KindProviderFailed:
		return "provider"
	case KindInvalidRequest:
		return "validation"
	default:
		return "internal"
	}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
