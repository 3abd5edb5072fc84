package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrChainBroken matches every *ChainError.
	ErrChainBroken = errors.New("audit chain broken")

	// ErrWriterClosed is returned by Append after Close.
	ErrWriterClosed = errors.New("audit writer closed")
)

// StorageError represents an error from an audit sink.
type StorageError struct {
	Backend   string // Sink type ("file", "sqlite", "memory")
	Operation string // Operation that failed ("append", "read", "last", ...)
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// Chain break reasons.
const (
	ReasonPrevHashMismatch    = "prev_hash_mismatch"
	ReasonPayloadHashMismatch = "payload_hash_mismatch"
	ReasonUnhashable          = "unhashable_event"
)

// ChainError reports the first event at which a chain fails verification.
type ChainError struct {
	Index   int
	EventID string
	Reason  string
	Want    string
	Got     string
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at index %d (event %s): %s: want %s, got %s",
		e.Index, e.EventID, e.Reason, e.Want, e.Got)
}

// Is reports whether target is ErrChainBroken.
func (e *ChainError) Is(target error) bool {
	return target == ErrChainBroken
}
