package routing

import (
	"errors"
	"fmt"
	"strings"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrNoEligibleProvider is returned when the chain for a request is empty.
	ErrNoEligibleProvider = errors.New("no eligible provider")

	// ErrAllProvidersFailed is returned when every provider in the chain
	// failed with a retryable error.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrTerminalProviderError is returned when a provider failed with a
	// non-retryable error.
	ErrTerminalProviderError = errors.New("terminal provider error")
)

// NoEligibleProviderError is returned when no configured provider matches the
// request criteria.
type NoEligibleProviderError struct {
	Capability string
	Model      string
}

// Error implements the error interface.
func (e *NoEligibleProviderError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("no eligible provider for capability %q", e.Capability)
	}
	return fmt.Sprintf("no eligible provider for capability %q and model %q", e.Capability, e.Model)
}

// Is implements error matching for errors.Is().
func (e *NoEligibleProviderError) Is(target error) bool {
	return target == ErrNoEligibleProvider
}

// ExhaustedError is returned when every provider in the chain failed with a
// retryable error.
type ExhaustedError struct {
	Chain    []string
	Attempts []Attempt
	LastErr  error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers failed after %d attempts (chain: %s): %v",
		len(e.Attempts), strings.Join(e.Chain, ", "), e.LastErr)
}

// Unwrap returns the last provider error.
func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Is implements error matching for errors.Is().
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// TerminalError is returned when a provider failed with an error the router
// does not retry. No further provider is attempted.
type TerminalError struct {
	Provider string
	Chain    []string
	Attempts []Attempt
	Err      error
}

// Error implements the error interface.
func (e *TerminalError) Error() string {
	return fmt.Sprintf("provider %q failed: %v", e.Provider, e.Err)
}

// Unwrap returns the provider error.
func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is().
func (e *TerminalError) Is(target error) bool {
	return target == ErrTerminalProviderError
}

// AttemptsOf returns the attempts recorded on a routing error, or nil.
func AttemptsOf(err error) []Attempt {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	var terminal *TerminalError
	if errors.As(err, &terminal) {
		return terminal.Attempts
	}
	return nil
}

// ChainOf returns the chain recorded on a routing error, or nil.
func ChainOf(err error) []string {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Chain
	}
	var terminal *TerminalError
	if errors.As(err, &terminal) {
		return terminal.Chain
	}
	return nil
}
