package providers

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// StatusCoder is implemented by errors that carry the upstream status the
// router classifies for fallback.
type StatusCoder interface {
	Status() int
}

// StatusCode returns the status associated with err, or 0 when err carries
// none. Errors without a status are never retried by the router.
func StatusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.Status()
	}
	return 0
}

// ProviderError represents a non-2xx provider response.
type ProviderError struct {
	// Provider is the name of the provider that returned the error
	Provider string

	// StatusCode is the HTTP status code
	StatusCode int

	// Message is the (truncated) response body
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Status returns the upstream HTTP status.
func (e *ProviderError) Status() int {
	return e.StatusCode
}

// RateLimitError represents an HTTP 429 from the provider.
type RateLimitError struct {
	Provider string

	// RetryAfter is the duration the provider asked callers to wait (if provided)
	RetryAfter time.Duration

	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limit exceeded (retry after %s): %s",
			e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %q rate limit exceeded: %s", e.Provider, e.Message)
}

// Status always returns 429.
func (e *RateLimitError) Status() int {
	return http.StatusTooManyRequests
}

// TimeoutError represents a call that exceeded its timeout. It is treated as
// an upstream 503.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
	Cause    error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Status returns 503.
func (e *TimeoutError) Status() int {
	return http.StatusServiceUnavailable
}

// ConnectionError represents a transport failure before any response was
// received. It is treated as an upstream 502.
type ConnectionError struct {
	Provider string
	Cause    error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("provider %q connection failed: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Status returns 502.
func (e *ConnectionError) Status() int {
	return http.StatusBadGateway
}

// ParseError represents a malformed provider response. A provider that
// answers with garbage is treated as a bad gateway.
type ParseError struct {
	Provider    string
	RawResponse string
	Cause       error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Status returns 502.
func (e *ParseError) Status() int {
	return http.StatusBadGateway
}

// ValidationError represents a request rejected before it was sent.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// StreamError represents a failure while reading an open stream.
type StreamError struct {
	Provider string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %q stream error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q stream error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Status returns the status of the cause, or 502 when the cause carries none.
func (e *StreamError) Status() int {
	if code := StatusCode(e.Cause); code != 0 {
		return code
	}
	return http.StatusBadGateway
}

// ConfigError represents an invalid provider configuration.
type ConfigError struct {
	Provider string
	Field    string
	Message  string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s",
		e.Provider, e.Field, e.Message)
}
