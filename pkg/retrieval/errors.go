package retrieval

import (
	"errors"
	"fmt"
)

// Reason codes for retrieval denials.
const (
	ReasonConnectorNotAllowed = "connector_not_allowed"
	ReasonConnectorNotFound   = "connector_not_found"
	ReasonConnectorFailed     = "connector_failed"
)

var (
	// ErrUnauthorized is matched by *UnauthorizedError.
	ErrUnauthorized = errors.New("retrieval unauthorized")

	// ErrCitationIntegrity is matched by *CitationIntegrityError.
	ErrCitationIntegrity = errors.New("citation integrity violation")
)

// UnauthorizedError is returned when no requested connector is authorized.
// No connector has been invoked when it is returned.
type UnauthorizedError struct {
	Requested []string
	Allowed   []string
}

// Error implements the error interface.
func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("no requested connector is authorized: requested %v, allowed %v", e.Requested, e.Allowed)
}

// Is implements error matching for errors.Is().
func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// ConnectorNotFoundError is an authorized connector that is not registered.
type ConnectorNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *ConnectorNotFoundError) Error() string {
	return fmt.Sprintf("connector %q is not registered", e.Name)
}

// ConnectorError is a failed connector search. A timeout satisfies
// errors.Is(err, context.DeadlineExceeded).
type ConnectorError struct {
	Connector string
	Err       error
}

// Error implements the error interface.
func (e *ConnectorError) Error() string {
	return fmt.Sprintf("connector %q search failed: %v", e.Connector, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// CitationIntegrityError reports a chunk outside the authorized scope. It
// indicates a connector bug, never a user error.
type CitationIntegrityError struct {
	ConnectorID string
	SourceID    string
	ChunkID     string
	Message     string
}

// Error implements the error interface.
func (e *CitationIntegrityError) Error() string {
	return fmt.Sprintf("citation integrity violation: chunk %q from connector %q source %q: %s",
		e.ChunkID, e.ConnectorID, e.SourceID, e.Message)
}

// Is implements error matching for errors.Is().
func (e *CitationIntegrityError) Is(target error) bool {
	return target == ErrCitationIntegrity
}
