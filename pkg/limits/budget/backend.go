package budget

import (
	"context"
	"time"
)

// Backend stores per-tenant usage entries in a sliding window. Entries
// older than the window no longer count. Implementations must make
// IncrementAndCheck atomic so concurrent callers cannot jointly exceed the
// ceiling.
type Backend interface {
	// IncrementAndCheck adds tokens to the entry, creating it at now when
	// missing, only if window usage plus tokens stays within ceiling.
	IncrementAndCheck(ctx context.Context, tenantID, entryID string, tokens, ceiling int64, window time.Duration, now time.Time) (Usage, error)

	// Settle sets the entry to tokens without a ceiling check. Zero or
	// less removes the entry. A missing entry is left missing.
	Settle(ctx context.Context, tenantID, entryID string, tokens int64, window time.Duration, now time.Time) error

	// Usage returns the tenant's window usage.
	Usage(ctx context.Context, tenantID string, window time.Duration, now time.Time) (int64, error)

	// Name identifies the backend in errors and logs.
	Name() string

	Close() error
}
