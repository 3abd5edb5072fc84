// Package budget enforces per-tenant token ceilings over a sliding window.
//
// # Reservations
//
// Check reserves the estimated tokens of a request before it reaches a
// provider. Streaming responses extend the reservation through
// CheckRunning every few chunks; crossing the ceiling mid-stream returns an
// ExceededError with MidStream set so the caller can end the stream
// gracefully. Commit settles the reservation at the actual usage and
// Release drops it.
//
// # Backends
//
// MemoryBackend serves a single process. RedisBackend shares ceilings
// across replicas using Lua scripts so the check and the increment are one
// atomic step. Backend faults never grant budget: the tracker returns a
// BackendUnavailableError and the request is denied.
//
// Example:
//
//	tracker := budget.NewTracker(budget.NewMemoryBackend(), budget.Options{
//	    DefaultCeiling: 100000,
//	    Window:         time.Hour,
//	})
//	res, _, err := tracker.Check(ctx, "acme", 512)
//	if err != nil {
//	    return err
//	}
//	// ... call the provider ...
//	snap, err := tracker.Commit(ctx, res, usage.TotalTokens)
package budget
