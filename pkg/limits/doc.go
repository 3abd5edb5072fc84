// Package limits groups usage limits applied to governed requests.
//
// The budget sub-package tracks per-tenant token usage over a sliding
// window and reserves estimated tokens before a provider call. Backends are
// in-memory for a single instance and redis for shared counters; a backend
// that cannot answer fails the request closed.
//
//	tracker, err := budget.NewTrackerFromConfig(cfg.Budget, collector.Budget())
//	res, snap, err := tracker.Check(ctx, tenant, estimate)
//	...
//	snap, err = tracker.Commit(ctx, res, actual)
package limits
