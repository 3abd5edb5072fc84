// Package deadletter stores webhook deliveries that exhausted their
// retries so they can be replayed later.
//
// Two backends satisfy Store: SQLiteStore (modernc.org/sqlite, no cgo) and
// JSONLStore. Both apply the same retention rule: with a positive
// retention, List first prunes records older than the cutoff, so replay
// never resurrects an expired event.
package deadletter
