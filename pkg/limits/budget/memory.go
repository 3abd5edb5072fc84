package budget

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	at     time.Time
	tokens int64
}

// MemoryBackend keeps usage in process. Entries are pruned lazily on access.
type MemoryBackend struct {
	mu      sync.Mutex
	tenants map[string]map[string]*memoryEntry
}

// NewMemoryBackend creates an in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tenants: make(map[string]map[string]*memoryEntry)}
}

// Name implements Backend.
func (b *MemoryBackend) Name() string {
	return "memory"
}

// IncrementAndCheck implements Backend.
func (b *MemoryBackend) IncrementAndCheck(ctx context.Context, tenantID, entryID string, tokens, ceiling int64, window time.Duration, now time.Time) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.pruneLocked(tenantID, window, now)
	used := sum(entries)
	if used+tokens > ceiling {
		return Usage{Allowed: false, Used: used}, nil
	}

	if entries == nil {
		entries = make(map[string]*memoryEntry)
		b.tenants[tenantID] = entries
	}
	e, ok := entries[entryID]
	if !ok {
		e = &memoryEntry{at: now}
		entries[entryID] = e
	}
	e.tokens += tokens
	return Usage{Allowed: true, Used: used + tokens}, nil
}

// Settle implements Backend.
func (b *MemoryBackend) Settle(ctx context.Context, tenantID, entryID string, tokens int64, window time.Duration, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.pruneLocked(tenantID, window, now)
	e, ok := entries[entryID]
	if !ok {
		return nil
	}
	if tokens <= 0 {
		delete(entries, entryID)
		return nil
	}
	e.tokens = tokens
	return nil
}

// Usage implements Backend.
func (b *MemoryBackend) Usage(ctx context.Context, tenantID string, window time.Duration, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return sum(b.pruneLocked(tenantID, window, now)), nil
}

// Close implements Backend.
func (b *MemoryBackend) Close() error {
	return nil
}

// pruneLocked drops entries at or before now-window. Caller must hold the lock.
func (b *MemoryBackend) pruneLocked(tenantID string, window time.Duration, now time.Time) map[string]*memoryEntry {
	entries, ok := b.tenants[tenantID]
	if !ok {
		return nil
	}
	cutoff := now.Add(-window)
	for id, e := range entries {
		if !e.at.After(cutoff) {
			delete(entries, id)
		}
	}
	if len(entries) == 0 {
		delete(b.tenants, tenantID)
		return nil
	}
	return entries
}

func sum(entries map[string]*memoryEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.tokens
	}
	return total
}
