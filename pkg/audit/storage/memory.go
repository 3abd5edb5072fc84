package storage

import (
	"context"
	"slices"
	"sync"

	"mercator-hq/saturn/pkg/audit"
)

// MemorySink keeps events in memory. It is intended for tests and local
// runs; nothing survives a restart.
type MemorySink struct {
	mu     sync.RWMutex
	events []audit.Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append stores a copy of ev.
func (s *MemorySink) Append(ctx context.Context, ev audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Last returns the last event, or nil.
func (s *MemorySink) Last(ctx context.Context) (*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return nil, nil
	}
	ev := s.events[len(s.events)-1]
	return &ev, nil
}

// ReadAll returns a copy of every event.
func (s *MemorySink) ReadAll(ctx context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events), nil
}

// FindByRequestID returns a request's events.
func (s *MemorySink) FindByRequestID(ctx context.Context, requestID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, ev := range s.events {
		if ev.RequestID == requestID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemorySink) Close() error {
	return nil
}
