package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// AtomicRoutingStats implements thread-safe routing statistics using atomic operations.
type AtomicRoutingStats struct {
	totalRequests atomic.Int64
	fallbacks     atomic.Int64
	exhausted     atomic.Int64

	// perProvider tracks attempts per provider
	perProvider sync.Map // map[string]*providerCounters

	lastResetTime time.Time
	mu            sync.RWMutex
}

type providerCounters struct {
	attempts        atomic.Int64
	successes       atomic.Int64
	retryableErrors atomic.Int64
	terminalErrors  atomic.Int64
	timeouts        atomic.Int64
}

// NewAtomicRoutingStats creates a new atomic routing statistics tracker.
func NewAtomicRoutingStats() *AtomicRoutingStats {
	return &AtomicRoutingStats{
		lastResetTime: time.Now(),
	}
}

// IncrementTotal increments the total request counter.
func (s *AtomicRoutingStats) IncrementTotal() {
	s.totalRequests.Add(1)
}

// IncrementFallback counts a request answered after at least one failure.
func (s *AtomicRoutingStats) IncrementFallback() {
	s.fallbacks.Add(1)
}

// IncrementExhausted counts a request where every provider failed.
func (s *AtomicRoutingStats) IncrementExhausted() {
	s.exhausted.Add(1)
}

// RecordAttempt counts one provider attempt by outcome.
func (s *AtomicRoutingStats) RecordAttempt(a Attempt) {
	val, _ := s.perProvider.LoadOrStore(a.Provider, &providerCounters{})
	c := val.(*providerCounters)
	c.attempts.Add(1)
	switch a.Outcome {
	case OutcomeSuccess:
		c.successes.Add(1)
	case OutcomeRetryableError:
		c.retryableErrors.Add(1)
	case OutcomeTerminalError:
		c.terminalErrors.Add(1)
	case OutcomeTimeout:
		c.timeouts.Add(1)
	}
}

// Snapshot returns a point-in-time snapshot of the statistics.
func (s *AtomicRoutingStats) Snapshot() *RoutingStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perProvider := make(map[string]ProviderStats)
	s.perProvider.Range(func(key, value any) bool {
		c := value.(*providerCounters)
		perProvider[key.(string)] = ProviderStats{
			Attempts:        c.attempts.Load(),
			Successes:       c.successes.Load(),
			RetryableErrors: c.retryableErrors.Load(),
			TerminalErrors:  c.terminalErrors.Load(),
			Timeouts:        c.timeouts.Load(),
		}
		return true
	})

	return &RoutingStats{
		TotalRequests: s.totalRequests.Load(),
		Fallbacks:     s.fallbacks.Load(),
		Exhausted:     s.exhausted.Load(),
		Providers:     perProvider,
		LastResetTime: s.lastResetTime,
	}
}

// Reset resets all statistics to zero.
func (s *AtomicRoutingStats) Reset() {
	s.totalRequests.Store(0)
	s.fallbacks.Store(0)
	s.exhausted.Store(0)

	s.perProvider.Range(func(key, value any) bool {
		s.perProvider.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
