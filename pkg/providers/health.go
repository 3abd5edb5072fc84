package providers

import (
	"log/slog"
	"sync"
	"time"
)

// unhealthyAfter is the number of consecutive failures that marks a provider
// unhealthy. Health is informational only; the router still attempts every
// provider in its chain.
const unhealthyAfter = 3

type healthTracker struct {
	mu     sync.RWMutex
	health ProviderHealth
}

func newHealthTracker() *healthTracker {
	now := time.Now()
	return &healthTracker{health: ProviderHealth{
		IsHealthy:             true,
		LastCheck:             now,
		LastSuccessfulRequest: now,
	}}
}

func (h *healthTracker) record(success bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.health.LastCheck = time.Now()
	h.health.TotalRequests++

	if success {
		if !h.health.IsHealthy {
			slog.Info("provider recovered", "previous_failures", h.health.ConsecutiveFailures)
		}
		h.health.IsHealthy = true
		h.health.ConsecutiveFailures = 0
		h.health.LastError = nil
		h.health.LastSuccessfulRequest = h.health.LastCheck
		return
	}

	h.health.FailedRequests++
	h.health.ConsecutiveFailures++
	h.health.LastError = err
	if h.health.ConsecutiveFailures >= unhealthyAfter {
		h.health.IsHealthy = false
	}
}

func (h *healthTracker) snapshot() ProviderHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.health
}
