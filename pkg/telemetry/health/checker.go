package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// CheckFunc reports whether a dependency is usable. Nil means healthy.
type CheckFunc func(ctx context.Context) error

// Statuses reported by checks and the overall report.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   string  `json:"status"`
	Message  string  `json:"message,omitempty"`
	Duration float64 `json:"duration_ms"`
}

// Report is the body served at /health.
type Report struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	GoVersion string                 `json:"go_version"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker runs the registered dependency checks. Checks run concurrently,
// each bounded by the check timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	version string
}

// New creates a checker. A zero timeout defaults to 2 seconds per check.
func New(version string, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
		version: version,
	}
}

// Register adds or replaces a named check.
//
//	checker.Register("audit", func(ctx context.Context) error {
//	    _, err := sink.Last(ctx)
//	    return err
//	})
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every registered check. The report is degraded when any check
// fails.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	report := Report{
		Status:    StatusOK,
		Version:   c.version,
		GoVersion: runtime.Version(),
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now().UTC(),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			result := c.run(ctx, fn)
			mu.Lock()
			report.Checks[name] = result
			if result.Status != StatusOK {
				report.Status = StatusDegraded
			}
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()
	return report
}

func (c *Checker) run(ctx context.Context, fn CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() { errCh <- fn(ctx) }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}

	result := CheckResult{Status: StatusOK, Duration: float64(time.Since(start).Microseconds()) / 1000}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

// Handler serves the report as JSON: 200 when healthy, 503 when degraded.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Check(r.Context())

		status := http.StatusOK
		if report.Status != StatusOK {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(report)
		}
	}
}
