package budget

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/config"
)

// Options configure a Tracker.
type Options struct {
	// DefaultCeiling applies to tenants without an override.
	DefaultCeiling int64

	// TenantCeilings overrides the ceiling per tenant.
	TenantCeilings map[string]int64

	// Window is the sliding window length.
	Window time.Duration

	// AlertThreshold is the utilization fraction that sets
	// Snapshot.AlertTriggered on the commit that crosses it. Zero disables
	// alerts.
	AlertThreshold float64

	// Metrics is optional.
	Metrics *Metrics
}

// Tracker enforces per-tenant token ceilings over a sliding window.
//
// Check reserves the estimated tokens before the provider call, so two
// concurrent requests cannot both pass against the same headroom. The
// reservation is then settled by Commit with the actual usage, or dropped
// by Release when the call produced nothing.
//
// Every backend error is a deny.
type Tracker struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// NewTracker creates a tracker over a backend.
func NewTracker(backend Backend, opts Options) *Tracker {
	if opts.Window <= 0 {
		opts.Window = config.DefaultBudgetWindow
	}
	if opts.DefaultCeiling <= 0 {
		opts.DefaultCeiling = config.DefaultBudgetCeiling
	}
	return &Tracker{
		backend: backend,
		opts:    opts,
		logger:  slog.Default().With("component", "limits.budget", "backend", backend.Name()),
		now:     time.Now,
	}
}

// NewTrackerFromConfig creates a tracker and its backend from configuration.
func NewTrackerFromConfig(cfg config.BudgetConfig, metrics *Metrics) (*Tracker, error) {
	var backend Backend
	switch cfg.Backend {
	case "", "memory":
		backend = NewMemoryBackend()
	case "redis":
		backend = NewRedisBackendFromConfig(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported budget backend %q", cfg.Backend)
	}
	return NewTracker(backend, Options{
		DefaultCeiling: cfg.DefaultCeiling,
		TenantCeilings: cfg.TenantCeilings,
		Window:         cfg.Window,
		AlertThreshold: cfg.AlertThreshold,
		Metrics:        metrics,
	}), nil
}

// Ceiling returns the tenant's ceiling.
func (t *Tracker) Ceiling(tenantID string) int64 {
	if c, ok := t.opts.TenantCeilings[tenantID]; ok {
		return c
	}
	return t.opts.DefaultCeiling
}

// Window returns the sliding window length.
func (t *Tracker) Window() time.Duration {
	return t.opts.Window
}

// Check reserves requested tokens for the tenant. A deny returns
// *ExceededError, a backend fault *BackendUnavailableError; neither
// reserves anything.
func (t *Tracker) Check(ctx context.Context, tenantID string, requested int64) (*Reservation, Snapshot, error) {
	ceiling := t.Ceiling(tenantID)
	res := &Reservation{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Ceiling:   ceiling,
		CreatedAt: t.now(),
	}

	usage, err := t.increment(ctx, "check", tenantID, res.ID, requested, ceiling, res.CreatedAt)
	if err != nil {
		t.opts.Metrics.recordCheck("pre_request", ResultUnavailable)
		return nil, Snapshot{}, err
	}

	snap := t.snapshot(tenantID, ceiling, usage.Used)
	if !usage.Allowed {
		t.opts.Metrics.recordCheck("pre_request", ResultDenied)
		t.logger.Info("budget exceeded",
			"tenant_id", tenantID,
			"requested", requested,
			"used", usage.Used,
			"ceiling", ceiling,
		)
		return nil, snap, &ExceededError{TenantID: tenantID, Requested: requested, Used: usage.Used, Ceiling: ceiling}
	}

	res.Tokens = requested
	t.opts.Metrics.recordCheck("pre_request", ResultAllowed)
	t.opts.Metrics.recordSnapshot(snap)
	return res, snap, nil
}

// CheckRunning extends the reservation when tokensSoFar has outgrown it.
// The extension is atomic with the ceiling check; on deny the reservation
// keeps what it had and the error has MidStream set.
func (t *Tracker) CheckRunning(ctx context.Context, res *Reservation, tokensSoFar int64) (Snapshot, error) {
	delta := tokensSoFar - res.Tokens
	if delta <= 0 {
		used, err := t.usage(ctx, res.TenantID)
		if err != nil {
			t.opts.Metrics.recordCheck("mid_stream", ResultUnavailable)
			return Snapshot{}, err
		}
		t.opts.Metrics.recordCheck("mid_stream", ResultAllowed)
		return t.snapshot(res.TenantID, res.Ceiling, used), nil
	}

	usage, err := t.increment(ctx, "check_running", res.TenantID, res.ID, delta, res.Ceiling, t.now())
	if err != nil {
		t.opts.Metrics.recordCheck("mid_stream", ResultUnavailable)
		return Snapshot{}, err
	}
	snap := t.snapshot(res.TenantID, res.Ceiling, usage.Used)
	if !usage.Allowed {
		t.opts.Metrics.recordCheck("mid_stream", ResultDenied)
		return snap, &ExceededError{
			TenantID:  res.TenantID,
			Requested: tokensSoFar,
			Used:      usage.Used,
			Ceiling:   res.Ceiling,
			MidStream: true,
		}
	}
	res.Tokens = tokensSoFar
	t.opts.Metrics.recordCheck("mid_stream", ResultAllowed)
	return snap, nil
}

// Commit settles the reservation at the actual token count and returns the
// resulting snapshot.
func (t *Tracker) Commit(ctx context.Context, res *Reservation, actual int64) (Snapshot, error) {
	start := time.Now()
	err := t.backend.Settle(ctx, res.TenantID, res.ID, actual, t.opts.Window, t.now())
	t.opts.Metrics.recordDuration(t.backend.Name(), "commit", time.Since(start).Seconds())
	if err != nil {
		return Snapshot{}, &BackendUnavailableError{Backend: t.backend.Name(), Op: "commit", Err: err}
	}
	res.Tokens = max(actual, 0)
	t.opts.Metrics.recordCommit(res.TenantID, actual)

	used, err := t.usage(ctx, res.TenantID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := t.snapshot(res.TenantID, res.Ceiling, used)
	snap.AlertTriggered = t.crossed(res.Ceiling, used-res.Tokens, used)
	t.opts.Metrics.recordSnapshot(snap)
	return snap, nil
}

// Release drops the reservation.
func (t *Tracker) Release(ctx context.Context, res *Reservation) error {
	if res == nil {
		return nil
	}
	if err := t.backend.Settle(ctx, res.TenantID, res.ID, 0, t.opts.Window, t.now()); err != nil {
		return &BackendUnavailableError{Backend: t.backend.Name(), Op: "release", Err: err}
	}
	res.Tokens = 0
	return nil
}

// Summary returns the tenant's current position.
func (t *Tracker) Summary(ctx context.Context, tenantID string) (Snapshot, error) {
	used, err := t.usage(ctx, tenantID)
	if err != nil {
		return Snapshot{}, err
	}
	return t.snapshot(tenantID, t.Ceiling(tenantID), used), nil
}

// Close closes the backend.
func (t *Tracker) Close() error {
	return t.backend.Close()
}

func (t *Tracker) increment(ctx context.Context, op, tenantID, entryID string, tokens, ceiling int64, now time.Time) (Usage, error) {
	start := time.Now()
	usage, err := t.backend.IncrementAndCheck(ctx, tenantID, entryID, tokens, ceiling, t.opts.Window, now)
	t.opts.Metrics.recordDuration(t.backend.Name(), op, time.Since(start).Seconds())
	if err != nil {
		t.logger.Error("budget backend call failed, denying",
			"tenant_id", tenantID,
			"operation", op,
			"error", err,
		)
		return Usage{}, &BackendUnavailableError{Backend: t.backend.Name(), Op: op, Err: err}
	}
	return usage, nil
}

func (t *Tracker) usage(ctx context.Context, tenantID string) (int64, error) {
	used, err := t.backend.Usage(ctx, tenantID, t.opts.Window, t.now())
	if err != nil {
		return 0, &BackendUnavailableError{Backend: t.backend.Name(), Op: "usage", Err: err}
	}
	return used, nil
}

func (t *Tracker) snapshot(tenantID string, ceiling, used int64) Snapshot {
	s := Snapshot{
		TenantID:      tenantID,
		WindowSeconds: int64(t.opts.Window / time.Second),
		Ceiling:       ceiling,
		Used:          used,
		Remaining:     max(ceiling-used, 0),
	}
	if ceiling > 0 {
		s.UtilizationPct = math.Round(float64(used)/float64(ceiling)*10000) / 100
	}
	return s
}

// crossed reports whether moving from before to after reached the alert
// threshold for the first time.
func (t *Tracker) crossed(ceiling, before, after int64) bool {
	if t.opts.AlertThreshold <= 0 || ceiling <= 0 {
		return false
	}
	limit := t.opts.AlertThreshold * float64(ceiling)
	return float64(before) < limit && float64(after) >= limit
}
