// Package collector implements the Fan-Out Collector: bounded-concurrency
// per-vessel probing with per-attempt retry (spec.md §4.3).
//
// This mirrors original_source/src/services/data_collector.py's
// asyncio.Semaphore + asyncio.gather(return_exceptions=True) pattern,
// translated into goroutines bounded by a golang.org/x/sync/semaphore
// weighted semaphore, the same bounded-fan-out idiom the teacher
// (wisbric-nightowl) uses for per-tenant isolation in
// pkg/escalation/engine.go (there via a buffered-channel semaphore;
// here via the ecosystem's own semaphore package since collector's
// per-probe work already carries a context worth respecting on
// Acquire).
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/wisbric/fleetwatch/pkg/component"
	"github.com/wisbric/fleetwatch/pkg/probe"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// Prober is the subset of probe.Client this package depends on, so tests
// can substitute a fake.
type Prober interface {
	QueryPings(ctx context.Context, v *vessel.Vessel, role vessel.Role, windowHours int) (*probe.PingData, error)
}

// VesselMetrics is the derived status of all three components on one
// vessel from a single collection pass.
type VesselMetrics struct {
	VesselID   string
	Components map[vessel.Role]component.ComponentStatus
	Timestamp  time.Time
}

// QueryResult records one (vessel, attempt) outcome, mirroring
// VesselQueryResult (spec.md §3).
type QueryResult struct {
	RunID     uuid.UUID
	VesselID  string
	Attempt   int
	Success   bool
	Duration  time.Duration
	Err       error
	Timestamp time.Time
}

// Config bounds the collector's concurrency and retry behavior.
type Config struct {
	Parallelism int // P, default 10
	MaxAttempts int // N, default 3
	BaseBackoff time.Duration
	WindowHours int
}

// DefaultConfig matches spec.md §4.3's defaults.
var DefaultConfig = Config{
	Parallelism: 10,
	MaxAttempts: 3,
	BaseBackoff: time.Second,
	WindowHours: 24,
}

// Sink receives QueryResult records as they are produced. Implementations
// must be safe for concurrent use (spec.md §5).
type Sink interface {
	Record(ctx context.Context, r QueryResult)
}

// Collector runs the fan-out collection pass across a fleet of vessels.
type Collector struct {
	vessels map[string]*vessel.Vessel
	probers map[string]Prober
	cfg     Config
	sink    Sink
	logger  *slog.Logger
}

// New creates a Collector. probers must have one entry per vessel in
// vessels.
func New(vessels map[string]*vessel.Vessel, probers map[string]Prober, cfg Config, sink Sink, logger *slog.Logger) *Collector {
	return &Collector{vessels: vessels, probers: probers, cfg: cfg, sink: sink, logger: logger}
}

// Result is the outcome of a full Run: per-vessel metrics for every vessel
// that eventually succeeded, plus the set that never did.
type Result struct {
	RunID      uuid.UUID
	Metrics    map[string]VesselMetrics
	Failed     []string
	Retries    int
	Cancelled  bool
}

// Run executes the fan-out collection pass described in spec.md §4.3:
// maintain a working set, schedule at most P concurrent tasks per attempt,
// partition outcomes, retry retryable failures, and stop after MaxAttempts
// or an empty working set.
func (c *Collector) Run(ctx context.Context, runID uuid.UUID) Result {
	working := make([]string, 0, len(c.vessels))
	for id := range c.vessels {
		working = append(working, id)
	}

	result := Result{RunID: runID, Metrics: make(map[string]VesselMetrics, len(working))}

	for attempt := 1; attempt <= max1(c.cfg.MaxAttempts); attempt++ {
		if len(working) == 0 {
			break
		}
		if ctx.Err() != nil {
			result.Cancelled = true
			result.Failed = append(result.Failed, working...)
			return result
		}

		outcomes := c.runAttempt(ctx, runID, attempt, working)

		if ctx.Err() != nil {
			result.Cancelled = true
			for _, id := range working {
				if o, ok := outcomes[id]; ok && o.success {
					result.Metrics[id] = o.metrics
					continue
				}
				result.Failed = append(result.Failed, id)
			}
			return result
		}

		var retry []string
		for _, id := range working {
			o := outcomes[id]
			if o.success {
				result.Metrics[id] = o.metrics
				continue
			}
			if o.retryable && attempt < c.cfg.MaxAttempts {
				retry = append(retry, id)
			} else {
				result.Failed = append(result.Failed, id)
			}
		}

		if len(retry) > 0 && attempt < c.cfg.MaxAttempts {
			result.Retries += len(retry)
			if err := c.sleepBackoff(ctx, attempt); err != nil {
				result.Cancelled = true
				result.Failed = append(result.Failed, retry...)
				working = nil
				break
			}
		}
		working = retry
	}

	return result
}

type vesselOutcome struct {
	success   bool
	retryable bool
	metrics   VesselMetrics
}

// runAttempt schedules one task per vessel in working, admitting at most P
// concurrently, and returns each vessel's outcome for this attempt.
func (c *Collector) runAttempt(ctx context.Context, runID uuid.UUID, attempt int, working []string) map[string]vesselOutcome {
	sem := semaphore.NewWeighted(int64(max1(c.cfg.Parallelism)))
	results := make(map[string]vesselOutcome, len(working))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range working {
		id := id
		if err := sem.Acquire(ctx, 1); err != nil {
			// ctx was cancelled before a slot opened up; record no
			// outcome for this vessel, Run's caller checks ctx.Err().
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			outcome := c.probeOne(ctx, runID, attempt, id)

			mu.Lock()
			results[id] = outcome
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// probeOne performs a single attempt for one vessel: probe, roll up,
// record the QueryResult, and classify the outcome.
func (c *Collector) probeOne(ctx context.Context, runID uuid.UUID, attempt int, vesselID string) vesselOutcome {
	start := time.Now()
	v := c.vessels[vesselID]
	p := c.probers[vesselID]

	now := time.Now().UTC()
	components := make(map[vessel.Role]component.ComponentStatus, len(vessel.Roles))

	var firstErr error
	for _, role := range vessel.Roles {
		data, err := p.QueryPings(ctx, v, role, c.cfg.WindowHours)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		components[role] = component.RollUp(data, now)
	}

	duration := time.Since(start)
	qr := QueryResult{
		RunID:     runID,
		VesselID:  vesselID,
		Attempt:   attempt,
		Success:   firstErr == nil,
		Duration:  duration,
		Err:       firstErr,
		Timestamp: now,
	}
	if c.sink != nil {
		c.sink.Record(ctx, qr)
	}

	if firstErr != nil {
		if c.logger != nil {
			c.logger.Warn("vessel probe failed",
				"vessel_id", vesselID, "attempt", attempt, "error", firstErr)
		}
		return vesselOutcome{success: false, retryable: probe.IsRetryable(firstErr)}
	}

	return vesselOutcome{
		success: true,
		metrics: VesselMetrics{VesselID: vesselID, Components: components, Timestamp: now},
	}
}

// sleepBackoff sleeps B*2^(attempt-1) before the next attempt, or returns
// ctx.Err() if cancelled first.
func (c *Collector) sleepBackoff(ctx context.Context, attempt int) error {
	base := c.cfg.BaseBackoff
	if base <= 0 {
		base = DefaultConfig.BaseBackoff
	}
	delay := base << uint(attempt-1)

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
