// Package runlog implements the Run Logger: durable history of Daily
// Scheduler executions and the per-vessel query results within each run
// (spec.md §4.7, §3's SchedulerRun/VesselQueryResult types), grounded on
// original_source's SchedulerRunLogger.
//
// Writes are buffered and flushed asynchronously off the scheduler's hot
// path, following the teacher's internal/audit.Writer idiom rather than
// writing synchronously inline with the Fan-Out Collector.
package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status mirrors original_source's scheduler run status column.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run mirrors SchedulerRunLog (spec.md §3).
type Run struct {
	ID                uuid.UUID
	Start             time.Time
	End               *time.Time
	TotalVessels      int
	SuccessfulVessels int
	FailedVessels     int
	RetryAttempts     int
	Status            Status
	Duration          *time.Duration
	ErrorMessage      string
}

// VesselResult mirrors VesselQueryResult: the outcome of querying a single
// vessel within a run, including retry attempt number.
type VesselResult struct {
	RunID           uuid.UUID
	VesselID        string
	AttemptNumber   int
	Success         bool
	QueryDuration   time.Duration
	ErrorMessage    string
	Timestamp       time.Time
}

// Details mirrors SchedulerRunDetails: a run summary plus its vessel
// results and a per-vessel retry-count rollup.
type Details struct {
	Summary       Run
	VesselResults []VesselResult
	RetrySummary  map[string]int
}

// VesselReliability mirrors original_source's get_run_statistics
// vessel_reliability entries.
type VesselReliability struct {
	SuccessRatePercent  float64
	TotalAttempts       int
	SuccessfulAttempts  int
}

// Statistics mirrors original_source's get_run_statistics return shape
// over a trailing window of days.
type Statistics struct {
	PeriodDays              int
	TotalRuns               int
	SuccessfulRuns          int
	FailedRuns              int
	SuccessRatePercent      float64
	AverageDurationMinutes  float64
	AverageSuccessVessels   float64
	AverageFailedVessels    float64
	AverageRetryAttempts    float64
	VesselReliability       map[string]VesselReliability
}

// Store is the persistence boundary for run history.
type Store interface {
	StartRun(ctx context.Context, r Run) error
	RecordVesselResult(ctx context.Context, r VesselResult) error
	CompleteRun(ctx context.Context, r Run) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	RunDetails(ctx context.Context, runID uuid.UUID) (*Details, error)
	Statistics(ctx context.Context, daysBack int) (Statistics, error)
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// entry tags a queued write with its kind, since runs, vessel results, and
// completions all flow through a single buffered channel.
type entry struct {
	run    *Run
	result *VesselResult
	isDone bool // true: run is a completion update, not a start
}

// Logger is an async, buffered writer over Store, mirroring the teacher's
// internal/audit.Writer so scheduler runs never block on log persistence.
type Logger struct {
	store   Store
	logger  *slog.Logger
	entries chan entry
	wg      sync.WaitGroup
}

// NewLogger creates a Logger. Call Start to begin flushing.
func NewLogger(store Store, logger *slog.Logger) *Logger {
	return &Logger{store: store, logger: logger, entries: make(chan entry, bufferSize)}
}

// Start begins the background flush goroutine and returns immediately. The
// goroutine exits once ctx is cancelled or Close is called, after flushing
// the entries already queued.
func (l *Logger) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (l *Logger) Close() {
	close(l.entries)
	l.wg.Wait()
}

// LogRunStart enqueues the opening of a SchedulerRun.
func (l *Logger) LogRunStart(r Run) {
	l.enqueue(entry{run: &r})
}

// LogVesselResult enqueues a single vessel's query outcome within a run.
func (l *Logger) LogVesselResult(r VesselResult) {
	l.enqueue(entry{result: &r})
}

// LogRunCompletion enqueues the closing update of a SchedulerRun.
func (l *Logger) LogRunCompletion(r Run) {
	l.enqueue(entry{run: &r, isDone: true})
}

func (l *Logger) enqueue(e entry) {
	select {
	case l.entries <- e:
	default:
		l.logger.Warn("run log buffer full, dropping entry")
	}
}

func (l *Logger) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		l.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-l.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-l.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (l *Logger) flush(entries []entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		var err error
		switch {
		case e.result != nil:
			err = l.store.RecordVesselResult(ctx, *e.result)
		case e.run != nil && e.isDone:
			err = l.store.CompleteRun(ctx, *e.run)
		case e.run != nil:
			err = l.store.StartRun(ctx, *e.run)
		}
		if err != nil {
			l.logger.Error("writing scheduler run log entry", "error", err)
		}
	}
}

// Retention applies spec.md §4.8's default retention to scheduler run
// history: runs older than the window are deleted in their entirety,
// cascading to their vessel results.
func Retention(ctx context.Context, store Store, daysToKeep int) (int, error) {
	if daysToKeep <= 0 {
		daysToKeep = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)
	n, err := store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up old scheduler runs: %w", err)
	}
	return n, nil
}
