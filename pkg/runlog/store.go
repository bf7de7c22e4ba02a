package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/internal/db"
)

// PGStore is a Store backed by the Durable Store.
type PGStore struct {
	q *db.Queries
}

// NewPGStore creates a PGStore bound to the given connection or transaction.
func NewPGStore(dbtx db.DBTX) *PGStore {
	return &PGStore{q: db.New(dbtx)}
}

// StartRun opens a new scheduler run row.
func (s *PGStore) StartRun(ctx context.Context, r Run) error {
	err := s.q.StartRun(ctx, db.StartRunParams{
		ID:           r.ID,
		Start:        r.Start,
		TotalVessels: r.TotalVessels,
		Status:       string(r.Status),
	})
	if err != nil {
		return fmt.Errorf("starting scheduler run %s: %w", r.ID, err)
	}
	return nil
}

// RecordVesselResult logs one vessel's query outcome within a run.
func (s *PGStore) RecordVesselResult(ctx context.Context, r VesselResult) error {
	err := s.q.RecordVesselResult(ctx, db.RecordVesselResultParams{
		RunID:         r.RunID,
		VesselID:      r.VesselID,
		AttemptNumber: r.AttemptNumber,
		Success:       r.Success,
		DurationSecs:  r.QueryDuration.Seconds(),
		ErrorMessage:  r.ErrorMessage,
		Timestamp:     r.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("recording vessel result for run %s: %w", r.RunID, err)
	}
	return nil
}

// CompleteRun closes out a scheduler run row.
func (s *PGStore) CompleteRun(ctx context.Context, r Run) error {
	end := time.Now().UTC()
	if r.End != nil {
		end = *r.End
	}
	var durationSecs float64
	if r.Duration != nil {
		durationSecs = r.Duration.Seconds()
	}
	err := s.q.CompleteRun(ctx, db.CompleteRunParams{
		ID:                r.ID,
		End:               end,
		SuccessfulVessels: r.SuccessfulVessels,
		FailedVessels:     r.FailedVessels,
		RetryAttempts:     r.RetryAttempts,
		Status:            string(r.Status),
		DurationSecs:      durationSecs,
		ErrorMessage:      r.ErrorMessage,
	})
	if err != nil {
		return fmt.Errorf("completing scheduler run %s: %w", r.ID, err)
	}
	return nil
}

// RecentRuns returns the most recent scheduler runs, newest first.
func (s *PGStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.q.RecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent scheduler runs: %w", err)
	}
	out := make([]Run, 0, len(rows))
	for _, row := range rows {
		out = append(out, runFromRow(row))
	}
	return out, nil
}

// RunDetails returns a run's summary plus its vessel results and a
// per-vessel retry-count rollup, mirroring original_source's
// get_run_details.
func (s *PGStore) RunDetails(ctx context.Context, runID uuid.UUID) (*Details, error) {
	runRow, err := s.q.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("loading scheduler run %s: %w", runID, err)
	}

	resultRows, err := s.q.VesselResultsForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("loading vessel results for run %s: %w", runID, err)
	}

	results := make([]VesselResult, 0, len(resultRows))
	retries := make(map[string]int)
	for _, r := range resultRows {
		results = append(results, VesselResult{
			RunID:         r.RunID,
			VesselID:      r.VesselID,
			AttemptNumber: r.AttemptNumber,
			Success:       r.Success,
			QueryDuration: time.Duration(r.DurationSecs * float64(time.Second)),
			ErrorMessage:  r.ErrorMessage,
			Timestamp:     r.Timestamp,
		})
		if r.AttemptNumber > 1 && r.AttemptNumber-1 > retries[r.VesselID] {
			retries[r.VesselID] = r.AttemptNumber - 1
		}
	}

	return &Details{
		Summary:       runFromRow(runRow),
		VesselResults: results,
		RetrySummary:  retries,
	}, nil
}

// Statistics is computed client-side from the 1000 most recent runs
// (RecentRuns), counting those that started within the last daysBack days.
func (s *PGStore) Statistics(ctx context.Context, daysBack int) (Statistics, error) {
	runs, err := s.RecentRuns(ctx, 1000)
	if err != nil {
		return Statistics{}, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	stats := Statistics{PeriodDays: daysBack, VesselReliability: map[string]VesselReliability{}}
	var totalDuration, totalSuccess, totalFailed, totalRetries float64
	for _, r := range runs {
		if r.Start.Before(cutoff) {
			continue
		}
		stats.TotalRuns++
		switch r.Status {
		case StatusCompleted:
			stats.SuccessfulRuns++
		case StatusFailed:
			stats.FailedRuns++
		}
		if r.Duration != nil {
			totalDuration += r.Duration.Seconds()
		}
		totalSuccess += float64(r.SuccessfulVessels)
		totalFailed += float64(r.FailedVessels)
		totalRetries += float64(r.RetryAttempts)
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRatePercent = float64(stats.SuccessfulRuns) / float64(stats.TotalRuns) * 100
		stats.AverageDurationMinutes = totalDuration / float64(stats.TotalRuns) / 60
		stats.AverageSuccessVessels = totalSuccess / float64(stats.TotalRuns)
		stats.AverageFailedVessels = totalFailed / float64(stats.TotalRuns)
		stats.AverageRetryAttempts = totalRetries / float64(stats.TotalRuns)
	}
	return stats, nil
}

// DeleteRunsBefore removes scheduler runs older than cutoff.
func (s *PGStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.q.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting scheduler runs before %s: %w", cutoff, err)
	}
	return int(n), nil
}

func runFromRow(r db.SchedulerRun) Run {
	run := Run{
		ID:                r.ID,
		Start:             r.Start,
		TotalVessels:      r.TotalVessels,
		SuccessfulVessels: r.SuccessfulVessels,
		FailedVessels:     r.FailedVessels,
		RetryAttempts:     r.RetryAttempts,
		Status:            Status(r.Status),
		ErrorMessage:      r.ErrorMessage,
	}
	if r.End.Valid {
		end := r.End.Time
		run.End = &end
	}
	if r.DurationSecs.Valid {
		d := time.Duration(r.DurationSecs.Float64 * float64(time.Second))
		run.Duration = &d
	}
	return run
}
