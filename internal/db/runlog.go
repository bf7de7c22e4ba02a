package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// SchedulerRun mirrors a row of the scheduler_runs table.
type SchedulerRun struct {
	ID                uuid.UUID
	Start             time.Time
	End               pgtype.Timestamptz
	TotalVessels      int
	SuccessfulVessels int
	FailedVessels     int
	RetryAttempts     int
	Status            string
	DurationSecs      pgtype.Float8
	ErrorMessage      string
}

// StartRunParams binds StartRun's insert.
type StartRunParams struct {
	ID           uuid.UUID
	Start        time.Time
	TotalVessels int
	Status       string
}

// StartRun opens a new scheduler run row.
func (q *Queries) StartRun(ctx context.Context, p StartRunParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO scheduler_runs (id, start_time, total_vessels, status)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.Start, p.TotalVessels, p.Status)
	return err
}

// CompleteRunParams binds CompleteRun's update.
type CompleteRunParams struct {
	ID                uuid.UUID
	End               time.Time
	SuccessfulVessels int
	FailedVessels     int
	RetryAttempts     int
	Status            string
	DurationSecs      float64
	ErrorMessage      string
}

// CompleteRun closes out a scheduler run row.
func (q *Queries) CompleteRun(ctx context.Context, p CompleteRunParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE scheduler_runs SET end_time = $2, successful_vessels = $3, failed_vessels = $4,
			retry_attempts = $5, status = $6, duration_seconds = $7, error_message = $8
		WHERE id = $1
	`, p.ID, p.End, p.SuccessfulVessels, p.FailedVessels, p.RetryAttempts, p.Status, p.DurationSecs, p.ErrorMessage)
	return err
}

// RecordVesselResultParams binds RecordVesselResult's insert.
type RecordVesselResultParams struct {
	RunID         uuid.UUID
	VesselID      string
	AttemptNumber int
	Success       bool
	DurationSecs  float64
	ErrorMessage  string
	Timestamp     time.Time
}

// RecordVesselResult logs one vessel's query outcome within a run.
func (q *Queries) RecordVesselResult(ctx context.Context, p RecordVesselResultParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO scheduler_vessel_results
			(run_id, vessel_id, attempt_number, success, query_duration_seconds, error_message, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.RunID, p.VesselID, p.AttemptNumber, p.Success, p.DurationSecs, p.ErrorMessage, p.Timestamp)
	return err
}

// RecentRuns returns the most recent scheduler runs, newest first.
func (q *Queries) RecentRuns(ctx context.Context, limit int) ([]SchedulerRun, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, start_time, end_time, total_vessels, successful_vessels, failed_vessels,
			retry_attempts, status, duration_seconds, error_message
		FROM scheduler_runs ORDER BY start_time DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SchedulerRun
	for rows.Next() {
		var r SchedulerRun
		if err := rows.Scan(&r.ID, &r.Start, &r.End, &r.TotalVessels, &r.SuccessfulVessels,
			&r.FailedVessels, &r.RetryAttempts, &r.Status, &r.DurationSecs, &r.ErrorMessage); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// VesselResult mirrors a row of the scheduler_vessel_results table.
type VesselResult struct {
	RunID         uuid.UUID
	VesselID      string
	AttemptNumber int
	Success       bool
	DurationSecs  float64
	ErrorMessage  string
	Timestamp     time.Time
}

// GetRun returns a single scheduler run by ID, or pgx.ErrNoRows.
func (q *Queries) GetRun(ctx context.Context, id uuid.UUID) (SchedulerRun, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, start_time, end_time, total_vessels, successful_vessels, failed_vessels,
			retry_attempts, status, duration_seconds, error_message
		FROM scheduler_runs WHERE id = $1
	`, id)
	var r SchedulerRun
	err := row.Scan(&r.ID, &r.Start, &r.End, &r.TotalVessels, &r.SuccessfulVessels,
		&r.FailedVessels, &r.RetryAttempts, &r.Status, &r.DurationSecs, &r.ErrorMessage)
	return r, err
}

// VesselResultsForRun returns every vessel query result within a run,
// ordered by when they were recorded.
func (q *Queries) VesselResultsForRun(ctx context.Context, runID uuid.UUID) ([]VesselResult, error) {
	rows, err := q.db.Query(ctx, `
		SELECT run_id, vessel_id, attempt_number, success, query_duration_seconds, error_message, recorded_at
		FROM scheduler_vessel_results WHERE run_id = $1 ORDER BY recorded_at ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VesselResult
	for rows.Next() {
		var v VesselResult
		if err := rows.Scan(&v.RunID, &v.VesselID, &v.AttemptNumber, &v.Success, &v.DurationSecs, &v.ErrorMessage, &v.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteRunsBefore removes scheduler runs (and their vessel results, via
// FK cascade) older than cutoff, per spec.md §4.8's retention policy.
func (q *Queries) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM scheduler_runs WHERE start_time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
