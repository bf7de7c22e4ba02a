package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Violation mirrors a row of the violations table.
type Violation struct {
	ID            uuid.UUID
	VesselID      string
	Role          string
	Start         time.Time
	End           pgtype.Timestamptz
	UptimeAtStart float64
	DurationSecs  pgtype.Float8
	Resolved      bool
}

// CreateViolationParams binds CreateViolation's insert.
type CreateViolationParams struct {
	VesselID      string
	Role          string
	Start         time.Time
	UptimeAtStart float64
}

// CreateViolation opens a new violation record.
func (q *Queries) CreateViolation(ctx context.Context, p CreateViolationParams) (Violation, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO violations (id, vessel_id, role, start_time, uptime_at_start, resolved)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, false)
		RETURNING id, vessel_id, role, start_time, end_time, uptime_at_start, duration_seconds, resolved
	`, p.VesselID, p.Role, p.Start, p.UptimeAtStart)
	return scanViolation(row)
}

// CloseViolation marks a violation resolved with its final duration.
func (q *Queries) CloseViolation(ctx context.Context, id uuid.UUID, end time.Time, duration time.Duration) error {
	_, err := q.db.Exec(ctx, `
		UPDATE violations SET end_time = $2, duration_seconds = $3, resolved = true
		WHERE id = $1
	`, id, end, duration.Seconds())
	return err
}

// OpenViolations returns every unresolved violation, used to reconstruct
// the SLA Analyzer's in-memory cache at startup.
func (q *Queries) OpenViolations(ctx context.Context) ([]Violation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, vessel_id, role, start_time, end_time, uptime_at_start, duration_seconds, resolved
		FROM violations WHERE resolved = false
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectViolations(rows)
}

func scanViolation(row pgx.Row) (Violation, error) {
	var v Violation
	err := row.Scan(&v.ID, &v.VesselID, &v.Role, &v.Start, &v.End, &v.UptimeAtStart, &v.DurationSecs, &v.Resolved)
	return v, err
}

func collectViolations(rows pgx.Rows) ([]Violation, error) {
	var out []Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.ID, &v.VesselID, &v.Role, &v.Start, &v.End, &v.UptimeAtStart, &v.DurationSecs, &v.Resolved); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
