package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Alert mirrors a row of the alerts table.
type Alert struct {
	ID       uuid.UUID
	VesselID string
	Role     string
	Kind     string
	Severity string
	Message  string
	Metadata []byte
	Opened   time.Time
	Resolved pgtype.Timestamptz
}

// CreateAlertParams binds CreateAlert's insert.
type CreateAlertParams struct {
	VesselID string
	Role     string
	Kind     string
	Severity string
	Message  string
	Metadata json.RawMessage
	Opened   time.Time
}

// CreateAlert opens a new alert ledger entry.
func (q *Queries) CreateAlert(ctx context.Context, p CreateAlertParams) (Alert, error) {
	meta := p.Metadata
	if meta == nil {
		meta = json.RawMessage("{}")
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO alerts (id, vessel_id, role, kind, severity, message, metadata, opened_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, vessel_id, role, kind, severity, message, metadata, opened_at, resolved_at
	`, p.VesselID, p.Role, p.Kind, p.Severity, p.Message, meta, p.Opened)
	return scanAlert(row)
}

// ResolveAlert marks an alert resolved.
func (q *Queries) ResolveAlert(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE alerts SET resolved_at = $2 WHERE id = $1`, id, resolvedAt)
	return err
}

// OpenAlerts returns every unresolved alert, used to reconstruct the Alert
// Manager's in-memory ledger at startup.
func (q *Queries) OpenAlerts(ctx context.Context) ([]Alert, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, vessel_id, role, kind, severity, message, metadata, opened_at, resolved_at
		FROM alerts WHERE resolved_at IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func scanAlert(row pgx.Row) (Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.VesselID, &a.Role, &a.Kind, &a.Severity, &a.Message, &a.Metadata, &a.Opened, &a.Resolved)
	return a, err
}

func collectAlerts(rows pgx.Rows) ([]Alert, error) {
	var out []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.VesselID, &a.Role, &a.Kind, &a.Severity, &a.Message, &a.Metadata, &a.Opened, &a.Resolved); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
