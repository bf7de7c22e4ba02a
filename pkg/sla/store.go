package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/internal/db"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// PGStore is a Store backed by the Durable Store (spec.md §7: "The Durable
// Store is the source of truth").
type PGStore struct {
	q *db.Queries
}

// NewPGStore creates a PGStore bound to the given connection or transaction.
func NewPGStore(dbtx db.DBTX) *PGStore {
	return &PGStore{q: db.New(dbtx)}
}

// OpenViolations returns every unresolved violation.
func (s *PGStore) OpenViolations(ctx context.Context) ([]ViolationRecord, error) {
	rows, err := s.q.OpenViolations(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading open violations: %w", err)
	}
	out := make([]ViolationRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, violationFromRow(r))
	}
	return out, nil
}

// CreateViolation opens a new violation record.
func (s *PGStore) CreateViolation(ctx context.Context, v ViolationRecord) (uuid.UUID, error) {
	row, err := s.q.CreateViolation(ctx, db.CreateViolationParams{
		VesselID:      v.VesselID,
		Role:          string(v.Role),
		Start:         v.Start,
		UptimeAtStart: v.UptimeAtStart,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating violation: %w", err)
	}
	return row.ID, nil
}

// CloseViolation marks a violation resolved.
func (s *PGStore) CloseViolation(ctx context.Context, id uuid.UUID, end time.Time, duration time.Duration) error {
	if err := s.q.CloseViolation(ctx, id, end, duration); err != nil {
		return fmt.Errorf("closing violation %s: %w", id, err)
	}
	return nil
}

func violationFromRow(r db.Violation) ViolationRecord {
	v := ViolationRecord{
		ID:            r.ID,
		VesselID:      r.VesselID,
		Role:          vessel.Role(r.Role),
		Start:         r.Start,
		UptimeAtStart: r.UptimeAtStart,
		Resolved:      r.Resolved,
	}
	if r.End.Valid {
		end := r.End.Time
		v.End = &end
	}
	if r.DurationSecs.Valid {
		d := time.Duration(r.DurationSecs.Float64 * float64(time.Second))
		v.Duration = &d
	}
	return v
}
