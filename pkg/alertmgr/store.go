package alertmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/internal/db"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// PGStore is a Store backed by the Durable Store.
type PGStore struct {
	q *db.Queries
}

// NewPGStore creates a PGStore bound to the given connection or transaction.
func NewPGStore(dbtx db.DBTX) *PGStore {
	return &PGStore{q: db.New(dbtx)}
}

// OpenAlerts returns every unresolved alert.
func (s *PGStore) OpenAlerts(ctx context.Context) ([]Alert, error) {
	rows, err := s.q.OpenAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading open alerts: %w", err)
	}
	out := make([]Alert, 0, len(rows))
	for _, r := range rows {
		a, err := alertFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// CreateAlert inserts a new open alert.
func (s *PGStore) CreateAlert(ctx context.Context, a Alert) (uuid.UUID, error) {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling alert metadata: %w", err)
	}
	row, err := s.q.CreateAlert(ctx, db.CreateAlertParams{
		VesselID: a.VesselID,
		Role:     string(a.Role),
		Kind:     string(a.Kind),
		Severity: string(a.Severity),
		Message:  a.Message,
		Metadata: meta,
		Opened:   a.Created,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating alert: %w", err)
	}
	return row.ID, nil
}

// ResolveAlert marks an alert resolved.
func (s *PGStore) ResolveAlert(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error {
	if err := s.q.ResolveAlert(ctx, id, resolvedAt); err != nil {
		return fmt.Errorf("resolving alert %s: %w", id, err)
	}
	return nil
}

func alertFromRow(r db.Alert) (Alert, error) {
	a := Alert{
		ID:       r.ID,
		VesselID: r.VesselID,
		Role:     vessel.Role(r.Role),
		Severity: Severity(r.Severity),
		Kind:     Kind(r.Kind),
		Message:  r.Message,
		Created:  r.Opened,
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &a.Metadata); err != nil {
			return Alert{}, fmt.Errorf("unmarshaling alert metadata: %w", err)
		}
	}
	if r.Resolved.Valid {
		resolved := r.Resolved.Time
		a.Resolved = &resolved
	}
	return a, nil
}
