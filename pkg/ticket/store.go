package ticket

import (
	"context"
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

// OpenTicketsFor returns open-lifecycle tickets for a vessel/role created
// since the given time (spec.md §4.6's duplicate-prevention window).
func (s *PGStore) OpenTicketsFor(ctx context.Context, vesselID string, role vessel.Role, since time.Time) ([]Record, error) {
	rows, err := s.q.OpenTicketsFor(ctx, vesselID, string(role), since)
	if err != nil {
		return nil, fmt.Errorf("loading open tickets for %s/%s: %w", vesselID, role, err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, recordFromRow(r))
	}
	return out, nil
}

// CreateTicket persists a new ticket record.
func (s *PGStore) CreateTicket(ctx context.Context, r Record) (uuid.UUID, error) {
	row, err := s.q.CreateTicket(ctx, db.CreateTicketParams{
		TrackerKey:      r.TrackerKey,
		TrackerID:       r.TrackerID,
		VesselID:        r.VesselID,
		Role:            string(r.Role),
		Severity:        string(r.Severity),
		LifecycleState:  string(r.LifecycleState),
		DowntimeSeconds: r.DowntimeDuration.Seconds(),
		Created:         r.Created,
		Updated:         r.Updated,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating ticket record: %w", err)
	}
	return row.ID, nil
}

// LinkAlert associates an alert with an existing ticket.
func (s *PGStore) LinkAlert(ctx context.Context, ticketID, alertID uuid.UUID) error {
	if err := s.q.LinkAlert(ctx, ticketID, alertID); err != nil {
		return fmt.Errorf("linking alert %s to ticket %s: %w", alertID, ticketID, err)
	}
	return nil
}

// UpdateLifecycle transitions a ticket's lifecycle state, mirroring
// tracker status (spec.md §3).
func (s *PGStore) UpdateLifecycle(ctx context.Context, ticketID uuid.UUID, state LifecycleState) error {
	if err := s.q.UpdateLifecycle(ctx, ticketID, string(state)); err != nil {
		return fmt.Errorf("updating ticket %s lifecycle: %w", ticketID, err)
	}
	return nil
}

// TicketsByVessel supports the dashboard vessel detail view
// (original_source's get_tickets_by_vessel_component).
func (s *PGStore) TicketsByVessel(ctx context.Context, vesselID string) ([]Record, error) {
	rows, err := s.q.TicketsByVessel(ctx, vesselID)
	if err != nil {
		return nil, fmt.Errorf("loading tickets for vessel %s: %w", vesselID, err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, recordFromRow(r))
	}
	return out, nil
}

// TicketsByAlert supports original_source's get_tickets_by_alert lookup.
func (s *PGStore) TicketsByAlert(ctx context.Context, alertID uuid.UUID) ([]Record, error) {
	rows, err := s.q.TicketsByAlert(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("loading tickets for alert %s: %w", alertID, err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, recordFromRow(r))
	}
	return out, nil
}

// LifecycleStatistics mirrors original_source's get_lifecycle_statistics.
func (s *PGStore) LifecycleStatistics(ctx context.Context) (map[LifecycleState]int, error) {
	raw, err := s.q.LifecycleStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing ticket lifecycle statistics: %w", err)
	}
	out := make(map[LifecycleState]int, len(raw))
	for state, n := range raw {
		out[LifecycleState(state)] = n
	}
	return out, nil
}

func recordFromRow(r db.Ticket) Record {
	return Record{
		ID:               r.ID,
		TrackerKey:       r.TrackerKey,
		TrackerID:        r.TrackerID,
		VesselID:         r.VesselID,
		Role:             vessel.Role(r.Role),
		Severity:         Severity(r.Severity),
		LifecycleState:   LifecycleState(r.LifecycleState),
		DowntimeDuration: time.Duration(r.DowntimeSeconds * float64(time.Second)),
		Created:          r.Created,
		Updated:          r.Updated,
		ResolutionNotes:  r.ResolutionNotes,
	}
}
