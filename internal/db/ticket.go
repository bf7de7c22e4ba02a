package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ticket mirrors a row of the tickets table.
type Ticket struct {
	ID               uuid.UUID
	TrackerKey       string
	TrackerID        string
	VesselID         string
	Role             string
	Severity         string
	LifecycleState   string
	DowntimeSeconds  float64
	Created          time.Time
	Updated          time.Time
	ResolutionNotes  string
}

// CreateTicketParams binds CreateTicket's insert.
type CreateTicketParams struct {
	TrackerKey      string
	TrackerID       string
	VesselID        string
	Role            string
	Severity        string
	LifecycleState  string
	DowntimeSeconds float64
	Created         time.Time
	Updated         time.Time
}

// CreateTicket inserts a new ticket record.
func (q *Queries) CreateTicket(ctx context.Context, p CreateTicketParams) (Ticket, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO tickets (id, tracker_key, tracker_id, vessel_id, role, severity,
			lifecycle_state, downtime_seconds, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, tracker_key, tracker_id, vessel_id, role, severity, lifecycle_state,
			downtime_seconds, created_at, updated_at, resolution_notes
	`, p.TrackerKey, p.TrackerID, p.VesselID, p.Role, p.Severity, p.LifecycleState,
		p.DowntimeSeconds, p.Created, p.Updated)
	return scanTicket(row)
}

// OpenTicketsFor returns open-lifecycle tickets for a vessel/role created
// since the given time, for duplicate-prevention checks.
func (q *Queries) OpenTicketsFor(ctx context.Context, vesselID, role string, since time.Time) ([]Ticket, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tracker_key, tracker_id, vessel_id, role, severity, lifecycle_state,
			downtime_seconds, created_at, updated_at, resolution_notes
		FROM tickets
		WHERE vessel_id = $1 AND role = $2 AND created_at >= $3
			AND lifecycle_state IN ('created', 'linked_to_alert', 'in_progress', 'reopened')
	`, vesselID, role, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

// LinkAlert associates an alert with an existing ticket.
func (q *Queries) LinkAlert(ctx context.Context, ticketID, alertID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO ticket_alerts (ticket_id, alert_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, ticketID, alertID)
	return err
}

// UpdateLifecycle transitions a ticket's lifecycle state.
func (q *Queries) UpdateLifecycle(ctx context.Context, ticketID uuid.UUID, state string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE tickets SET lifecycle_state = $2, updated_at = now() WHERE id = $1
	`, ticketID, state)
	return err
}

// TicketsByVessel supports the dashboard vessel detail view
// (original_source's get_tickets_by_vessel_component).
func (q *Queries) TicketsByVessel(ctx context.Context, vesselID string) ([]Ticket, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tracker_key, tracker_id, vessel_id, role, severity, lifecycle_state,
			downtime_seconds, created_at, updated_at, resolution_notes
		FROM tickets WHERE vessel_id = $1 ORDER BY created_at DESC
	`, vesselID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

// TicketsByAlert supports original_source's get_tickets_by_alert lookup.
func (q *Queries) TicketsByAlert(ctx context.Context, alertID uuid.UUID) ([]Ticket, error) {
	rows, err := q.db.Query(ctx, `
		SELECT t.id, t.tracker_key, t.tracker_id, t.vessel_id, t.role, t.severity,
			t.lifecycle_state, t.downtime_seconds, t.created_at, t.updated_at, t.resolution_notes
		FROM tickets t
		JOIN ticket_alerts ta ON ta.ticket_id = t.id
		WHERE ta.alert_id = $1
	`, alertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

// LifecycleStatistics mirrors original_source's get_lifecycle_statistics:
// a count of tickets per lifecycle state.
func (q *Queries) LifecycleStatistics(ctx context.Context) (map[string]int, error) {
	rows, err := q.db.Query(ctx, `SELECT lifecycle_state, count(*) FROM tickets GROUP BY lifecycle_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.TrackerKey, &t.TrackerID, &t.VesselID, &t.Role, &t.Severity,
		&t.LifecycleState, &t.DowntimeSeconds, &t.Created, &t.Updated, &t.ResolutionNotes)
	return t, err
}

func collectTickets(rows pgx.Rows) ([]Ticket, error) {
	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.TrackerKey, &t.TrackerID, &t.VesselID, &t.Role, &t.Severity,
			&t.LifecycleState, &t.DowntimeSeconds, &t.Created, &t.Updated, &t.ResolutionNotes); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
