// Package ticket implements the Ticket Workflow: issue summary assembly,
// duplicate prevention, a tracker REST client, and the lifecycle record
// that mirrors tracker status (spec.md §4.6).
package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// Severity mirrors original_source's IssueSeverity, used for ticket
// priority — a ladder kept distinct from alertmgr.Severity (spec.md §9).
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{SeverityMedium: 1, SeverityHigh: 2, SeverityCritical: 3}

// higherThan reports whether s strictly outranks other.
func (s Severity) higherThan(other Severity) bool { return severityRank[s] > severityRank[other] }

// SeverityFromDowntime maps downtime duration to ticket severity
// (spec.md §4.6: "≥7d CRITICAL, ≥3d HIGH, else MEDIUM").
func SeverityFromDowntime(d time.Duration) Severity {
	switch {
	case d >= 7*24*time.Hour:
		return SeverityCritical
	case d >= 3*24*time.Hour:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// IssueSummary is assembled from a PERSISTENT_DOWNTIME alert (spec.md §4.6).
type IssueSummary struct {
	VesselID          string
	Role              vessel.Role
	DowntimeDuration  time.Duration
	Severity          Severity
	HistoricalContext string
	AlertID           *uuid.UUID
}

// Title renders a one-line tracker ticket title.
func (s IssueSummary) Title() string {
	return fmt.Sprintf("[%s] %s %s down for %s", s.Severity, s.VesselID, s.Role, s.DowntimeDuration.Round(time.Minute))
}

// Description renders the tracker ticket body.
func (s IssueSummary) Description() string {
	return fmt.Sprintf("Vessel %s, component %s has been down for %s.\n\n%s",
		s.VesselID, s.Role, s.DowntimeDuration.Round(time.Minute), s.HistoricalContext)
}

// LifecycleState mirrors original_source's TicketLifecycleStatus.
type LifecycleState string

const (
	LifecycleCreated      LifecycleState = "created"
	LifecycleLinkedAlert  LifecycleState = "linked_to_alert"
	LifecycleInProgress   LifecycleState = "in_progress"
	LifecycleResolved     LifecycleState = "resolved"
	LifecycleClosed       LifecycleState = "closed"
	LifecycleReopened     LifecycleState = "reopened"
)

// openStates are the lifecycle states that count toward duplicate
// prevention (original_source's check_for_duplicates IN clause).
var openStates = map[LifecycleState]bool{
	LifecycleCreated:     true,
	LifecycleLinkedAlert: true,
	LifecycleInProgress:  true,
	LifecycleReopened:    true,
}

// Record mirrors TicketRecord (spec.md §3).
type Record struct {
	ID               uuid.UUID
	TrackerKey       string
	TrackerID        string
	VesselID         string
	Role             vessel.Role
	Severity         Severity
	LifecycleState   LifecycleState
	AlertIDs         []uuid.UUID
	DowntimeDuration time.Duration
	Created          time.Time
	Updated          time.Time
	ResolutionNotes  string
}

// Tracker is the external issue-tracker client (spec.md §4.6's "tracker
// REST client"), grounded on original_source's JIRAService.create_ticket/
// update_ticket_status/get_ticket_details.
type Tracker interface {
	CreateTicket(ctx context.Context, summary IssueSummary) (key, id string, err error)
	UpdateStatus(ctx context.Context, key string, status string) error
	GetTicket(ctx context.Context, key string) (status string, err error)
}

// DuplicateRules mirrors original_source's DuplicatePreventionRule.
type DuplicateRules struct {
	WindowHours              int
	AllowSeverityEscalation  bool
	MaxTicketsPerComponent   int
}

// DefaultDuplicateRules matches spec.md's defaults.
var DefaultDuplicateRules = DuplicateRules{WindowHours: 24, AllowSeverityEscalation: true, MaxTicketsPerComponent: 3}

// Store is the persistence boundary for ticket records.
type Store interface {
	OpenTicketsFor(ctx context.Context, vesselID string, role vessel.Role, since time.Time) ([]Record, error)
	CreateTicket(ctx context.Context, r Record) (uuid.UUID, error)
	LinkAlert(ctx context.Context, ticketID, alertID uuid.UUID) error
	UpdateLifecycle(ctx context.Context, ticketID uuid.UUID, state LifecycleState) error
}

// Workflow ties together duplicate prevention, tracker creation, and
// lifecycle persistence.
type Workflow struct {
	store   Store
	tracker Tracker
	rules   DuplicateRules
}

// New creates a Workflow.
func New(store Store, tracker Tracker, rules DuplicateRules) *Workflow {
	if rules.WindowHours <= 0 {
		rules = DefaultDuplicateRules
	}
	return &Workflow{store: store, tracker: tracker, rules: rules}
}

// CheckDuplicate implements the duplicate-prevention rule of spec.md §4.6:
// reject a new ticket iff an open ticket exists for (vessel, role) AND
// either the max-per-component count is reached, severity escalation is
// disabled, OR the offered severity does not strictly outrank every
// existing open ticket.
//
// If rejected and alertID is non-nil, the alert is linked to the newest
// existing ticket.
func (w *Workflow) CheckDuplicate(ctx context.Context, vesselID string, role vessel.Role, severity Severity, alertID *uuid.UUID) (bool, error) {
	since := time.Now().Add(-time.Duration(w.rules.WindowHours) * time.Hour)
	existing, err := w.store.OpenTicketsFor(ctx, vesselID, role, since)
	if err != nil {
		return false, fmt.Errorf("checking for duplicate tickets: %w", err)
	}
	if len(existing) == 0 {
		return false, nil
	}

	if len(existing) >= w.rules.MaxTicketsPerComponent {
		w.linkNewest(ctx, existing, alertID)
		return true, nil
	}

	if w.rules.AllowSeverityEscalation {
		maxExisting := existing[0].Severity
		for _, t := range existing[1:] {
			if t.Severity.higherThan(maxExisting) {
				maxExisting = t.Severity
			}
		}
		if severity.higherThan(maxExisting) {
			return false, nil
		}
	}

	w.linkNewest(ctx, existing, alertID)
	return true, nil
}

func (w *Workflow) linkNewest(ctx context.Context, existing []Record, alertID *uuid.UUID) {
	if alertID == nil || len(existing) == 0 {
		return
	}
	newest := existing[0]
	for _, t := range existing[1:] {
		if t.Created.After(newest.Created) {
			newest = t
		}
	}
	_ = w.store.LinkAlert(ctx, newest.ID, *alertID)
}

// Create submits the approved issue to the tracker and persists the
// resulting TicketRecord (spec.md §4.6 step 3). The caller must have
// already run CheckDuplicate and obtained approval.
func (w *Workflow) Create(ctx context.Context, summary IssueSummary) (Record, error) {
	key, id, err := w.tracker.CreateTicket(ctx, summary)
	if err != nil {
		return Record{}, fmt.Errorf("creating tracker ticket: %w", err)
	}

	now := time.Now().UTC()
	rec := Record{
		TrackerKey:       key,
		TrackerID:        id,
		VesselID:         summary.VesselID,
		Role:             summary.Role,
		Severity:         summary.Severity,
		LifecycleState:   LifecycleCreated,
		DowntimeDuration: summary.DowntimeDuration,
		Created:          now,
		Updated:          now,
	}
	if summary.AlertID != nil {
		rec.AlertIDs = []uuid.UUID{*summary.AlertID}
	}

	recID, err := w.store.CreateTicket(ctx, rec)
	if err != nil {
		// The tracker ticket exists but our record does not; the caller must
		// retry persistence, not re-create the tracker ticket (spec.md §4.6
		// idempotence: "it does not re-prompt the human").
		return Record{}, fmt.Errorf("persisting ticket record for tracker ticket %s: %w", key, err)
	}
	rec.ID = recID

	if summary.AlertID != nil {
		if err := w.store.LinkAlert(ctx, recID, *summary.AlertID); err != nil {
			return rec, fmt.Errorf("linking alert to ticket: %w", err)
		}
	}

	return rec, nil
}
