// Package alertmgr implements the Alert Manager: it turns SLA states into
// alerts, maintains an open-alert ledger keyed by (vessel, role, kind), and
// detects persistent downtime (spec.md §4.5).
//
// The open-alert ledger follows the same fingerprint/open-row pattern as
// the teacher's pkg/alert.Deduplicator (Redis-backed cache, database of
// record underneath) generalized from a single dedup key to the three
// alert kinds this domain needs.
package alertmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/pkg/sla"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// Severity mirrors the teacher's alert severity ladder (pkg/alert.go's
// normalizeSeverity values), kept separate from ticket priority
// (spec.md §9: severity and priority are two distinct ladders).
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Kind is the alert trigger type (spec.md §3).
type Kind string

const (
	KindSLAViolation      Kind = "sla_violation"
	KindPersistentDowntime Kind = "persistent_downtime"
	KindRecovery          Kind = "recovery"
)

// Alert mirrors the Alert entity (spec.md §3).
type Alert struct {
	ID         uuid.UUID
	VesselID   string
	Role       vessel.Role
	Severity   Severity
	Kind       Kind
	Message    string
	Metadata   map[string]any
	Created    time.Time
	Resolved   *time.Time
}

// Store is the persistence boundary for the open-alert ledger.
type Store interface {
	OpenAlerts(ctx context.Context) ([]Alert, error)
	CreateAlert(ctx context.Context, a Alert) (uuid.UUID, error)
	ResolveAlert(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error
}

type ledgerKey struct {
	vesselID string
	role     vessel.Role
	kind     Kind
}

// Manager holds the in-memory open-alert ledger, reconstructed from the
// Durable Store at startup (same pattern as sla.Analyzer's violation
// cache).
type Manager struct {
	store                     Store
	logger                    *slog.Logger
	downtimeAlertThresholdDays int

	mu     sync.Mutex
	ledger map[ledgerKey]uuid.UUID
}

// New creates a Manager. Call LoadLedger once at startup.
func New(store Store, downtimeAlertThresholdDays int, logger *slog.Logger) *Manager {
	return &Manager{store: store, downtimeAlertThresholdDays: downtimeAlertThresholdDays, logger: logger, ledger: make(map[ledgerKey]uuid.UUID)}
}

// LoadLedger reconstructs the in-memory open-alert ledger from the store.
func (m *Manager) LoadLedger(ctx context.Context) error {
	open, err := m.store.OpenAlerts(ctx)
	if err != nil {
		return fmt.Errorf("loading open alerts: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = make(map[ledgerKey]uuid.UUID, len(open))
	for _, a := range open {
		m.ledger[ledgerKey{a.VesselID, a.Role, a.Kind}] = a.ID
	}
	return nil
}

// OpenAlert returns the ID of the currently open alert of the given kind
// for (vesselID, role), if any.
func (m *Manager) OpenAlert(vesselID string, role vessel.Role, kind Kind) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ledger[ledgerKey{vesselID, role, kind}]
	return id, ok
}

// severityForViolation implements the severity table of spec.md §4.5.
func severityForViolation(downtimeAging time.Duration, uptime float64) Severity {
	hours := downtimeAging.Hours()
	switch {
	case hours >= 72 || uptime < 50:
		return SeverityCritical
	case hours >= 24 || uptime < 80:
		return SeverityWarning
	case hours >= 4 || uptime < 90:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Evaluate applies the Alert Manager's rules to one SLAStatus, opening or
// resolving alerts in the ledger as needed (spec.md §4.5). It returns the
// alerts newly opened or resolved during this call (for downstream
// consumers such as the Ticket Workflow and chatops notifications).
func (m *Manager) Evaluate(ctx context.Context, now time.Time, st sla.Status, downtimeAging time.Duration) ([]Alert, error) {
	var produced []Alert

	if !st.IsCompliant {
		k := ledgerKey{st.VesselID, st.Role, KindSLAViolation}
		m.mu.Lock()
		_, open := m.ledger[k]
		m.mu.Unlock()
		if !open {
			sev := severityForViolation(downtimeAging, st.UptimePercentage)
			a := Alert{
				VesselID: st.VesselID,
				Role:     st.Role,
				Severity: sev,
				Kind:     KindSLAViolation,
				Message:  fmt.Sprintf("%s %s SLA violation: %.2f%% uptime", st.VesselID, st.Role, st.UptimePercentage),
				Metadata: map[string]any{"uptime_percentage": st.UptimePercentage},
				Created:  now,
			}
			id, err := m.store.CreateAlert(ctx, a)
			if err != nil {
				return produced, fmt.Errorf("creating sla_violation alert: %w", err)
			}
			a.ID = id
			m.mu.Lock()
			m.ledger[k] = id
			m.mu.Unlock()
			produced = append(produced, a)
		}

		if downtimeAging >= time.Duration(m.downtimeAlertThresholdDays)*24*time.Hour {
			pk := ledgerKey{st.VesselID, st.Role, KindPersistentDowntime}
			m.mu.Lock()
			_, pOpen := m.ledger[pk]
			m.mu.Unlock()
			if !pOpen {
				a := Alert{
					VesselID: st.VesselID,
					Role:     st.Role,
					Severity: SeverityCritical,
					Kind:     KindPersistentDowntime,
					Message:  fmt.Sprintf("%s %s down for %s", st.VesselID, st.Role, downtimeAging.Round(time.Minute)),
					Metadata: map[string]any{"downtime_aging_seconds": downtimeAging.Seconds()},
					Created:  now,
				}
				id, err := m.store.CreateAlert(ctx, a)
				if err != nil {
					return produced, fmt.Errorf("creating persistent_downtime alert: %w", err)
				}
				a.ID = id
				m.mu.Lock()
				m.ledger[pk] = id
				m.mu.Unlock()
				produced = append(produced, a)
			}
		}
		return produced, nil
	}

	// Compliant: resolve any open alerts for this (vessel, role) and emit a
	// RECOVERY alert if one was open.
	var resolvedAny bool
	for _, kind := range []Kind{KindSLAViolation, KindPersistentDowntime} {
		k := ledgerKey{st.VesselID, st.Role, kind}
		m.mu.Lock()
		id, open := m.ledger[k]
		m.mu.Unlock()
		if !open {
			continue
		}
		if err := m.store.ResolveAlert(ctx, id, now); err != nil {
			return produced, fmt.Errorf("resolving %s alert: %w", kind, err)
		}
		m.mu.Lock()
		delete(m.ledger, k)
		m.mu.Unlock()
		resolvedAny = true
	}

	if resolvedAny {
		a := Alert{
			VesselID: st.VesselID,
			Role:     st.Role,
			Severity: SeverityInfo,
			Kind:     KindRecovery,
			Message:  fmt.Sprintf("%s %s recovered: %.2f%% uptime", st.VesselID, st.Role, st.UptimePercentage),
			Created:  now,
		}
		id, err := m.store.CreateAlert(ctx, a)
		if err != nil {
			if m.logger != nil {
				m.logger.Warn("failed to record recovery alert", "vessel_id", st.VesselID, "role", st.Role, "error", err)
			}
		} else {
			a.ID = id
			produced = append(produced, a)
		}
	}

	return produced, nil
}
