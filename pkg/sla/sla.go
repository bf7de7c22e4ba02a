// Package sla implements the SLA Analyzer: compliance verdicts and
// violation-record lifecycle tracking (spec.md §4.4).
package sla

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/pkg/collector"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// Status is the compliance verdict for one component observation.
type Status struct {
	VesselID          string
	Role              vessel.Role
	IsCompliant       bool
	UptimePercentage  float64
	ViolationDuration time.Duration // only meaningful when !IsCompliant
	DowntimeAging     time.Duration // now - first sample of the current trailing failure run
}

// ViolationRecord mirrors the persisted entity of the same name
// (spec.md §3).
type ViolationRecord struct {
	ID             uuid.UUID
	VesselID       string
	Role           vessel.Role
	Start          time.Time
	End            *time.Time
	UptimeAtStart  float64
	Duration       *time.Duration
	Resolved       bool
}

// Store is the persistence boundary the Analyzer needs: open/close
// violation records and reload the open set at startup (spec.md §7: "the
// violation cache is reconstructed from open ViolationRecords at startup").
type Store interface {
	OpenViolations(ctx context.Context) ([]ViolationRecord, error)
	CreateViolation(ctx context.Context, v ViolationRecord) (uuid.UUID, error)
	CloseViolation(ctx context.Context, id uuid.UUID, end time.Time, duration time.Duration) error
}

// Parameters are the SLA Analyzer's configurable thresholds
// (spec.md §4.4, §6).
type Parameters struct {
	UptimeThresholdPercentage  float64
	DowntimeAlertThresholdDays int
	MonitoringWindowHours      int
}

// DefaultParameters matches spec.md's defaults.
var DefaultParameters = Parameters{
	UptimeThresholdPercentage:  95.0,
	DowntimeAlertThresholdDays: 3,
	MonitoringWindowHours:      24,
}

type key struct {
	vesselID string
	role     vessel.Role
}

// Analyzer converts ComponentStatus into SLAStatus and tracks violation
// open/close transitions across runs.
type Analyzer struct {
	params Parameters
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	cache map[key]openViolation
}

type openViolation struct {
	id            uuid.UUID
	start         time.Time
	uptimeAtStart float64
}

// New creates an Analyzer. Call LoadCache once at startup to reconstruct
// the open-violation cache from the store.
func New(params Parameters, store Store, logger *slog.Logger) *Analyzer {
	return &Analyzer{params: params, store: store, logger: logger, cache: make(map[key]openViolation)}
}

// LoadCache reconstructs the in-memory open-violation cache from the
// Durable Store. In-memory caches may be lost without data loss
// (spec.md §7); this is how the cache is rebuilt after a restart.
func (a *Analyzer) LoadCache(ctx context.Context) error {
	open, err := a.store.OpenViolations(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = make(map[key]openViolation, len(open))
	for _, v := range open {
		a.cache[key{v.VesselID, v.Role}] = openViolation{id: v.ID, start: v.Start, uptimeAtStart: v.UptimeAtStart}
	}
	return nil
}

// AnalyzeFleet converts a batch of VesselMetrics into SLAStatus per
// (vessel, role), continuing past individual vessel failures
// (spec.md §4.4).
func (a *Analyzer) AnalyzeFleet(ctx context.Context, now time.Time, metrics map[string]collector.VesselMetrics) map[string]map[vessel.Role]Status {
	out := make(map[string]map[vessel.Role]Status, len(metrics))
	for vesselID, vm := range metrics {
		roleStatuses := make(map[vessel.Role]Status, len(vm.Components))
		for role, cs := range vm.Components {
			st, err := a.analyzeOne(ctx, now, vesselID, role, cs.UptimePercentage, cs.CurrentStatus, cs.DowntimeAging)
			if err != nil {
				if a.logger != nil {
					a.logger.Error("sla analysis failed", "vessel_id", vesselID, "role", role, "error", err)
				}
				continue
			}
			roleStatuses[role] = st
		}
		out[vesselID] = roleStatuses
	}
	return out
}

// analyzeOne computes the SLAStatus for a single component observation and
// applies the violation open/close state transition (spec.md §4.4).
func (a *Analyzer) analyzeOne(ctx context.Context, now time.Time, vesselID string, role vessel.Role, uptime float64, current vessel.Status, downtimeAging time.Duration) (Status, error) {
	compliant := uptime >= a.params.UptimeThresholdPercentage

	var violationDuration time.Duration
	if !compliant {
		if current != vessel.StatusUp {
			violationDuration = downtimeAging
		} else {
			violationDuration = estimateWindowDowntime(a.params.MonitoringWindowHours, uptime)
		}
	}

	st := Status{VesselID: vesselID, Role: role, IsCompliant: compliant, UptimePercentage: uptime, ViolationDuration: violationDuration, DowntimeAging: downtimeAging}

	k := key{vesselID, role}
	a.mu.Lock()
	existing, hasOpen := a.cache[k]
	a.mu.Unlock()

	switch {
	case !compliant && !hasOpen:
		id, err := a.store.CreateViolation(ctx, ViolationRecord{
			VesselID:      vesselID,
			Role:          role,
			Start:         now.Add(-violationDuration),
			UptimeAtStart: uptime,
		})
		if err != nil {
			return st, err
		}
		a.mu.Lock()
		a.cache[k] = openViolation{id: id, start: now.Add(-violationDuration), uptimeAtStart: uptime}
		a.mu.Unlock()

	case compliant && hasOpen:
		duration := now.Sub(existing.start)
		if err := a.store.CloseViolation(ctx, existing.id, now, duration); err != nil {
			return st, err
		}
		a.mu.Lock()
		delete(a.cache, k)
		a.mu.Unlock()
	}

	return st, nil
}

// Summary is fleet-wide SLA compliance statistics, grounded on
// original_source's calculate_fleet_sla_summary.
type Summary struct {
	TotalVessels          int
	TotalComponents       int
	CompliantComponents   int
	ViolationComponents   int
	FleetComplianceRate   float64
	AverageUptime         float64
	VesselsWithViolations int
}

// FleetSummary aggregates a fleet analysis result into a Summary.
func FleetSummary(statuses map[string]map[vessel.Role]Status) Summary {
	var s Summary
	s.TotalVessels = len(statuses)
	var totalUptime float64
	for _, roleStatuses := range statuses {
		vesselHasViolation := false
		for _, st := range roleStatuses {
			s.TotalComponents++
			totalUptime += st.UptimePercentage
			if st.IsCompliant {
				s.CompliantComponents++
			} else {
				s.ViolationComponents++
				vesselHasViolation = true
			}
		}
		if vesselHasViolation {
			s.VesselsWithViolations++
		}
	}
	if s.TotalComponents > 0 {
		s.FleetComplianceRate = float64(s.CompliantComponents) / float64(s.TotalComponents) * 100
		s.AverageUptime = totalUptime / float64(s.TotalComponents)
	}
	return s
}

// PersistentDowntimeViolations filters statuses whose DowntimeAging has
// reached the configured downtime alert threshold (spec.md §4.5's trigger
// for PERSISTENT_DOWNTIME alerts) — the same test alertmgr.Manager.Evaluate
// applies, so this returns exactly the set Evaluate would (re-)open or keep
// open a PERSISTENT_DOWNTIME alert for.
func (a *Analyzer) PersistentDowntimeViolations(statuses map[string]map[vessel.Role]Status) []Status {
	threshold := time.Duration(a.params.DowntimeAlertThresholdDays) * 24 * time.Hour
	var out []Status
	for _, roleStatuses := range statuses {
		for _, st := range roleStatuses {
			if !st.IsCompliant && st.DowntimeAging >= threshold {
				out = append(out, st)
			}
		}
	}
	return out
}

// estimateWindowDowntime computes window*(100-uptime)/100, the estimated
// downtime over the window when the component is compliant-status UP but
// below the uptime threshold (spec.md §4.4).
func estimateWindowDowntime(windowHours int, uptime float64) time.Duration {
	fraction := (100 - uptime) / 100
	hours := float64(windowHours) * fraction
	return time.Duration(hours * float64(time.Hour))
}
