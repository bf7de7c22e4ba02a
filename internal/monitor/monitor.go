// Package monitor wires the Fan-Out Collector, SLA Analyzer, Alert
// Manager, Ticket Workflow, Approval Workflow and Run Logger into the
// single daily pipeline described by spec.md §4: collect pings, derive
// compliance, raise or resolve alerts, and for persistent downtime route
// a candidate issue through human approval before it reaches the tracker.
//
// Runner.Job is the pkg/scheduler.Job passed to scheduler.New; it is also
// what the dashboard's manual "run now" trigger invokes. The approval wait
// for a persistent-downtime ticket can take up to the Approval Workflow's
// configured timeout, so it runs detached from the run itself (same
// fire-and-forget idiom as internal/dashboard's manual scheduler trigger)
// rather than holding the scheduler's single-instance guard open for hours.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/internal/telemetry"
	"github.com/wisbric/fleetwatch/pkg/alertmgr"
	"github.com/wisbric/fleetwatch/pkg/approval"
	"github.com/wisbric/fleetwatch/pkg/collector"
	"github.com/wisbric/fleetwatch/pkg/probe"
	"github.com/wisbric/fleetwatch/pkg/runlog"
	"github.com/wisbric/fleetwatch/pkg/sla"
	"github.com/wisbric/fleetwatch/pkg/ticket"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// approvalPollInterval is how often Await re-checks a pending request's
// status while waiting for a human decision.
const approvalPollInterval = 30 * time.Second

// Runner owns one fleet's worth of monitoring dependencies and exposes the
// Job the Daily Scheduler fires.
type Runner struct {
	vessels   map[string]*vessel.Vessel
	collector *collector.Collector
	sla       *sla.Analyzer
	alerts    *alertmgr.Manager
	tickets   *ticket.Workflow
	approvals *approval.Workflow
	runs      *runlog.Logger

	approvalTimeout time.Duration
	logger          *slog.Logger
}

// New creates a Runner. vessels is the fleet's static configuration; a
// probe.Client is built per vessel using its own Connection.
func New(vessels map[string]*vessel.Vessel, collectorCfg collector.Config, slaAnalyzer *sla.Analyzer, alerts *alertmgr.Manager, tickets *ticket.Workflow, approvals *approval.Workflow, runs *runlog.Logger, approvalTimeout time.Duration, logger *slog.Logger) *Runner {
	probers := make(map[string]collector.Prober, len(vessels))
	for id, v := range vessels {
		probers[id] = probe.NewClient(id, v.Connection, probe.DefaultRetryConfig)
	}

	coll := collector.New(vessels, probers, collectorCfg, newRunlogSink(runs), logger)

	return &Runner{
		vessels:         vessels,
		collector:       coll,
		sla:             slaAnalyzer,
		alerts:          alerts,
		tickets:         tickets,
		approvals:       approvals,
		runs:            runs,
		approvalTimeout: approvalTimeout,
		logger:          logger,
	}
}

// Job runs one full monitoring pass: collection, SLA analysis, alerting,
// and persistent-downtime ticket routing (spec.md §4.7).
func (r *Runner) Job(ctx context.Context, firedAt time.Time) {
	runID := uuid.New()
	r.runs.LogRunStart(runlog.Run{
		ID:           runID,
		Start:        firedAt,
		TotalVessels: len(r.vessels),
		Status:       runlog.StatusRunning,
	})

	result := r.collector.Run(ctx, runID)

	statuses := r.sla.AnalyzeFleet(ctx, firedAt, result.Metrics)
	r.evaluateAlerts(ctx, firedAt, statuses)
	r.routePersistentDowntime(statuses)

	end := time.Now().UTC()
	duration := end.Sub(firedAt)

	status := runlog.StatusCompleted
	errMsg := ""
	switch {
	case result.Cancelled:
		status = runlog.StatusFailed
		errMsg = "run cancelled before completion"
	case len(result.Failed) > 0:
		errMsg = fmt.Sprintf("%d vessel(s) failed: %s", len(result.Failed), strings.Join(result.Failed, ", "))
	}

	r.runs.LogRunCompletion(runlog.Run{
		ID:                runID,
		Start:             firedAt,
		End:               &end,
		TotalVessels:      len(r.vessels),
		SuccessfulVessels: len(result.Metrics),
		FailedVessels:     len(result.Failed),
		RetryAttempts:     result.Retries,
		Status:            status,
		Duration:          &duration,
		ErrorMessage:      errMsg,
	})

	telemetry.SchedulerRunsTotal.WithLabelValues(string(status)).Inc()
	telemetry.SchedulerRunDuration.Observe(duration.Seconds())

	r.logger.Info("monitoring run completed",
		"run_id", runID,
		"successful", len(result.Metrics),
		"failed", len(result.Failed),
		"retries", result.Retries,
		"duration", duration,
	)
}

// evaluateAlerts runs every component's SLA status through the Alert
// Manager, using the component's downtime-aging (not its SLA-window
// violation duration — the two are distinct quantities, spec.md §3) as the
// persistent-downtime trigger, and records the resulting open/resolve
// transitions as metrics.
func (r *Runner) evaluateAlerts(ctx context.Context, now time.Time, statuses map[string]map[vessel.Role]sla.Status) {
	for vesselID, roles := range statuses {
		for role, st := range roles {
			produced, err := r.alerts.Evaluate(ctx, now, st, st.DowntimeAging)
			if err != nil {
				r.logger.Error("alert evaluation failed", "vessel_id", vesselID, "role", role, "error", err)
				continue
			}

			for _, a := range produced {
				if a.Kind == alertmgr.KindRecovery {
					telemetry.AlertsResolvedTotal.WithLabelValues(string(a.Kind)).Inc()
					continue
				}
				telemetry.AlertsOpenedTotal.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
			}
		}
	}
}

// routePersistentDowntime routes every component whose downtime has reached
// the persistent-downtime threshold into the ticket/approval pipeline, on
// every run the condition holds — not only the run that first opens the
// alert — so ticket.Workflow.CheckDuplicate sees every run and applies its
// suppression/escalation rule (spec.md §4.6, §8 scenarios 4 and 5).
func (r *Runner) routePersistentDowntime(statuses map[string]map[vessel.Role]sla.Status) {
	for _, st := range r.sla.PersistentDowntimeViolations(statuses) {
		alertID, ok := r.alerts.OpenAlert(st.VesselID, st.Role, alertmgr.KindPersistentDowntime)
		if !ok {
			continue
		}
		r.routeToTicketPipeline(st, alertID)
	}
}

// routeToTicketPipeline checks for an existing duplicate ticket and, if
// none is open, submits an approval request and waits for the human
// decision in the background before creating the tracker ticket (spec.md
// §4.6: CheckDuplicate, then Submit/Await/Decide, then Create). Called on
// every run the persistent-downtime condition holds; CheckDuplicate is what
// suppresses repeat runs and escalates severity, not the call site.
func (r *Runner) routeToTicketPipeline(st sla.Status, alertID uuid.UUID) {
	bg := context.Background()
	severity := ticket.SeverityFromDowntime(st.ViolationDuration)

	duplicate, err := r.tickets.CheckDuplicate(bg, st.VesselID, st.Role, severity, &alertID)
	if err != nil {
		r.logger.Error("ticket duplicate check failed", "vessel_id", st.VesselID, "role", st.Role, "error", err)
		return
	}
	if duplicate {
		telemetry.TicketsSuppressedTotal.Inc()
		return
	}

	summary := fmt.Sprintf("%s %s has been down for %s", st.VesselID, st.Role, st.ViolationDuration.Round(time.Minute))
	req, err := r.approvals.Submit(bg, summary, st.VesselID)
	if err != nil {
		r.logger.Error("approval submission failed", "vessel_id", st.VesselID, "role", st.Role, "error", err)
		return
	}

	issue := ticket.IssueSummary{
		VesselID:         st.VesselID,
		Role:             st.Role,
		DowntimeDuration: st.ViolationDuration,
		Severity:         severity,
		AlertID:          &alertID,
	}

	go r.awaitDecisionAndCreateTicket(req.ID, issue)
}

// awaitDecisionAndCreateTicket polls the Approval Workflow until the
// request leaves PENDING (or the configured timeout elapses) and, if
// approved, creates the tracker ticket. It runs detached from the Job that
// submitted it, bounded by its own timeout rather than the run's context.
func (r *Runner) awaitDecisionAndCreateTicket(requestID uuid.UUID, issue ticket.IssueSummary) {
	timeout := r.approvalTimeout + 5*time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	decided, err := r.approvals.Await(ctx, requestID, approvalPollInterval)
	if err != nil {
		r.logger.Error("awaiting approval decision failed", "request_id", requestID, "error", err)
		return
	}

	telemetry.ApprovalRequestsTotal.WithLabelValues(string(decided.Status)).Inc()

	if decided.Status != approval.StatusApproved {
		r.logger.Info("ticket not created: approval request not approved", "request_id", requestID, "status", decided.Status)
		return
	}

	rec, err := r.tickets.Create(ctx, issue)
	if err != nil {
		r.logger.Error("ticket creation failed after approval", "request_id", requestID, "vessel_id", issue.VesselID, "role", issue.Role, "error", err)
		return
	}

	telemetry.TicketsCreatedTotal.WithLabelValues(string(issue.Severity)).Inc()
	r.logger.Info("ticket created", "request_id", requestID, "tracker_key", rec.TrackerKey, "vessel_id", issue.VesselID, "role", issue.Role)
}
