// Package dashboard exposes the read-only fleet dashboard surface
// (spec.md §6's "Dashboard HTTP surface") plus the scheduler manual
// trigger. It is a composition-root handler, grounded on the teacher's
// pkg/incident and pkg/alert handler.go files (a Handler struct closing
// over the domain stores/workflows it needs, a Routes() chi.Router,
// DecodeAndValidate/Respond/RespondError from internal/httpserver), since
// the fleet-overview and vessel-detail views aggregate across several
// domain packages rather than belonging to any single one of them.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/internal/httpserver"
	"github.com/wisbric/fleetwatch/pkg/approval"
	"github.com/wisbric/fleetwatch/pkg/runlog"
	"github.com/wisbric/fleetwatch/pkg/sla"
	"github.com/wisbric/fleetwatch/pkg/ticket"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// Scheduler is the subset of pkg/scheduler.Scheduler the dashboard needs.
type Scheduler interface {
	RunNow(ctx context.Context) error
	IsRunning() bool
}

// Handler serves the dashboard's read-only fleet views and the manual
// scheduler trigger.
type Handler struct {
	vessels     map[string]vessel.Connection
	slaStore    *sla.PGStore
	runStore    *runlog.PGStore
	ticketStore *ticket.PGStore
	approvals   *approval.Workflow
	scheduler   Scheduler
	logger      *slog.Logger
}

// New creates a dashboard Handler. vessels is keyed by vessel ID.
func New(vessels map[string]vessel.Connection, slaStore *sla.PGStore, runStore *runlog.PGStore, ticketStore *ticket.PGStore, approvals *approval.Workflow, scheduler Scheduler, logger *slog.Logger) *Handler {
	return &Handler{
		vessels:     vessels,
		slaStore:    slaStore,
		runStore:    runStore,
		ticketStore: ticketStore,
		approvals:   approvals,
		scheduler:   scheduler,
		logger:      logger,
	}
}

// Routes mounts the dashboard's JSON API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/fleet-overview", h.handleFleetOverview)
	r.Get("/vessel/{id}/details", h.handleVesselDetails)
	r.Get("/sla-violations", h.handleSLAViolations)
	r.Get("/scheduler-runs", h.handleSchedulerRuns)
	r.Get("/scheduler-runs/active", h.handleSchedulerRunsActive)
	r.Get("/scheduler-runs/{id}", h.handleSchedulerRunDetails)
	r.Get("/scheduler/status", h.handleSchedulerStatus)
	r.Post("/scheduler/trigger", h.handleSchedulerTrigger)
	r.Get("/approval/stats", h.handleApprovalStats)
	return r
}

// fleetOverviewResponse mirrors original_source's get_fleet_summary.
type fleetOverviewResponse struct {
	VesselCount          int     `json:"vessel_count"`
	OpenViolationCount   int     `json:"open_violation_count"`
	SLAComplianceRate    float64 `json:"sla_compliance_rate_percent"`
	SchedulerSuccessRate float64 `json:"scheduler_success_rate_percent"`
	SchedulerRunningNow  bool    `json:"scheduler_running_now"`
}

func (h *Handler) handleFleetOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	violations, err := h.slaStore.OpenViolations(ctx)
	if err != nil {
		h.logger.Error("fleet-overview: loading open violations", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to load SLA violations")
		return
	}

	stats, err := h.runStore.Statistics(ctx, 7)
	if err != nil {
		h.logger.Error("fleet-overview: loading scheduler statistics", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to load scheduler statistics")
		return
	}

	vesselComponents := len(h.vessels) * len(vessel.Roles)
	complianceRate := 100.0
	if vesselComponents > 0 {
		complianceRate = 100.0 * float64(vesselComponents-len(violations)) / float64(vesselComponents)
	}

	httpserver.Respond(w, http.StatusOK, fleetOverviewResponse{
		VesselCount:          len(h.vessels),
		OpenViolationCount:   len(violations),
		SLAComplianceRate:    complianceRate,
		SchedulerSuccessRate: stats.SuccessRatePercent,
		SchedulerRunningNow:  h.scheduler.IsRunning(),
	})
}

// vesselDetailsResponse reports one vessel's ID, its open violations, and
// all of its tickets (any lifecycle state), newest first.
type vesselDetailsResponse struct {
	VesselID   string                `json:"vessel_id"`
	Violations []sla.ViolationRecord `json:"open_violations"`
	Tickets    []ticket.Record       `json:"tickets"`
}

func (h *Handler) handleVesselDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.vessels[id]; !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "unknown vessel id")
		return
	}

	ctx := r.Context()

	allViolations, err := h.slaStore.OpenViolations(ctx)
	if err != nil {
		h.logger.Error("vessel-details: loading open violations", "vessel_id", id, "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to load SLA violations")
		return
	}
	violations := make([]sla.ViolationRecord, 0)
	for _, v := range allViolations {
		if v.VesselID == id {
			violations = append(violations, v)
		}
	}

	tickets, err := h.ticketStore.TicketsByVessel(ctx, id)
	if err != nil {
		h.logger.Error("vessel-details: loading tickets", "vessel_id", id, "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to load tickets")
		return
	}

	httpserver.Respond(w, http.StatusOK, vesselDetailsResponse{VesselID: id, Violations: violations, Tickets: tickets})
}

func (h *Handler) handleSLAViolations(w http.ResponseWriter, r *http.Request) {
	violations, err := h.slaStore.OpenViolations(r.Context())
	if err != nil {
		h.logger.Error("sla-violations: loading open violations", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to load SLA violations")
		return
	}
	httpserver.Respond(w, http.StatusOK, violations)
}

func (h *Handler) handleSchedulerRuns(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	runs, err := h.runStore.RecentRuns(r.Context(), params.PageSize)
	if err != nil {
		h.logger.Error("scheduler-runs: loading recent runs", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to load scheduler runs")
		return
	}
	httpserver.Respond(w, http.StatusOK, runs)
}

func (h *Handler) handleSchedulerRunsActive(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runStore.RecentRuns(r.Context(), 50)
	if err != nil {
		h.logger.Error("scheduler-runs/active: loading recent runs", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to load scheduler runs")
		return
	}
	active := make([]runlog.Run, 0)
	for _, run := range runs {
		if run.Status == runlog.StatusRunning {
			active = append(active, run)
		}
	}
	httpserver.Respond(w, http.StatusOK, active)
}

func (h *Handler) handleSchedulerRunDetails(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid run id")
		return
	}

	details, err := h.runStore.RunDetails(r.Context(), id)
	if err != nil {
		h.logger.Error("scheduler-runs/{id}: loading run details", "run_id", id, "error", err)
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "scheduler run not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, details)
}

func (h *Handler) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runStore.Statistics(r.Context(), 30)
	if err != nil {
		h.logger.Error("scheduler/status: loading statistics", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to load scheduler statistics")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"running_now": h.scheduler.IsRunning(),
		"statistics":  stats,
	})
}

func (h *Handler) handleSchedulerTrigger(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	go func() {
		defer cancel()
		if err := h.scheduler.RunNow(ctx); err != nil {
			h.logger.Error("manual scheduler trigger failed", "error", err)
		}
	}()
	httpserver.Respond(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (h *Handler) handleApprovalStats(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, h.approvals.Stats())
}
