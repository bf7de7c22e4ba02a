// Package app wires fleetwatch's full dependency graph and runs the
// selected mode, mirroring the teacher's internal/app.Run composition
// root (config -> infra -> domain wiring -> mode dispatch).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/fleetwatch/internal/auth"
	"github.com/wisbric/fleetwatch/internal/config"
	"github.com/wisbric/fleetwatch/internal/dashboard"
	"github.com/wisbric/fleetwatch/internal/httpserver"
	"github.com/wisbric/fleetwatch/internal/monitor"
	"github.com/wisbric/fleetwatch/internal/platform"
	"github.com/wisbric/fleetwatch/internal/store"
	"github.com/wisbric/fleetwatch/internal/telemetry"
	"github.com/wisbric/fleetwatch/pkg/alertmgr"
	"github.com/wisbric/fleetwatch/pkg/approval"
	"github.com/wisbric/fleetwatch/pkg/chatops"
	"github.com/wisbric/fleetwatch/pkg/collector"
	"github.com/wisbric/fleetwatch/pkg/runlog"
	"github.com/wisbric/fleetwatch/pkg/scheduler"
	"github.com/wisbric/fleetwatch/pkg/sla"
	"github.com/wisbric/fleetwatch/pkg/ticket"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// Run is the main application entry point. It reads infrastructure
// connections from cfg and dispatches to the selected mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting fleetwatch", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if cfg.Mode == "migrate" {
		if err := store.Migrate(ctx, pool, cfg.DatabaseURL, cfg.MigrationsDir, cfg.BackupDir); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("migrations applied")
		return nil
	}

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runShared(ctx, cfg, logger, pool, rdb, metricsReg, false)
	case "worker":
		return runShared(ctx, cfg, logger, pool, rdb, metricsReg, true)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// runShared builds the complete dependency graph and serves the HTTP
// API. api and worker modes share this graph because approval.Workflow
// keeps pending requests in memory: the chatops webhook handler that
// decides a request and the monitoring pipeline that submitted it must
// be the same process. The only difference between modes is that
// worker additionally drives the Daily Scheduler's automatic tick loop;
// api relies solely on the dashboard's manual trigger.
func runShared(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, runScheduler bool) error {
	vessels := make(map[string]*vessel.Vessel, len(cfg.Vessels))
	vesselConns := make(map[string]vessel.Connection, len(cfg.Vessels))
	for i := range cfg.Vessels {
		v := cfg.Vessels[i]
		vessels[v.ID] = &v
		vesselConns[v.ID] = v.Connection
	}

	slaParams := sla.DefaultParameters
	slaParams.UptimeThresholdPercentage = cfg.SLAUptimeThreshold
	slaParams.DowntimeAlertThresholdDays = cfg.DowntimeAlertDays
	slaParams.MonitoringWindowHours = cfg.MonitoringWindowHours

	slaStore := sla.NewPGStore(pool)
	slaAnalyzer := sla.New(slaParams, slaStore, logger)
	if err := slaAnalyzer.LoadCache(ctx); err != nil {
		return fmt.Errorf("loading SLA violation cache: %w", err)
	}

	alertStore := alertmgr.NewPGStore(pool)
	alerts := alertmgr.New(alertStore, cfg.DowntimeAlertDays, logger)
	if err := alerts.LoadLedger(ctx); err != nil {
		return fmt.Errorf("loading alert ledger: %w", err)
	}

	var tracker ticket.Tracker
	if cfg.JiraConfigured() {
		tracker = ticket.NewJiraTracker(ticket.JiraConfig{
			URL:        cfg.JiraURL,
			Username:   cfg.JiraUsername,
			APIToken:   cfg.JiraAPIToken,
			ProjectKey: cfg.JiraProjectKey,
			IssueType:  cfg.JiraIssueType,
		})
		logger.Info("jira tracker configured", "project", cfg.JiraProjectKey)
	} else {
		tracker = ticket.NewNoopTracker(logger)
		logger.Info("jira tracker disabled (JIRA_URL not set), using no-op tracker")
	}
	ticketStore := ticket.NewPGStore(pool)
	tickets := ticket.New(ticketStore, tracker, ticket.DefaultDuplicateRules)

	actionURL := fmt.Sprintf("http://%s/api/chatops/mattermost/interactions", cfg.ListenAddr())
	notifier := chatops.NewMultiNotifier(
		chatops.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, logger),
		chatops.NewMattermostNotifier(cfg.MattermostURL, cfg.MattermostBotToken, cfg.MattermostDefaultChannelID, actionURL, logger),
	)

	approvalStore := approval.NewPGStore(pool)
	approvalCfg := approval.DefaultConfig
	approvalCfg.DefaultTimeout = cfg.ApprovalTimeout
	approvalCfg.MaxPending = cfg.ApprovalMaxPending
	approvals := approval.New(approvalCfg, approvalStore, notifier, rdb, logger)
	if err := approvals.LoadPending(ctx); err != nil {
		return fmt.Errorf("loading pending approval requests: %w", err)
	}

	runStore := runlog.NewPGStore(pool)
	runs := runlog.NewLogger(runStore, logger)
	runs.Start(ctx)
	defer runs.Close()

	collectorCfg := collector.DefaultConfig
	collectorCfg.WindowHours = cfg.MonitoringWindowHours
	runner := monitor.New(vessels, collectorCfg, slaAnalyzer, alerts, tickets, approvals, runs, cfg.ApprovalTimeout, logger)

	sched := scheduler.New(scheduler.Config{
		Hour:     cfg.SchedulerHour,
		Minute:   cfg.SchedulerMinute,
		Location: schedulerLocation(cfg.SchedulerTimezone, logger),
	}, runner.Job, logger)

	sessionSecret := cfg.AuthTokenSecret
	if sessionSecret == "" {
		sessionSecret = auth.GenerateDevSecret()
		logger.Info("session: using auto-generated dev secret (set AUTH_TOKEN_SECRET in production)")
	}
	sessionMgr, err := auth.NewSessionManager(sessionSecret, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}

	srv := httpserver.NewServer(cfg, logger, pool, rdb, metricsReg, sessionMgr)

	dashboardHandler := dashboard.New(vesselConns, slaStore, runStore, ticketStore, approvals, sched, logger)
	srv.APIRouter.Mount("/dashboard", dashboardHandler.Routes())

	chatopsHandler := chatops.NewHandler(approvals, logger, cfg.SlackSigningSecret, cfg.MattermostWebhookSecret)
	srv.Router.Mount("/api/chatops", chatopsHandler.Routes())

	if runScheduler {
		go sched.Run(ctx)
		logger.Info("daily scheduler started", "hour", cfg.SchedulerHour, "minute", cfg.SchedulerMinute, "timezone", cfg.SchedulerTimezone)
		go runRetentionLoop(ctx, pool, runStore, cfg.RetentionDays, logger)
	}

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr(), "mode", cfg.Mode)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "mode", cfg.Mode)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// retentionInterval matches spec.md §4.8's daily retention sweep cadence.
const retentionInterval = 24 * time.Hour

// runRetentionLoop applies the Durable Store's retention policy once at
// startup and then once a day, cleaning up both the general store
// tables and the Run Logger's scheduler_runs history. Only the worker
// runs this, the same way only the worker drives the Daily Scheduler.
func runRetentionLoop(ctx context.Context, pool *pgxpool.Pool, runStore runlog.Store, retentionDays int, logger *slog.Logger) {
	applyRetention := func() {
		result, err := store.Cleanup(ctx, pool, retentionDays)
		if err != nil {
			logger.Error("retention cleanup failed", "error", err)
		} else {
			logger.Info("retention cleanup completed",
				"component_history", result.ComponentHistory,
				"violations", result.Violations,
				"alerts", result.Alerts,
				"tickets", result.Tickets,
			)
		}

		n, err := runlog.Retention(ctx, runStore, retentionDays)
		if err != nil {
			logger.Error("scheduler run retention failed", "error", err)
		} else if n > 0 {
			logger.Info("scheduler run retention completed", "runs_deleted", n)
		}
	}

	applyRetention()

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			applyRetention()
		}
	}
}

func schedulerLocation(tz string, logger *slog.Logger) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logger.Error("invalid scheduler timezone, falling back to UTC", "timezone", tz, "error", err)
		return time.UTC
	}
	return loc
}
