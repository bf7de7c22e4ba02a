package telemetry

import "github.com/prometheus/client_golang/prometheus"

var SchedulerRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "scheduler",
		Name:      "runs_total",
		Help:      "Total number of scheduler runs by terminal status.",
	},
	[]string{"status"},
)

var SchedulerRunDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "fleetwatch",
		Subsystem: "scheduler",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full fleet monitoring run in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	},
)

var VesselQueryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "fleetwatch",
		Subsystem: "collector",
		Name:      "vessel_query_duration_seconds",
		Help:      "Duration of a single vessel InfluxDB query in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"vessel_id"},
)

var VesselQueryFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "collector",
		Name:      "vessel_query_failures_total",
		Help:      "Total number of failed vessel InfluxDB queries, including retries.",
	},
	[]string{"vessel_id"},
)

var ViolationsOpenedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "sla",
		Name:      "violations_opened_total",
		Help:      "Total number of SLA violations opened.",
	},
	[]string{"role"},
)

var ViolationsClosedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "sla",
		Name:      "violations_closed_total",
		Help:      "Total number of SLA violations closed.",
	},
	[]string{"role"},
)

var AlertsOpenedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "alerts",
		Name:      "opened_total",
		Help:      "Total number of alerts opened, by kind and severity.",
	},
	[]string{"kind", "severity"},
)

var AlertsResolvedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "alerts",
		Name:      "resolved_total",
		Help:      "Total number of alerts auto-resolved on recovery.",
	},
	[]string{"kind"},
)

var TicketsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "tickets",
		Name:      "created_total",
		Help:      "Total number of tracker tickets created, by severity.",
	},
	[]string{"severity"},
)

var TicketsSuppressedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "tickets",
		Name:      "suppressed_total",
		Help:      "Total number of tickets suppressed by duplicate-prevention.",
	},
)

var ApprovalRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "approval",
		Name:      "requests_total",
		Help:      "Total number of approval requests by terminal outcome.",
	},
	[]string{"outcome"},
)

var ApprovalPendingGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "fleetwatch",
		Subsystem: "approval",
		Name:      "pending",
		Help:      "Current number of approval requests awaiting a decision.",
	},
)

var ChatopsNotificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Subsystem: "chatops",
		Name:      "notifications_total",
		Help:      "Total number of chat notifications sent, by provider and kind.",
	},
	[]string{"provider", "kind"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "fleetwatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of dashboard API requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// All returns every fleetwatch metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		SchedulerRunsTotal,
		SchedulerRunDuration,
		VesselQueryDuration,
		VesselQueryFailuresTotal,
		ViolationsOpenedTotal,
		ViolationsClosedTotal,
		AlertsOpenedTotal,
		AlertsResolvedTotal,
		TicketsCreatedTotal,
		TicketsSuppressedTotal,
		ApprovalRequestsTotal,
		ApprovalPendingGauge,
		ChatopsNotificationsTotal,
		HTTPRequestDuration,
	}
}
