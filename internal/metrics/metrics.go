package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Evaluation cycle metrics
	EvalCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_eval_cycles_total",
			Help: "Total number of evaluation cycles run",
		},
		[]string{"origin", "status"}, // status: ok, failed
	)

	EvalCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_eval_cycle_duration_seconds",
			Help:    "Wall time of one evaluation cycle",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"origin"},
	)

	RulesEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_rules_evaluated_total",
			Help: "Total number of rules evaluated across cycles",
		},
		[]string{"origin"},
	)

	RulesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_rules_skipped_total",
			Help: "Total number of rules skipped during evaluation",
		},
		[]string{"origin", "reason"}, // reason: unknown_signal, bad_operator, read_failed, empty_window
	)

	// Alert event metrics
	AlertEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_alert_events_total",
			Help: "Total number of alert event transitions",
		},
		[]string{"origin", "transition"}, // transition: created, updated, closed
	)

	OpenAlertEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetwatch_open_alert_events",
			Help: "Currently open alert events after the latest cycle",
		},
		[]string{"origin"},
	)

	// Incident metrics
	IncidentCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_incident_cycles_total",
			Help: "Total number of incident cycles run",
		},
		[]string{"status"}, // status: ok, failed
	)

	IncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_incidents_total",
			Help: "Total number of incident transitions",
		},
		[]string{"transition"}, // transition: created, resolved
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_notifications_total",
			Help: "Total number of incident notification dispatches",
		},
		[]string{"status"}, // status: success, failed
	)

	NotificationPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_notification_publish_duration_seconds",
			Help:    "Time taken to publish an incident notice batch",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	NotificationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_notification_retries_total",
			Help: "Total number of notification publish retries",
		},
	)

	// Ingest metrics
	SamplesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_samples_ingested_total",
			Help: "Total number of time-series samples accepted or rejected",
		},
		[]string{"status"}, // status: accepted, rejected
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
