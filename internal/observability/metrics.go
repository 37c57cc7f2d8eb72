// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Poll cycle metrics
	PollCycles       prometheus.Counter
	EventsEmitted    prometheus.Counter
	EventsDropped    *prometheus.CounterVec
	FetchErrors      *prometheus.CounterVec
	ForceChecks      prometheus.Counter
	WatchedAddresses prometheus.Gauge

	// Ledger metrics
	EventsApplied     prometheus.Counter
	ApplyLatency      prometheus.Histogram
	HistoryCleanupRun prometheus.Counter
	HistoryRemoved    prometheus.Counter

	// Alert metrics
	AlertsDispatched *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	SinkErrors       *prometheus.CounterVec

	// Remote client metrics
	RPCCallLatency *prometheus.HistogramVec

	// Storage metrics
	ArchiveBatchesStored prometheus.Counter
	ArchiveBatchErrors   prometheus.Counter

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ledgerwatch"
	}

	return &Metrics{
		// Poll cycle metrics
		PollCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "poll_cycles_total",
			Help:      "Total number of completed poll cycles",
		}),
		EventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "events_emitted_total",
			Help:      "Total number of transfer events emitted to consumers",
		}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "events_dropped_total",
			Help:      "Total number of raw records dropped by reason",
		}, []string{"reason"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "fetch_errors_total",
			Help:      "Total number of per-address fetch failures by kind",
		}, []string{"kind"}),
		ForceChecks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "force_checks_total",
			Help:      "Total number of manual force-check runs",
		}),
		WatchedAddresses: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "watched_addresses",
			Help:      "Number of currently watched addresses",
		}),

		// Ledger metrics
		EventsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_applied_total",
			Help:      "Total number of transfer events applied to the ledger",
		}),
		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "apply_duration_seconds",
			Help:      "Ledger apply duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		HistoryCleanupRun: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "history_cleanups_total",
			Help:      "Total number of history cleanup passes",
		}),
		HistoryRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "history_records_removed_total",
			Help:      "Total number of history records removed by cleanup",
		}),

		// Alert metrics
		AlertsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "dispatched_total",
			Help:      "Total number of alerts dispatched by type",
		}, []string{"type"}),
		AlertsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Total number of alerts suppressed by cooldown, by type",
		}, []string{"type"}),
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "sink_errors_total",
			Help:      "Total number of sink delivery failures by sink",
		}, []string{"sink"}),

		// Remote client metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "rpc_call_duration_seconds",
			Help:      "Remote RPC call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Storage metrics
		ArchiveBatchesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "archive_batches_stored_total",
			Help:      "Total number of transaction batches archived",
		}),
		ArchiveBatchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "archive_batch_errors_total",
			Help:      "Total number of failed archive batch inserts",
		}),

		// Health metrics
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last completed poll cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
