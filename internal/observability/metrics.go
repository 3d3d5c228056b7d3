package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion, notification, and fusion paths.
type Metrics struct {
	FramesReceived *prometheus.CounterVec // labels: transport={mqtt,serial}
	FramesDropped  *prometheus.CounterVec // labels: transport={mqtt,serial}
	UpdatesApplied prometheus.Counter
	WorkerRunning  *prometheus.GaugeVec // labels: transport={mqtt,serial}

	// Notification metrics.
	Broadcasts           prometheus.Counter
	ObserversConnected   prometheus.Gauge
	ObserverSendFailures prometheus.Counter

	// Kafka export metrics.
	ExportsPublished prometheus.Counter
	ExportFailures   prometheus.Counter

	// External telemetry metrics.
	TelemetryRequests *prometheus.CounterVec   // labels: provider={weather,seismic}, outcome={success,error}
	TelemetryDuration *prometheus.HistogramVec // labels: provider={weather,seismic}
	TelemetryCache    *prometheus.CounterVec   // labels: provider, result={hit,miss}

	RiskAssessments *prometheus.CounterVec // labels: level={LOW,MEDIUM,HIGH}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FramesReceived,
		m.FramesDropped,
		m.UpdatesApplied,
		m.WorkerRunning,
		m.Broadcasts,
		m.ObserversConnected,
		m.ObserverSendFailures,
		m.ExportsPublished,
		m.ExportFailures,
		m.TelemetryRequests,
		m.TelemetryDuration,
		m.TelemetryCache,
		m.RiskAssessments,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "frames_received_total",
			Help:      "Total frames decoded successfully, by transport.",
		}, []string{"transport"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "frames_dropped_total",
			Help:      "Total malformed frames dropped, by transport.",
		}, []string{"transport"}),
		UpdatesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "updates_applied_total",
			Help:      "Total payloads merged into the sensor state.",
		}),
		WorkerRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "slope_monitor",
			Name:      "worker_running",
			Help:      "1 while an ingestion worker is active, by transport.",
		}, []string{"transport"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "broadcasts_total",
			Help:      "Total state notifications fanned out to observers.",
		}),
		ObserversConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slope_monitor",
			Name:      "observers_connected",
			Help:      "Currently registered live observers.",
		}),
		ObserverSendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "observer_send_failures_total",
			Help:      "Observer deliveries that failed and evicted the observer.",
		}),
		ExportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "exports_published_total",
			Help:      "Snapshots published to the Kafka export topic.",
		}),
		ExportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "export_failures_total",
			Help:      "Snapshot publishes that failed.",
		}),
		TelemetryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "telemetry_requests_total",
			Help:      "External telemetry requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		TelemetryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slope_monitor",
			Name:      "telemetry_request_duration_seconds",
			Help:      "External telemetry request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		TelemetryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "telemetry_cache_total",
			Help:      "Telemetry cache lookups by provider and result.",
		}, []string{"provider", "result"}),
		RiskAssessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slope_monitor",
			Name:      "risk_assessments_total",
			Help:      "Risk assessments served, by resulting level.",
		}, []string{"level"}),
	}
}
