package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "garage_occupancy"

// Cycle outcomes, used as the "outcome" label of IngestCycles.
const (
	OutcomeSuccess    = "success"
	OutcomeFetchError = "fetch_error"
	OutcomeParseError = "parse_error"
)

// Metrics holds the Prometheus collectors for ingestion, polling and publishing.
type Metrics struct {
	IngestCycles       *prometheus.CounterVec // labels: outcome={success,fetch_error,parse_error}
	IngestDuration     prometheus.Histogram
	UpstreamDuration   prometheus.Histogram
	GaragesReported    prometheus.Gauge
	GaragesUnknown     prometheus.Gauge
	PollerRunning      prometheus.Gauge
	SnapshotsPublished prometheus.Counter
	PublishErrors      prometheus.Counter
	SnapshotRequests   *prometheus.CounterVec // labels: code
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.IngestCycles,
		m.IngestDuration,
		m.UpstreamDuration,
		m.GaragesReported,
		m.GaragesUnknown,
		m.PollerRunning,
		m.SnapshotsPublished,
		m.PublishErrors,
		m.SnapshotRequests,
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
		IngestCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_cycles_total",
			Help:      "Ingestion cycles by terminal outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete fetch and parse cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		UpstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of the status page request, including body read.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		GaragesReported: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "garages_reported",
			Help:      "Catalog garages found on the status page in the last successful cycle.",
		}),
		GaragesUnknown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "garages_unknown",
			Help:      "Garages with undetermined open spots in the last successful cycle.",
		}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_running",
			Help:      "1 while the background poller is active, 0 otherwise.",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Snapshots handed to the publisher successfully.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Snapshot publish failures.",
		}),
		SnapshotRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_requests_total",
			Help:      "Snapshot endpoint responses by status code.",
		}, []string{"code"}),
	}
}
