package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for YieldPricer.
type Metrics struct {
	// --- Quotes ---
	QuotesComputed *prometheus.CounterVec
	QuoteErrors    *prometheus.CounterVec
	QuoteDuration  *prometheus.HistogramVec

	// --- Pool snapshots ---
	SnapshotsApplied    *prometheus.CounterVec
	SnapshotParseErrors prometheus.Counter
	PoolsTracked        prometheus.Gauge
	SnapshotAge         *prometheus.GaugeVec

	// --- Outbound publishing ---
	QuotesPublished prometheus.Counter
	PublishErrors   prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	quoteBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005,
	}

	return &Metrics{
		QuotesComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricer_quotes_computed_total",
			Help: "Quotes computed successfully",
		}, []string{"direction", "unit"}),

		QuoteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricer_quote_errors_total",
			Help: "Quotes rejected, by error kind",
		}, []string{"kind"}),

		QuoteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricer_quote_duration_seconds",
			Help:    "Time to price one quote request",
			Buckets: quoteBuckets,
		}, []string{"direction"}),

		SnapshotsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricer_pool_snapshots_applied_total",
			Help: "Pool state snapshots accepted into the registry",
		}, []string{"pool"}),

		SnapshotParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricer_pool_snapshot_parse_errors_total",
			Help: "Pool state payloads that failed to parse",
		}),

		PoolsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricer_pools_tracked",
			Help: "Pools currently held in the registry",
		}),

		SnapshotAge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricer_pool_snapshot_age_seconds",
			Help: "Age of the most recent snapshot per pool",
		}, []string{"pool"}),

		QuotesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricer_quotes_published_total",
			Help: "Computed quotes published to the outbound stream",
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricer_quote_publish_errors_total",
			Help: "Outbound quote publishes that failed",
		}),
	}
}
