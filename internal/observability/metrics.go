package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast refresh loop and the point query engine.
type Metrics struct {
	RefreshesTotal  prometheus.Counter
	RefreshFailures prometheus.Counter
	RefreshRunning  prometheus.Gauge
	RefreshDuration prometheus.Histogram

	// Ingestion metrics.
	ActiveSource    *prometheus.GaugeVec // labels: source={live,mirror,demo}; 1 for the active one
	SourceFallbacks *prometheus.CounterVec
	TimelineSteps   prometheus.Gauge
	StoreAge        prometheus.Gauge // unix seconds of the last successful swap

	// Query metrics.
	PointQueries  *prometheus.CounterVec // labels: kind={arrival,duration,warning,wind,approach}
	MemoCache     *prometheus.CounterVec // labels: result={hit,miss}
	BatchDuration prometheus.Histogram
	StaleBatches  prometheus.Counter

	// Alerting metrics.
	AlertsPublished prometheus.Counter
	AlertFailures   prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RefreshesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hurricane_risk",
			Name:      "refreshes_total",
			Help:      "Total forecast refresh cycles completed.",
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hurricane_risk",
			Name:      "refresh_failures_total",
			Help:      "Refresh cycles that failed across every ingestion source.",
		}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hurricane_risk",
			Name:      "refresh_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hurricane_risk",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete ingest-swap-reassess cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ActiveSource: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hurricane_risk",
			Name:      "active_source",
			Help:      "1 for the ingestion source that produced the active store.",
		}, []string{"source"}),
		SourceFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hurricane_risk",
			Name:      "source_fallbacks_total",
			Help:      "Failures per ingestion source that forced a fallback.",
		}, []string{"source"}),
		TimelineSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hurricane_risk",
			Name:      "timeline_steps",
			Help:      "Number of advisory valid-times in the active store.",
		}),
		StoreAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hurricane_risk",
			Name:      "store_ingested_timestamp_seconds",
			Help:      "Unix time of the last successful store swap.",
		}),
		PointQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hurricane_risk",
			Name:      "point_queries_total",
			Help:      "Point queries served by kind.",
		}, []string{"kind"}),
		MemoCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hurricane_risk",
			Name:      "memo_cache_total",
			Help:      "Per-batch polygon memo cache lookups by result.",
		}, []string{"result"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hurricane_risk",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a multi-point assessment batch.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		StaleBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hurricane_risk",
			Name:      "stale_batches_total",
			Help:      "Batches discarded because the snapshot changed mid-flight.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hurricane_risk",
			Name:      "alerts_published_total",
			Help:      "Advisory-change alerts published to the sink topic.",
		}),
		AlertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hurricane_risk",
			Name:      "alert_failures_total",
			Help:      "Alert publish attempts that failed.",
		}),
	}

	prometheus.MustRegister(
		m.RefreshesTotal,
		m.RefreshFailures,
		m.RefreshRunning,
		m.RefreshDuration,
		m.ActiveSource,
		m.SourceFallbacks,
		m.TimelineSteps,
		m.StoreAge,
		m.PointQueries,
		m.MemoCache,
		m.BatchDuration,
		m.StaleBatches,
		m.AlertsPublished,
		m.AlertFailures,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RefreshesTotal:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hurricane_risk", Name: "refreshes_total"}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hurricane_risk", Name: "refresh_failures_total"}),
		RefreshRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hurricane_risk", Name: "refresh_running"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hurricane_risk", Name: "refresh_duration_seconds"}),
		ActiveSource:    prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "hurricane_risk", Name: "active_source"}, []string{"source"}),
		SourceFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hurricane_risk", Name: "source_fallbacks_total"}, []string{"source"}),
		TimelineSteps:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hurricane_risk", Name: "timeline_steps"}),
		StoreAge:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hurricane_risk", Name: "store_ingested_timestamp_seconds"}),
		PointQueries:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hurricane_risk", Name: "point_queries_total"}, []string{"kind"}),
		MemoCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hurricane_risk", Name: "memo_cache_total"}, []string{"result"}),
		BatchDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hurricane_risk", Name: "batch_duration_seconds"}),
		StaleBatches:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hurricane_risk", Name: "stale_batches_total"}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hurricane_risk", Name: "alerts_published_total"}),
		AlertFailures:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hurricane_risk", Name: "alert_failures_total"}),
	}
}
