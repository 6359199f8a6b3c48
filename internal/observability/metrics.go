package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation pipeline.
type Metrics struct {
	CyclesTotal         prometheus.Counter
	AggregationDuration prometheus.Histogram
	PollerRunning       prometheus.Gauge

	// Per-station fetch metrics.
	StationsFetched *prometheus.CounterVec // labels: outcome={success,error,failure}
	FetchBatchSize  prometheus.Histogram

	// Discovery metrics.
	DiscoveryProbes *prometheus.CounterVec // labels: outcome={found,missing}
	DiscoveryCache  *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.CyclesTotal,
		m.AggregationDuration,
		m.PollerRunning,
		m.StationsFetched,
		m.FetchBatchSize,
		m.DiscoveryProbes,
		m.DiscoveryCache,
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
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "station_agg",
			Name:      "cycles_total",
			Help:      "Total aggregation cycles executed.",
		}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "station_agg",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of a complete discover-fetch-map-select cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "station_agg",
			Name:      "poller_running",
			Help:      "1 when the polling loop is active, 0 when shut down.",
		}),
		StationsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "station_agg",
			Name:      "stations_fetched_total",
			Help:      "Station fetches by outcome: success, error (bad payload), failure (transport).",
		}, []string{"outcome"}),
		FetchBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "station_agg",
			Name:      "fetch_batch_size",
			Help:      "Number of stations fetched per aggregation cycle.",
			Buckets:   []float64{1, 2, 4, 8, 10, 20, 30, 50},
		}),
		DiscoveryProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "station_agg",
			Name:      "discovery_probes_total",
			Help:      "Station existence probes by outcome.",
		}, []string{"outcome"}),
		DiscoveryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "station_agg",
			Name:      "discovery_cache_total",
			Help:      "Discovery cache lookups by result.",
		}, []string{"result"}),
	}
}
