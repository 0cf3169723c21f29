package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry metrics
	PoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zquote_pool_count",
		Help: "Total number of pool snapshots in the registry",
	})

	PoolUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zquote_pool_updates_total",
		Help: "Total number of pool snapshot updates received",
	})

	SaleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zquote_sale_count",
		Help: "Total number of sale snapshots in the registry",
	})

	SaleUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zquote_sale_updates_total",
		Help: "Total number of sale snapshot updates received",
	})

	ReadyPoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zquote_ready_pool_count",
		Help: "Number of pools ready for quoting",
	})

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zquote_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"kind", "swap_mode", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zquote_quote_duration_seconds",
			Help:    "Quote request duration in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"kind"},
	)

	CurveSearchIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zquote_curve_search_iterations",
		Help:    "Binary search iterations per curve inverse lookup",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30, 40, 50},
	})

	PriceImpact = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zquote_price_impact_percent",
			Help:    "Estimated price impact in percent",
			Buckets: []float64{0, 0.1, 0.5, 1, 3, 5, 10, 50, 100},
		},
		[]string{"severity"},
	)

	// Cache metrics
	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zquote_quote_cache_hits_total",
		Help: "Total number of quote cache hits",
	})

	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zquote_quote_cache_misses_total",
		Help: "Total number of quote cache misses",
	})

	QuoteCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zquote_quote_cache_entries",
		Help: "Current number of live entries across both cache pools",
	})

	// Persistence metrics
	SnapshotSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zquote_snapshot_saves_total",
			Help: "Total number of snapshots persisted",
		},
		[]string{"bucket", "status"},
	)

	SnapshotLoadDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zquote_snapshot_load_duration_seconds",
		Help: "Duration of the last snapshot load from disk",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zquote_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zquote_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
