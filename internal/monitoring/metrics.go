// Package monitoring holds the Prometheus metrics and the HTTP
// middleware that records them.
package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// StoreLatency records graph store operation latency by operation name.
	StoreLatency *prometheus.HistogramVec

	// EmbedLatency records embedding provider call latency.
	EmbedLatency prometheus.Histogram

	// RecallResults counts recall results returned, by engine.
	RecallResults *prometheus.CounterVec

	// ScanCacheHitsTotal and ScanCacheMissesTotal track the entanglement
	// scan cache.
	ScanCacheHitsTotal   prometheus.Counter
	ScanCacheMissesTotal prometheus.Counter

	// SyncTargetsTotal counts sync engine target compilations, by outcome.
	SyncTargetsTotal *prometheus.CounterVec
)

var initMetricsOnce sync.Once

// InitMetrics registers all Prometheus metrics. Safe to call multiple
// times; only the first call registers.
func InitMetrics() {
	initMetricsOnce.Do(initMetricsInner)
}

func initMetricsInner() {
	f := promauto.With(prometheus.DefaultRegisterer)

	httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_graph_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forge_graph_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	StoreLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forge_graph_store_latency_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	EmbedLatency = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_graph_embed_latency_seconds",
		Help:    "Embedding provider call latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	RecallResults = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_graph_recall_results_total",
			Help: "Total recall results returned",
		},
		[]string{"engine"},
	)

	ScanCacheHitsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "forge_graph_scan_cache_hits_total",
		Help: "Total entanglement scan cache hits",
	})

	ScanCacheMissesTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "forge_graph_scan_cache_misses_total",
		Help: "Total entanglement scan cache misses",
	})

	SyncTargetsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_graph_sync_targets_total",
			Help: "Total sync engine target compilations",
		},
		[]string{"outcome"},
	)
}

// MetricsMiddleware records HTTP request metrics for Prometheus.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpRequestsTotal == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		httpRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method).Observe(duration.Seconds())
	}
}
