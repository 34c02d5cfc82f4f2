package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Tagging metrics
	ReviewsTaggedTotal    *prometheus.CounterVec
	TagBatchDuration      prometheus.Histogram
	TagBatchFailuresTotal prometheus.Counter

	// Analytics metrics
	AnalyticsRequestsTotal *prometheus.CounterVec
	AnalyticsFacetDuration *prometheus.HistogramVec
	AnalyticsCacheHits     prometheus.Counter
	AnalyticsCacheMisses   prometheus.Counter

	// Business metrics
	ReviewsCreated prometheus.Counter
}

var (
	metrics  *Metrics
	initOnce sync.Once
)

// Init initializes all Prometheus metrics. Safe for concurrent first use;
// promauto registration must run exactly once per process or it panics.
func Init() *Metrics {
	initOnce.Do(initMetrics)
	return metrics
}

func initMetrics() {
	metrics = &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		ReviewsTaggedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_tagged_total",
				Help: "Total number of reviews tagged, by provenance and outcome",
			},
			[]string{"method", "outcome"},
		),
		TagBatchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tag_batch_duration_seconds",
				Help:    "Auto-tag batch duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		TagBatchFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tag_batch_failures_total",
				Help: "Total number of per-record failures inside auto-tag batches",
			},
		),

		AnalyticsRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_requests_total",
				Help: "Total number of analytics report computations",
			},
			[]string{"outcome"},
		),
		AnalyticsFacetDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_facet_duration_seconds",
				Help:    "Per-facet aggregation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"facet"},
		),
		AnalyticsCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_cache_hits_total",
				Help: "Analytics report cache hits",
			},
		),
		AnalyticsCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_cache_misses_total",
				Help: "Analytics report cache misses",
			},
		),

		ReviewsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reviews_created_total",
				Help: "Total number of reviews submitted",
			},
		),
	}
}

// Get returns the initialized metrics, initializing them if needed
func Get() *Metrics {
	return Init()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware records HTTP metrics for each request
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()

		c.Next()

		m.HTTPRequestsInFlight.Dec()
		elapsed := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(elapsed)
	}
}
