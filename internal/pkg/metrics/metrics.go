package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cityview",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cityview",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// View session metrics
	ViewSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "views",
		Name:      "selections_total",
		Help:      "Total view selections across all sessions",
	}, []string{"view"})

	FetchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "views",
		Name:      "fetches_started_total",
		Help:      "Point-of-interest fetches started, by reason (select, prefetch)",
	}, []string{"view", "reason"})

	FetchesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "views",
		Name:      "fetches_completed_total",
		Help:      "Point-of-interest fetches completed, by outcome status",
	}, []string{"view", "status"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cityview",
		Subsystem: "views",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of point-of-interest fetches",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"view"})

	StaleResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "views",
		Name:      "stale_results_total",
		Help:      "Fetch results that arrived after the user navigated to another view",
	}, []string{"view"})

	DuplicateFetchesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "views",
		Name:      "duplicate_fetches_skipped_total",
		Help:      "Selections that found a fetch already in flight for the view",
	}, []string{"view"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cityview",
		Subsystem: "ws",
		Name:      "active_sessions",
		Help:      "Current number of interactive view sessions",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cityview",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Overpass client metrics
	OverpassRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "overpass",
		Name:      "requests_total",
		Help:      "Overpass interpreter requests, by outcome",
	}, []string{"outcome"})

	OverpassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cityview",
		Subsystem: "overpass",
		Name:      "request_duration_seconds",
		Help:      "Overpass interpreter request latency",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	MalformedElements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "overpass",
		Name:      "malformed_elements_total",
		Help:      "Overpass elements dropped because they lacked an id or position",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityview",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// Route pattern keeps label cardinality bounded (/v1/views/:id).
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
