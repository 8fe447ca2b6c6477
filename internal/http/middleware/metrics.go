package middleware

// Prometheus instrumentation for HTTP traffic. The path label is the
// registered Gin route; requests that matched no route share the "unmatched"
// label because raw URLs carry user ids (phone numbers) and are unbounded.

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedPath = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Event replies and read-API pages are small.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(128, 2, 10), // 128B..64KiB
		},
		[]string{"method", "path"},
	)

	// webhookEvents counts channel deliveries by event kind and whether the
	// stored reply was replayed.
	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Messaging channel events received, by kind and replay.",
		},
		[]string{"kind", "replayed", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, webhookEvents)
}

// Metrics instruments every request. Routes under ".../events/<kind>" are
// also counted in webhook_events_total; a response carrying
// "Event-Replayed: true" counts as a replay.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}

		if kind, ok := eventKind(path); ok {
			replayed := strconv.FormatBool(c.Writer.Header().Get("Event-Replayed") == "true")
			webhookEvents.WithLabelValues(kind, replayed, status).Inc()
		}
	}
}

// eventKind extracts <kind> from a route ending in /events/<kind>.
func eventKind(route string) (string, bool) {
	i := strings.LastIndex(route, "/events/")
	if i < 0 {
		return "", false
	}
	kind := route[i+len("/events/"):]
	if kind == "" || strings.ContainsAny(kind, "/:*") {
		return "", false
	}
	return kind, true
}
