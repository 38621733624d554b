package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fwRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	fwRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "firewatch_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	fwReportsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_reports_submitted_total",
		Help: "Total reports submitted by kind.",
	}, []string{"kind"})

	fwClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_classifications_total",
		Help: "Total classification outcomes (complete, unavailable, discarded).",
	}, []string{"outcome"})

	fwTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_transitions_total",
		Help: "Total committed lifecycle transitions by event.",
	}, []string{"event"})

	fwDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_deliveries_total",
		Help: "Total notification deliveries by channel and outcome.",
	}, []string{"channel", "status"})

	fwAuditEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firewatch_audit_entries_total",
		Help: "Total audit chain entries appended.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fwRequestsTotal.WithLabelValues(method, path, status).Inc()
		fwRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordSubmission records an accepted report submission.
func RecordSubmission(kind string) {
	fwReportsSubmittedTotal.WithLabelValues(kind).Inc()
}

// RecordClassification records a classification pipeline outcome.
func RecordClassification(outcome string) {
	fwClassificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordTransition records a committed lifecycle transition.
func RecordTransition(event string) {
	fwTransitionsTotal.WithLabelValues(event).Inc()
}

// RecordDelivery records a notification delivery outcome.
func RecordDelivery(channel string, success bool) {
	if success {
		fwDeliveriesTotal.WithLabelValues(channel, "delivered").Inc()
	} else {
		fwDeliveriesTotal.WithLabelValues(channel, "failed").Inc()
	}
}

// RecordAuditAppend records an audit chain append.
func RecordAuditAppend() {
	fwAuditEntriesTotal.Inc()
}
