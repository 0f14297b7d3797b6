package middleware

import (
	"strconv"
	"time"

	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware collects HTTP metrics for Prometheus.
// Paths are labelled with the matched route template to keep cardinality bounded.
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.HTTPActiveConnections.WithLabelValues(method, path).Inc()
		defer m.HTTPActiveConnections.WithLabelValues(method, path).Dec()

		if c.Request.ContentLength > 0 {
			m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(c.Request.ContentLength))
		}

		startTime := time.Now()

		c.Next()

		duration := time.Since(startTime).Seconds()
		// Numeric status so Grafana queries like status=~"5.." match
		statusStr := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		if size := c.Writer.Size(); size > 0 {
			m.HTTPResponseSize.WithLabelValues(method, path, statusStr).Observe(float64(size))
		}

		if c.Writer.Status() >= 500 {
			RecordError("http_5xx", path)
		}
	}
}

// RecordRateLimitExceeded counts a rejected request
func RecordRateLimitExceeded(endpoint string) {
	metrics.Get().RateLimitExceededTotal.WithLabelValues(endpoint).Inc()
}

// RecordError counts an error by type
func RecordError(errorType, endpoint string) {
	metrics.Get().ErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}
