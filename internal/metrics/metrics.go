package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     prometheus.CounterVec
	HTTPRequestDuration   prometheus.HistogramVec
	HTTPRequestSize       prometheus.HistogramVec
	HTTPResponseSize      prometheus.HistogramVec
	HTTPActiveConnections prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal   prometheus.CounterVec
	CacheMissesTotal prometheus.CounterVec

	// Rate limiting metrics
	RateLimitExceededTotal prometheus.CounterVec

	// Database metrics
	DatabaseConnectionsOpen prometheus.GaugeVec

	// Engine metrics
	ViewsTotal              prometheus.CounterVec
	PointsAwardedTotal      prometheus.CounterVec
	RewardsTotal            prometheus.CounterVec
	IdentityAttachTotal     prometheus.CounterVec
	RewardDeliveriesTotal   prometheus.CounterVec
	RewardDeliveryQueueSize prometheus.Gauge
	VideoUploadsTotal       prometheus.CounterVec
	EngineOpDuration        prometheus.HistogramVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			// HTTP metrics
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			// Cache metrics
			CacheHitsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),

			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of requests rejected by the rate limiter",
				},
				[]string{"endpoint"},
			),

			DatabaseConnectionsOpen: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "database_connections_open",
					Help: "Number of open database connections",
				},
				[]string{"state"},
			),

			// Engine metrics
			ViewsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "arb_views_total",
					Help: "Asset views recorded, split by first or repeat view",
				},
				[]string{"kind"},
			),
			PointsAwardedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "arb_points_awarded_total",
					Help: "Points awarded by source",
				},
				[]string{"source"},
			),
			RewardsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "arb_rewards_total",
					Help: "Completion reward outcomes",
				},
				[]string{"result"},
			),
			IdentityAttachTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "arb_identity_attach_total",
					Help: "Sessions attached to an identity",
				},
				[]string{"relinked"},
			),
			RewardDeliveriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "arb_reward_deliveries_total",
					Help: "Promo code delivery attempts by outcome",
				},
				[]string{"status"},
			),
			RewardDeliveryQueueSize: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "arb_reward_delivery_queue_size",
					Help: "Promo codes waiting for delivery",
				},
			),
			VideoUploadsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "arb_video_uploads_total",
					Help: "AR video uploads by outcome",
				},
				[]string{"status"},
			),
			EngineOpDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "arb_engine_operation_duration_seconds",
					Help:    "Progress engine operation latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"operation"},
			),

			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}
