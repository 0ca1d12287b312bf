// Package metrics defines the gateway's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_dispatch_total",
			Help: "Delivery attempts by driver and resulting status",
		},
		[]string{"driver", "status"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadgate_dispatch_duration_seconds",
			Help:    "Duration of driver delivery calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)

	DispatchSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_dispatch_skipped_total",
			Help: "Batch leads skipped by the eligibility gate",
		},
		[]string{"driver"},
	)

	// Authentication gate
	AuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_auth_rejections_total",
			Help: "Requests rejected by the authentication gate",
		},
		[]string{"reason"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"client_id"},
	)

	// Event bus
	BusHandlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_bus_handler_failures_total",
			Help: "Subscriber errors and panics by event type",
		},
		[]string{"event_type"},
	)

	// Status store
	StatusWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_status_writes_total",
			Help: "Request status upserts by status",
		},
		[]string{"status"},
	)

	// Relay and feed
	RelayPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadgate_relay_publish_errors_total",
			Help: "Outcome messages that could not be published",
		},
	)

	FeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadgate_feed_clients",
			Help: "Connected live feed clients",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
