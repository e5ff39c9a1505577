package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "teetime"

var (
	BookingAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_attempts_total",
		Help:      "Booking attempts by final outcome.",
	}, []string{"outcome"})

	ReserveConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_reserve_conflicts_total",
		Help:      "Reserve calls rejected for lack of capacity.",
	})

	GatewayCapture = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_capture_seconds",
		Help:      "Payment gateway capture latency.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"provider", "status"})

	CommitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commit_retries_total",
		Help:      "Booking commit attempts after the first.",
	})

	ReconciliationsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliations_opened_total",
		Help:      "Reconciliation cases opened by reason.",
	}, []string{"reason"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Payment webhook events by provider, type and whether they changed state.",
	}, []string{"provider", "type", "applied"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HoldsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "holds_expired_total",
		Help:      "Holds released by the reaper after expiry.",
	})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_consumed_total",
		Help:      "Bus events handled by the consumers, by subject and result.",
	}, []string{"subject", "result"})
)

// ObserveCapture records one capture call.
func ObserveCapture(provider, status string, started time.Time) {
	GatewayCapture.WithLabelValues(provider, status).Observe(time.Since(started).Seconds())
}

// ObserveRequest records one finished HTTP request.
func ObserveRequest(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
