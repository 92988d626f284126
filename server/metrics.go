package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the identity endpoint's Prometheus collectors
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Logins          *prometheus.CounterVec
	Registrations   prometheus.Counter
	Refreshes       *prometheus.CounterVec
	RateLimited     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_identity_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shop_identity_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_identity_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "shop_identity_registrations_total",
			Help: "Accounts created through registration",
		}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_identity_refreshes_total",
			Help: "Token refreshes by outcome",
		}, []string{"outcome"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "shop_identity_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}),
	}
}

func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
