package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics tracks admin API traffic.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewHTTPMetrics registers request metrics on the provided registerer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by status.",
	}, []string{"method", "route", "status"})
	reg.MustRegister(duration, total)
	return &HTTPMetrics{duration: duration, total: total}
}

func (m *HTTPMetrics) Observe(method, route, status string, d time.Duration) {
	if m == nil || m.total == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.total.WithLabelValues(method, route, status).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler exposes the gatherer in the Prometheus text and OpenMetrics formats.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
