package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MediaTransferMetrics counts remote media store operations.
type MediaTransferMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewMediaTransferMetrics registers the transfer metrics on the provided registerer.
func NewMediaTransferMetrics(reg prometheus.Registerer) *MediaTransferMetrics {
	if reg == nil {
		return &MediaTransferMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_transfer_duration_seconds",
		Help:    "Duration of remote media store operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "op"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_transfer_total",
		Help: "Remote media store operations by outcome.",
	}, []string{"driver", "op", "outcome"})
	reg.MustRegister(duration, total)
	return &MediaTransferMetrics{duration: duration, total: total}
}

// Observe records one operation. A zero duration skips the histogram.
func (m *MediaTransferMetrics) Observe(driver, op, outcome string, d time.Duration) {
	if m == nil || m.total == nil {
		return
	}
	driver = normalizeLabel(driver)
	m.total.WithLabelValues(driver, op, outcome).Inc()
	if d > 0 {
		m.duration.WithLabelValues(driver, op).Observe(d.Seconds())
	}
}
