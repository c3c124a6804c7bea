package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the gateway collectors on reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clutchdesk",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Gateway requests by method, resource and outcome.",
		}, []string{"method", "resource", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clutchdesk",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "resource"}),
	}
}

func (m *Metrics) observe(method, resource string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if kind := KindOf(err); kind != 0 {
		outcome = kind.String()
	}
	m.requests.WithLabelValues(method, resource, outcome).Inc()
	m.duration.WithLabelValues(method, resource).Observe(time.Since(started).Seconds())
}
