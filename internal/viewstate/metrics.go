package viewstate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts intent outcomes and discarded loads. A nil *Metrics is a
// no-op.
type Metrics struct {
	intents *prometheus.CounterVec
	stales  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clutchdesk",
			Name:      "intents_total",
			Help:      "Controller intents by outcome.",
		}, []string{"controller", "intent", "outcome"}),
		stales: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clutchdesk",
			Name:      "stale_loads_total",
			Help:      "Load responses dropped because a newer load was issued.",
		}, []string{"controller"}),
	}
}

func (m *Metrics) intent(controller, intent string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.intents.WithLabelValues(controller, intent, outcome).Inc()
}

func (m *Metrics) stale(controller string) {
	if m == nil {
		return
	}
	m.stales.WithLabelValues(controller).Inc()
}
