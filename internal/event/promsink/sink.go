// Package promsink exports high-risk session events as Prometheus counters.
package promsink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"banking-session-core/internal/event/domain"
)

// Sink counts high-risk session events by event type and risk level.
type Sink struct {
	events *prometheus.CounterVec
}

// New registers the sink's metrics with reg and returns the sink.
func New(reg prometheus.Registerer) *Sink {
	return &Sink{
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "session_high_risk_events_total",
			Help: "High and critical risk session events by type and level.",
		}, []string{"event_type", "risk_level"}),
	}
}

// OnHighRiskEvent implements event.HighRiskSink.
func (s *Sink) OnHighRiskEvent(e domain.SessionEvent) {
	s.events.WithLabelValues(string(e.Type), string(e.RiskLevel)).Inc()
}
