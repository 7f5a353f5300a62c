package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the realtime collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	subscribers prometheus.Gauge
	rooms       prometheus.Gauge
	events      *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	dropped     prometheus.Counter
	admissions  *prometheus.CounterVec
}

// NewMetrics creates the realtime collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peroxia",
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Number of live channel subscribers.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peroxia",
			Subsystem: "realtime",
			Name:      "rooms",
			Help:      "Number of projects with at least one subscriber.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peroxia",
			Subsystem: "realtime",
			Name:      "events_dispatched_total",
			Help:      "Events broadcast to a non-empty room.",
		}, []string{"event"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peroxia",
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Per-subscriber send attempts by result.",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peroxia",
			Subsystem: "realtime",
			Name:      "events_dropped_total",
			Help:      "Events discarded because a room backlog was full.",
		}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peroxia",
			Subsystem: "realtime",
			Name:      "admissions_total",
			Help:      "Live channel admission decisions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.subscribers, m.rooms, m.events, m.deliveries, m.dropped, m.admissions)
	return m
}

func (m *Metrics) setOccupancy(subscribers, rooms int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(subscribers))
	m.rooms.Set(float64(rooms))
}

func (m *Metrics) eventDispatched(kind EventKind) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) delivery(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) eventDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) admission(result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(result).Inc()
}
