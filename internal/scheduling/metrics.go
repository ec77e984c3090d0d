package scheduling

import (
	"github.com/prometheus/client_golang/prometheus"

	"medlink-server/internal/apperr"
)

// Metrics counts workflow outcomes. A nil *Metrics records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
	conflicts   prometheus.Counter
	reminders   *prometheus.CounterVec
}

// NewMetrics creates the workflow collectors and registers them with reg
// when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medlink_appointment_operations_total",
				Help: "Total number of appointment workflow operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "medlink_appointment_conflicts_total",
				Help: "Total number of rejected slots because of an overlapping appointment",
			},
		),
		reminders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medlink_appointment_reminders_total",
				Help: "Total number of reminders by event",
			},
			[]string{"event"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.transitions, m.conflicts, m.reminders)
	}
	return m
}

func (m *Metrics) observe(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.transitions.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) reminder(event string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(event).Inc()
}
