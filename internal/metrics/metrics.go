package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DayCycle holds the collectors for the day controller and its scheduler.
// A nil *DayCycle is valid and records nothing.
type DayCycle struct {
	currentDay     prometheus.Gauge
	active         prometheus.Gauge
	transitions    *prometheus.CounterVec
	schedulerFires *prometheus.CounterVec
}

// NewDayCycle creates the collectors and registers them with reg.
func NewDayCycle(reg prometheus.Registerer) *DayCycle {
	m := &DayCycle{
		currentDay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketsim",
			Name:      "current_day",
			Help:      "Current simulated trading day.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketsim",
			Name:      "simulation_active",
			Help:      "1 while the simulation is running or paused.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketsim",
			Name:      "day_transitions_total",
			Help:      "Committed day-control transitions.",
		}, []string{"kind", "trigger"}),
		schedulerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketsim",
			Name:      "scheduler_fires_total",
			Help:      "Scheduler timer expiries by outcome.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.currentDay, m.active, m.transitions, m.schedulerFires)
	}
	return m
}

func (m *DayCycle) ObserveState(currentDay int, active bool) {
	if m == nil {
		return
	}
	m.currentDay.Set(float64(currentDay))
	if active {
		m.active.Set(1)
	} else {
		m.active.Set(0)
	}
}

func (m *DayCycle) Transition(kind, trigger string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, trigger).Inc()
}

// Scheduler fire results
const (
	FireAdvanced  = "advanced"
	FireStopped   = "stopped"
	FireCancelled = "cancelled"
	FireSkipped   = "skipped"
	FireFailed    = "failed"
)

func (m *DayCycle) SchedulerFire(result string) {
	if m == nil {
		return
	}
	m.schedulerFires.WithLabelValues(result).Inc()
}
