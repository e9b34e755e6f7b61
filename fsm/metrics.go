package fsm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "fsm_ticks_total",
		Help: "Total number of Update calls by machine",
	}, []string{"machine"})

	stateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "fsm_state_changes_total",
		Help: "Total number of current-state changes by machine, from_state, to_state and kind (transition or switch)",
	}, []string{"machine", "from_state", "to_state", "kind"})

	transitionsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "fsm_transitions_started_total",
		Help: "Total number of transitions entered by machine and transition",
	}, []string{"machine", "transition"})

	transitionsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "fsm_transitions_completed_total",
		Help: "Total number of transitions committed by machine and transition",
	}, []string{"machine", "transition"})

	transitionsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "fsm_transitions_cancelled_total",
		Help: "Total number of transitions exited without being committed by machine and transition",
	}, []string{"machine", "transition"})

	stopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "fsm_stops_total",
		Help: "Total number of Stop calls by machine",
	}, []string{"machine"})
)

// MetricsObserver records machine activity as Prometheus counters. It is
// stateless and may be shared between machines.
type MetricsObserver struct{}

var _ Observer = MetricsObserver{}

// NewMetricsObserver returns an observer backed by the package's default
// registry metrics.
func NewMetricsObserver() MetricsObserver {
	return MetricsObserver{}
}

func (MetricsObserver) Ticked(m *Machine, _ float64) {
	ticksTotal.WithLabelValues(sanitizeName(m.Name())).Inc()
}

func (MetricsObserver) StateChanged(m *Machine, from, to State, forced bool) {
	kind := "transition"
	if forced {
		kind = "switch"
	}

	stateChangesTotal.WithLabelValues(
		sanitizeName(m.Name()),
		sanitizeName(stateName(from)),
		sanitizeName(stateName(to)),
		kind,
	).Inc()
}

func (MetricsObserver) TransitionBegan(m *Machine, t Transition) {
	transitionsStartedTotal.WithLabelValues(sanitizeName(m.Name()), sanitizeName(t.Name())).Inc()
}

func (MetricsObserver) TransitionEnded(m *Machine, t Transition) {
	transitionsCompletedTotal.WithLabelValues(sanitizeName(m.Name()), sanitizeName(t.Name())).Inc()
}

func (MetricsObserver) TransitionCancelled(m *Machine, t Transition) {
	transitionsCancelledTotal.WithLabelValues(sanitizeName(m.Name()), sanitizeName(t.Name())).Inc()
}

func (MetricsObserver) Stopped(m *Machine) {
	stopsTotal.WithLabelValues(sanitizeName(m.Name())).Inc()
}

func sanitizeName(name string) string {
	if name == "" {
		return "none"
	}

	return name
}
