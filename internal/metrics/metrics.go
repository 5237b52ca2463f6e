// Package metrics exposes Prometheus instrumentation for a simulation
// run, grounded on the prometheus.NewCounter/NewHistogram plus
// reg.MustRegister wiring pattern used in the retrieval pack's
// etalazz-vsa simulation command. A RunCollector owns its own
// *prometheus.Registry rather than registering against the global
// DefaultRegisterer, since spec.md's concurrency model runs multiple
// simulation contexts independently in the same process and repeated
// MustRegister calls against one shared global registry would panic on
// the second run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunCollector instruments one simulation run: event counts by
// transition kind, current compartment sizes, and step latency.
type RunCollector struct {
	Registry *prometheus.Registry

	EventsTotal     *prometheus.CounterVec
	CompartmentSize *prometheus.GaugeVec
	StepDuration    prometheus.Histogram
}

// NewRunCollector builds and registers a fresh set of collectors.
func NewRunCollector() *RunCollector {
	reg := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hypercontagion_events_total",
		Help: "Number of transition events recorded, by old and new state.",
	}, []string{"old_state", "new_state"})

	compartmentSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hypercontagion_compartment_size",
		Help: "Current number of nodes in each compartment.",
	}, []string{"state"})

	stepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hypercontagion_step_duration_seconds",
		Help:    "Wall-clock time spent computing one recorded simulation step.",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(eventsTotal, compartmentSize, stepDuration)

	return &RunCollector{
		Registry:        reg,
		EventsTotal:     eventsTotal,
		CompartmentSize: compartmentSize,
		StepDuration:    stepDuration,
	}
}

// ObserveEvent increments the transition counter for one event.
func (c *RunCollector) ObserveEvent(oldState, newState string) {
	if c == nil {
		return
	}
	c.EventsTotal.WithLabelValues(oldState, newState).Inc()
}

// SetCompartmentSizes records the current size of each compartment.
func (c *RunCollector) SetCompartmentSizes(sizes map[string]int) {
	if c == nil {
		return
	}
	for state, n := range sizes {
		c.CompartmentSize.WithLabelValues(state).Set(float64(n))
	}
}

// TimeStep returns a function that, when called, records the elapsed
// time since TimeStep was invoked as one step-duration observation.
// Callers that have no collector get a no-op timer back.
func (c *RunCollector) TimeStep() func() {
	if c == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		c.StepDuration.Observe(time.Since(start).Seconds())
	}
}
