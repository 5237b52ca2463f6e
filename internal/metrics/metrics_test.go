package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunCollector_ObserveEventIncrementsCounter(t *testing.T) {
	c := NewRunCollector()
	c.ObserveEvent("Susceptible", "Infected")
	c.ObserveEvent("Susceptible", "Infected")
	c.ObserveEvent("Infected", "Recovered")

	got := testutil.ToFloat64(c.EventsTotal.WithLabelValues("Susceptible", "Infected"))
	if got != 2 {
		t.Errorf("expected 2 Susceptible->Infected events, got %f", got)
	}
	got = testutil.ToFloat64(c.EventsTotal.WithLabelValues("Infected", "Recovered"))
	if got != 1 {
		t.Errorf("expected 1 Infected->Recovered event, got %f", got)
	}
}

func TestRunCollector_SetCompartmentSizesOverwritesGauge(t *testing.T) {
	c := NewRunCollector()
	c.SetCompartmentSizes(map[string]int{"S": 90, "I": 10})
	c.SetCompartmentSizes(map[string]int{"S": 80, "I": 20})

	if got := testutil.ToFloat64(c.CompartmentSize.WithLabelValues("S")); got != 80 {
		t.Errorf("expected compartment size S=80, got %f", got)
	}
	if got := testutil.ToFloat64(c.CompartmentSize.WithLabelValues("I")); got != 20 {
		t.Errorf("expected compartment size I=20, got %f", got)
	}
}

func TestRunCollector_TimeStepRecordsAnObservation(t *testing.T) {
	c := NewRunCollector()
	stop := c.TimeStep()
	stop()

	families, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	var got uint64
	for _, mf := range families {
		if mf.GetName() == "hypercontagion_step_duration_seconds" {
			for _, m := range mf.GetMetric() {
				got += m.GetHistogram().GetSampleCount()
			}
		}
	}
	if got != 1 {
		t.Errorf("expected exactly one step duration observation, got %d", got)
	}
}

func TestRunCollector_NilReceiverMethodsAreNoOps(t *testing.T) {
	var c *RunCollector
	c.ObserveEvent("Susceptible", "Infected")
	c.SetCompartmentSizes(map[string]int{"S": 1})
	stop := c.TimeStep()
	stop()
}

func TestNewRunCollector_SeparateInstancesDoNotShareState(t *testing.T) {
	a := NewRunCollector()
	b := NewRunCollector()
	a.ObserveEvent("Susceptible", "Infected")

	if got := testutil.ToFloat64(b.EventsTotal.WithLabelValues("Susceptible", "Infected")); got != 0 {
		t.Errorf("expected a fresh RunCollector to start with zero events, got %f", got)
	}
}
