package hypercontagion

import (
	"math/rand"
	"testing"
)

func TestRunEventDrivenSIR_ConservesPopulation(t *testing.T) {
	h := buildScenarioHypergraph(t)
	opts := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: 10, 3: 10, 4: 10},
		Gamma:            1,
		Kernel:           Collective,
		InitialInfecteds: []string{"4"},
		TMin:             0,
		TMax:             20,
		Rng:              rand.New(rand.NewSource(1)),
	}
	ts, _, err := RunEventDrivenSIR(h, opts, nil)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "running the fast-recovery event-driven SIR scenario", err)
	}
	for i := range ts.Times {
		total := ts.S[i] + ts.I[i] + ts.R[i]
		if total != 8 {
			t.Errorf(UnequalIntParameterError, "S+I+R at recorded step", 8, total)
		}
	}
}

func TestRunEventDrivenSIR_ZeroGammaNeverRecovers(t *testing.T) {
	h := buildScenarioHypergraph(t)
	opts := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: 10, 3: 10, 4: 10},
		Gamma:            0,
		Kernel:           Threshold(0.5),
		InitialInfecteds: []string{"6"},
		TMin:             0,
		TMax:             20,
		Rng:              rand.New(rand.NewSource(2)),
	}
	ts, _, err := RunEventDrivenSIR(h, opts, nil)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "running the zero-gamma event-driven SIR scenario", err)
	}
	for i := 1; i < len(ts.I); i++ {
		if ts.I[i] < ts.I[i-1] {
			t.Errorf("expected I to be non-decreasing with gamma=0, dropped from %d to %d", ts.I[i-1], ts.I[i])
		}
	}
	for _, r := range ts.R {
		if r != 0 {
			t.Errorf(UnequalIntParameterError, "R with no recovery channel", 0, r)
		}
	}
}

func TestRunEventDrivenSIS_ConservesPopulation(t *testing.T) {
	h := buildScenarioHypergraph(t)
	opts := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: 10, 3: 10, 4: 10},
		Gamma:            1,
		Kernel:           Threshold(0.5),
		InitialInfecteds: []string{"6"},
		TMin:             0,
		TMax:             20,
		Rng:              rand.New(rand.NewSource(3)),
	}
	ts, _, err := RunEventDrivenSIS(h, opts)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "running the event-driven SIS scenario", err)
	}
	for i := range ts.Times {
		if ts.S[i]+ts.I[i] != 8 {
			t.Errorf(UnequalIntParameterError, "S+I at recorded step", 8, ts.S[i]+ts.I[i])
		}
	}
}

func TestRunEventDrivenSIR_RejectsConflictingInitialCondition(t *testing.T) {
	h := buildScenarioHypergraph(t)
	rho := 0.5
	opts := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: 10, 3: 10},
		Gamma:            1,
		InitialInfecteds: []string{"1"},
		Rho:              &rho,
		TMax:             10,
	}
	if _, _, err := RunEventDrivenSIR(h, opts, nil); err == nil {
		t.Errorf(ExpectedErrorWhileError, "specifying both rho and initial infecteds")
	}
}

func TestRunEventDrivenSIR_RejectsConflictingTimeProviders(t *testing.T) {
	h := buildScenarioHypergraph(t)
	opts := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: 10, 3: 10},
		Gamma:            1,
		InitialInfecteds: []string{"1"},
		TMax:             10,
		TransTimeFunc: func(edgeMembers []string, rng *rand.Rand) float64 {
			return 1
		},
		CombinedTimeFunc: func(node string, edgeMembers []string, rng *rand.Rand) (float64, float64) {
			return 1, 1
		},
	}
	if _, _, err := RunEventDrivenSIR(h, opts, nil); err == nil {
		t.Errorf(ExpectedErrorWhileError, "specifying both a transmission time function and a combined time function")
	}
}

func TestRunEventDrivenSIR_RejectsNegativeRate(t *testing.T) {
	h := buildScenarioHypergraph(t)
	opts := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: -1},
		Gamma:            1,
		InitialInfecteds: []string{"1"},
		TMax:             10,
	}
	if _, _, err := RunEventDrivenSIR(h, opts, nil); err == nil {
		t.Errorf(ExpectedErrorWhileError, "supplying a negative transmission rate")
	}
}

func TestRunEventDrivenSIR_UnknownInitialInfectedIsError(t *testing.T) {
	h := buildScenarioHypergraph(t)
	opts := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: 10, 3: 10},
		Gamma:            1,
		InitialInfecteds: []string{"does-not-exist"},
		TMax:             10,
	}
	if _, _, err := RunEventDrivenSIR(h, opts, nil); err == nil {
		t.Errorf(ExpectedErrorWhileError, "naming a node absent from the hypergraph as initially infected")
	}
}

func TestRunEventDrivenSIR_UnknownInitialRecoveredIsError(t *testing.T) {
	h := buildScenarioHypergraph(t)
	opts := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: 10, 3: 10},
		Gamma:            1,
		InitialInfecteds: []string{"1"},
		TMax:             10,
	}
	if _, _, err := RunEventDrivenSIR(h, opts, []string{"does-not-exist"}); err == nil {
		t.Errorf(ExpectedErrorWhileError, "naming a node absent from the hypergraph as initially recovered")
	}
}

func TestRunEventDrivenSIR_DeterministicGivenSameSeed(t *testing.T) {
	// As with the Gillespie determinism test, a single shared hypergraph
	// is reused across both passes: ksuid-assigned edge IDs are not part
	// of the seeded random stream, so two independently built hypergraphs
	// would carry different edge IDs even with identical topology.
	h := buildScenarioHypergraph(t)
	opts1 := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: 10, 3: 10, 4: 10},
		Gamma:            1,
		Kernel:           Threshold(0.5),
		InitialInfecteds: []string{"6"},
		TMax:             20,
		ReturnEventData:  true,
		Rng:              rand.New(rand.NewSource(99)),
	}
	opts2 := opts1
	opts2.Rng = rand.New(rand.NewSource(99))

	ts1, ev1, err := RunEventDrivenSIR(h, opts1, nil)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "running the first deterministic-seed pass", err)
	}
	ts2, ev2, err := RunEventDrivenSIR(h, opts2, nil)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "running the second deterministic-seed pass", err)
	}

	if len(ts1.Times) != len(ts2.Times) {
		t.Fatalf(UnequalIntParameterError, "number of recorded steps across identical seeds", len(ts1.Times), len(ts2.Times))
	}
	for i := range ts1.Times {
		if ts1.Times[i] != ts2.Times[i] || ts1.S[i] != ts2.S[i] || ts1.I[i] != ts2.I[i] || ts1.R[i] != ts2.R[i] {
			t.Errorf("expected identical trajectories from identical seeds at step %d", i)
		}
	}
	if len(ev1) != len(ev2) {
		t.Fatalf(UnequalIntParameterError, "number of events across identical seeds", len(ev1), len(ev2))
	}
	for i := range ev1 {
		a, b := ev1[i], ev2[i]
		sourcesMatch := (a.Source == nil && b.Source == nil) ||
			(a.Source != nil && b.Source != nil && *a.Source == *b.Source)
		if !sourcesMatch || a.Time != b.Time || a.Target != b.Target ||
			a.OldState != b.OldState || a.NewState != b.NewState || a.Initial != b.Initial {
			t.Errorf("expected identical event records from identical seeds at index %d", i)
		}
	}
}

func TestRunEventDrivenSIR_TimesAreNonDecreasing(t *testing.T) {
	h := buildScenarioHypergraph(t)
	opts := EventDrivenCommonOptions{
		Tau:              map[int]float64{2: 10, 3: 10, 4: 10},
		Gamma:            1,
		Kernel:           Collective,
		InitialInfecteds: []string{"4"},
		TMax:             20,
		Rng:              rand.New(rand.NewSource(7)),
	}
	ts, _, err := RunEventDrivenSIR(h, opts, nil)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "running the event-ordering scenario", err)
	}
	for i := 1; i < len(ts.Times); i++ {
		if ts.Times[i] < ts.Times[i-1] {
			t.Errorf("expected recorded times to be non-decreasing, got %f after %f", ts.Times[i], ts.Times[i-1])
		}
	}
}
