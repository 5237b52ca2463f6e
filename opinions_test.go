package hypercontagion

import (
	"math"
	"math/rand"
	"testing"
)

func TestDiscordance_SingletonEdgeIsInfinite(t *testing.T) {
	v := Discordance([]string{"a"}, map[string]float64{"a": 0.5})
	if !math.IsInf(v, 1) {
		t.Errorf("expected discordance of a singleton edge to be +Inf, got %f", v)
	}
}

func TestDiscordance_IdenticalOpinionsAreZero(t *testing.T) {
	x := map[string]float64{"a": 0.3, "b": 0.3, "c": 0.3}
	v := Discordance([]string{"a", "b", "c"}, x)
	if v != 0 {
		t.Errorf(UnequalFloatParameterError, "discordance of identical opinions", 0.0, v)
	}
}

// TestDeffuantWeisbuch_AverageIsIdempotent is scenario S5: an edge with
// opinions (0.1, 0.12, 0.15) and epsilon=0.01 has discordance below
// epsilon, so the "average" update sets every member to the edge mean;
// applying it again must be a no-op.
func TestDeffuantWeisbuch_AverageIsIdempotent(t *testing.T) {
	members := []string{"a", "b", "c"}
	x := map[string]float64{"a": 0.1, "b": 0.12, "c": 0.15}

	if d := Discordance(members, x); d >= 0.01 {
		t.Fatalf("expected discordance below 0.01 for the fixture opinions, got %f", d)
	}

	once := DeffuantWeisbuch(members, x, 0.01, "average", 0.1)
	mean := (0.1 + 0.12 + 0.15) / 3
	for _, m := range members {
		if math.Abs(once[m]-mean) > 1e-12 {
			t.Errorf(UnequalFloatParameterError, "opinion after averaging", mean, once[m])
		}
	}

	twice := DeffuantWeisbuch(members, once, 0.01, "average", 0.1)
	for _, m := range members {
		if once[m] != twice[m] {
			t.Errorf("expected a second average update to be a no-op, got %f then %f", once[m], twice[m])
		}
	}
}

func TestDeffuantWeisbuch_AboveEpsilonLeavesOpinionsUnchanged(t *testing.T) {
	members := []string{"a", "b"}
	x := map[string]float64{"a": 0.0, "b": 1.0}
	next := DeffuantWeisbuch(members, x, 0.01, "average", 0.1)
	if next["a"] != 0.0 || next["b"] != 1.0 {
		t.Errorf("expected opinions above epsilon discordance to remain unchanged, got a=%f b=%f", next["a"], next["b"])
	}
}

func TestDeffuantWeisbuch_CautiousMovesPartwayToMean(t *testing.T) {
	members := []string{"a", "b"}
	x := map[string]float64{"a": 0.0, "b": 0.1}
	next := DeffuantWeisbuch(members, x, 1.0, "cautious", 0.5)
	mean := 0.05
	wantA := x["a"] + 0.5*(mean-x["a"])
	if math.Abs(next["a"]-wantA) > 1e-12 {
		t.Errorf(UnequalFloatParameterError, "cautiously updated opinion", wantA, next["a"])
	}
}

func TestHegselmannKrause_AveragesOverOtherMembersOfLikeMindedEdges(t *testing.T) {
	h := NewHypergraph(false)
	if _, err := h.AddEdge([]string{"a", "b"}, 1); err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "building the fixture hypergraph", err)
	}
	x := map[string]float64{"a": 0.0, "b": 0.02}
	next := HegselmannKrause(h, x, 0.1)
	// Each node adopts the mean opinion of its edge's OTHER members, so
	// with a single shared edge the two opinions swap.
	if math.Abs(next["a"]-0.02) > 1e-12 {
		t.Errorf(UnequalFloatParameterError, "node a's opinion after update", 0.02, next["a"])
	}
	if math.Abs(next["b"]-0.0) > 1e-12 {
		t.Errorf(UnequalFloatParameterError, "node b's opinion after update", 0.0, next["b"])
	}
}

func TestHegselmannKrause_NoLikeMindedEdgeLeavesOpinionUnchanged(t *testing.T) {
	h := NewHypergraph(false)
	if _, err := h.AddEdge([]string{"a", "b"}, 1); err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "building the fixture hypergraph", err)
	}
	x := map[string]float64{"a": 0.0, "b": 10.0}
	next := HegselmannKrause(h, x, 0.01)
	if next["a"] != 0.0 || next["b"] != 10.0 {
		t.Errorf("expected discordant members to keep their opinion, got a=%f b=%f", next["a"], next["b"])
	}
}

// TestVoterModel_UnanimousNeighborsFlipTargetWithCertainty is scenario
// S6 with p_adoption=1: an edge of size 5 with opinions {A,A,A,A,B} and
// target B adopts A.
func TestVoterModel_UnanimousNeighborsFlipTargetWithCertainty(t *testing.T) {
	edge := []string{"n1", "n2", "n3", "n4", "target"}
	x := map[string]string{"n1": "A", "n2": "A", "n3": "A", "n4": "A", "target": "B"}
	next := VoterModel("target", edge, x, 1.0, rand.New(rand.NewSource(1)))
	if next["target"] != "A" {
		t.Errorf(UnequalStringParameterError, "target opinion after unanimous adoption", "A", next["target"])
	}
}

// TestVoterModel_ZeroAdoptionProbabilityLeavesTargetUnchanged is scenario
// S6 with p_adoption=0.
func TestVoterModel_ZeroAdoptionProbabilityLeavesTargetUnchanged(t *testing.T) {
	edge := []string{"n1", "n2", "n3", "n4", "target"}
	x := map[string]string{"n1": "A", "n2": "A", "n3": "A", "n4": "A", "target": "B"}
	next := VoterModel("target", edge, x, 0.0, rand.New(rand.NewSource(1)))
	if next["target"] != "B" {
		t.Errorf(UnequalStringParameterError, "target opinion with zero adoption probability", "B", next["target"])
	}
}

func TestVoterModel_DisagreeingNeighborsLeaveTargetUnchanged(t *testing.T) {
	edge := []string{"n1", "n2", "target"}
	x := map[string]string{"n1": "A", "n2": "B", "target": "C"}
	next := VoterModel("target", edge, x, 1.0, rand.New(rand.NewSource(1)))
	if next["target"] != "C" {
		t.Errorf(UnequalStringParameterError, "target opinion with disagreeing neighbors", "C", next["target"])
	}
}

func TestSimulateRandomGroupContinuous1D_ProducesOneTrajectoryPerNode(t *testing.T) {
	h := buildScenarioHypergraph(t)
	initial := make(map[string]float64)
	for _, n := range h.Nodes() {
		initial[n] = 0.5
	}
	opts := RandomGroupContinuousOptions{
		Epsilon: 0.5, Update: "average", M: 0.1,
		TMin: 0, TMax: 10, Dt: 1,
		Rng: rand.New(rand.NewSource(1)),
	}
	ts, err := SimulateRandomGroupContinuous1D(h, initial, opts)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "running the random-group continuous driver", err)
	}
	for _, n := range h.Nodes() {
		if len(ts.States[n]) != len(ts.Times) {
			t.Errorf(UnequalIntParameterError, "trajectory length for node "+n, len(ts.Times), len(ts.States[n]))
		}
	}
}

func TestSimulateRandomNodeAndGroupDiscrete_ProducesOneTrajectoryPerNode(t *testing.T) {
	h := buildScenarioHypergraph(t)
	initial := make(map[string]string)
	for i, n := range h.Nodes() {
		if i == 0 {
			initial[n] = "B"
		} else {
			initial[n] = "A"
		}
	}
	opts := RandomNodeAndGroupDiscreteOptions{
		PAdoption: 1, TMin: 0, TMax: 10, Dt: 1,
		Rng: rand.New(rand.NewSource(2)),
	}
	ts, err := SimulateRandomNodeAndGroupDiscrete(h, initial, opts)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "running the random-node-and-group discrete driver", err)
	}
	for _, n := range h.Nodes() {
		if len(ts.States[n]) != len(ts.Times) {
			t.Errorf(UnequalIntParameterError, "trajectory length for node "+n, len(ts.Times), len(ts.States[n]))
		}
	}
}

func TestSimulateSynchronousContinuous1D_ConvergesUnderWideEpsilon(t *testing.T) {
	h := buildScenarioHypergraph(t)
	initial := map[string]float64{}
	for i, n := range h.Nodes() {
		initial[n] = float64(i) * 0.1
	}
	opts := SynchronousContinuousOptions{Epsilon: 1000, TMin: 0, TMax: 5, Dt: 1}
	ts, err := SimulateSynchronousContinuous1D(h, initial, opts)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "running the synchronous continuous driver", err)
	}
	for _, n := range h.Nodes() {
		if len(ts.States[n]) != len(ts.Times) {
			t.Errorf(UnequalIntParameterError, "trajectory length for node "+n, len(ts.Times), len(ts.States[n]))
		}
	}
	spread := func(i int) float64 {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, n := range h.Nodes() {
			lo = math.Min(lo, ts.States[n][i])
			hi = math.Max(hi, ts.States[n][i])
		}
		return hi - lo
	}
	last := len(ts.Times) - 1
	if spread(last) >= spread(0) {
		t.Errorf("expected the opinion spread to shrink under a wide epsilon, got %f initially and %f finally", spread(0), spread(last))
	}
}

func TestSimulateRandomGroupContinuous1D_RejectsEdgelessHypergraph(t *testing.T) {
	h := NewHypergraph(false)
	if _, err := SimulateRandomGroupContinuous1D(h, map[string]float64{}, RandomGroupContinuousOptions{TMax: 1}); err == nil {
		t.Errorf(ExpectedErrorWhileError, "running an opinion driver on a hypergraph with no hyperedges")
	}
}
