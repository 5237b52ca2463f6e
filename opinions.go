package hypercontagion

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Discordance is the sample variance of opinions within a hyperedge: for
// a singleton edge (no pairwise comparison possible) it is +Inf, matching
// discordance's ZeroDivisionError fallback in the reference
// implementation.
func Discordance(members []string, x map[string]float64) float64 {
	if len(members) <= 1 {
		return math.Inf(1)
	}
	mean := meanOf(members, x)
	var sum float64
	for _, m := range members {
		d := x[m] - mean
		sum += d * d
	}
	return sum / float64(len(members)-1)
}

func meanOf(members []string, x map[string]float64) float64 {
	var sum float64
	for _, m := range members {
		sum += x[m]
	}
	return sum / float64(len(members))
}

func cloneFloatMap(x map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(x))
	for k, v := range x {
		out[k] = v
	}
	return out
}

func cloneStringMap(x map[string]string) map[string]string {
	out := make(map[string]string, len(x))
	for k, v := range x {
		out[k] = v
	}
	return out
}

// DeffuantWeisbuch applies the bounded-confidence opinion update to one
// hyperedge: members converge only when the edge's discordance is below
// epsilon. update="average" snaps every member to the edge mean;
// update="cautious" moves each member a fraction m of the way there.
// Members outside the edge are returned unchanged.
func DeffuantWeisbuch(members []string, x map[string]float64, epsilon float64, update string, m float64) map[string]float64 {
	next := cloneFloatMap(x)
	if Discordance(members, x) >= epsilon {
		return next
	}
	mean := meanOf(members, x)
	switch update {
	case "cautious":
		for _, node := range members {
			next[node] = x[node] + m*(mean-x[node])
		}
	default: // "average"
		for _, node := range members {
			next[node] = mean
		}
	}
	return next
}

// HegselmannKrause computes one synchronous update step over the whole
// hypergraph: each node's new opinion is the average, across its
// incident edges whose discordance (including the node itself) is below
// epsilon, of the mean opinion of that edge's OTHER members. A node with
// no such edge keeps its current opinion.
func HegselmannKrause(h Hypergraph, x map[string]float64, epsilon float64) map[string]float64 {
	next := make(map[string]float64, len(x))
	for _, node := range h.Nodes() {
		var sum float64
		var likeMinded int
		for _, edgeID := range h.MemberHyperedges(node) {
			edge, ok := h.Edge(edgeID)
			if !ok {
				continue
			}
			if Discordance(edge.Members, x) < epsilon {
				others := h.OtherMembers(edgeID, node)
				sum += meanOf(others, x)
				likeMinded++
			}
		}
		if likeMinded > 0 {
			next[node] = sum / float64(likeMinded)
		} else {
			next[node] = x[node]
		}
	}
	return next
}

// VoterModel applies the node-level adoption rule: if every member of
// edge other than node shares a single opinion, node adopts it with
// probability pAdoption. node need not itself belong to edge. x is left
// unmodified; the updated copy is returned.
func VoterModel(node string, edge []string, x map[string]string, pAdoption float64, rng *rand.Rand) map[string]string {
	next := cloneStringMap(x)
	var unanimous string
	haveOpinion := false
	consistent := true
	for _, m := range edge {
		if m == node {
			continue
		}
		if !haveOpinion {
			unanimous = x[m]
			haveOpinion = true
		} else if x[m] != unanimous {
			consistent = false
			break
		}
	}
	if haveOpinion && consistent && rng.Float64() < pAdoption {
		next[node] = unanimous
	}
	return next
}

func sortedEdges(h Hypergraph) []*Hyperedge {
	edges := h.Edges()
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

func opinionRng(r *rand.Rand) *rand.Rand {
	if r != nil {
		return r
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func opinionDt(dt float64) float64 {
	if dt > 0 {
		return dt
	}
	return 1
}

// ContinuousOpinionTimeSeries is the result of a continuous-state
// opinion driver: one []float64 trajectory per node, all the same
// length as Times.
type ContinuousOpinionTimeSeries struct {
	Times  []float64
	States map[string][]float64
}

// DiscreteOpinionTimeSeries is the result of the voter-model driver: one
// []string trajectory per node.
type DiscreteOpinionTimeSeries struct {
	Times  []float64
	States map[string][]string
}

// RandomGroupContinuousOptions configures SimulateRandomGroupContinuous1D.
type RandomGroupContinuousOptions struct {
	Epsilon    float64
	Update     string
	M          float64
	TMin, TMax float64
	Dt         float64
	Rng        *rand.Rand
}

// SimulateRandomGroupContinuous1D draws one hyperedge uniformly at each
// step and applies DeffuantWeisbuch to it; every other node's opinion is
// unchanged for that step.
func SimulateRandomGroupContinuous1D(h Hypergraph, initial map[string]float64, opts RandomGroupContinuousOptions) (*ContinuousOpinionTimeSeries, error) {
	edges := sortedEdges(h)
	if len(edges) == 0 {
		return nil, errors.New("hypercontagion: cannot run an opinion driver on a hypergraph with no hyperedges")
	}
	rng := opinionRng(opts.Rng)
	dt := opinionDt(opts.Dt)

	nodes := h.Nodes()
	current := cloneFloatMap(initial)
	out := &ContinuousOpinionTimeSeries{
		Times:  []float64{opts.TMin},
		States: make(map[string][]float64, len(nodes)),
	}
	for _, n := range nodes {
		out.States[n] = []float64{current[n]}
	}

	t := opts.TMin
	for t <= opts.TMax {
		t += dt
		edge := edges[rng.Intn(len(edges))]
		current = DeffuantWeisbuch(edge.Members, current, opts.Epsilon, opts.Update, opts.M)
		out.Times = append(out.Times, t)
		for _, n := range nodes {
			out.States[n] = append(out.States[n], current[n])
		}
	}
	return out, nil
}

// RandomNodeAndGroupDiscreteOptions configures
// SimulateRandomNodeAndGroupDiscrete.
type RandomNodeAndGroupDiscreteOptions struct {
	PAdoption  float64
	TMin, TMax float64
	Dt         float64
	Rng        *rand.Rand
}

// SimulateRandomNodeAndGroupDiscrete draws one node and one hyperedge
// uniformly (independently) at each step and applies VoterModel.
func SimulateRandomNodeAndGroupDiscrete(h Hypergraph, initial map[string]string, opts RandomNodeAndGroupDiscreteOptions) (*DiscreteOpinionTimeSeries, error) {
	nodes := h.Nodes()
	edges := sortedEdges(h)
	if len(nodes) == 0 || len(edges) == 0 {
		return nil, errors.New("hypercontagion: cannot run an opinion driver on a hypergraph with no nodes or no hyperedges")
	}
	rng := opinionRng(opts.Rng)
	dt := opinionDt(opts.Dt)

	current := cloneStringMap(initial)
	out := &DiscreteOpinionTimeSeries{
		Times:  []float64{opts.TMin},
		States: make(map[string][]string, len(nodes)),
	}
	for _, n := range nodes {
		out.States[n] = []string{current[n]}
	}

	t := opts.TMin
	for t <= opts.TMax {
		t += dt
		node := nodes[rng.Intn(len(nodes))]
		edge := edges[rng.Intn(len(edges))]
		current = VoterModel(node, edge.Members, current, opts.PAdoption, rng)
		out.Times = append(out.Times, t)
		for _, n := range nodes {
			out.States[n] = append(out.States[n], current[n])
		}
	}
	return out, nil
}

// SynchronousContinuousOptions configures SimulateSynchronousContinuous1D.
type SynchronousContinuousOptions struct {
	Epsilon    float64
	TMin, TMax float64
	Dt         float64
}

// SimulateSynchronousContinuous1D applies HegselmannKrause to every node
// simultaneously at each step.
func SimulateSynchronousContinuous1D(h Hypergraph, initial map[string]float64, opts SynchronousContinuousOptions) (*ContinuousOpinionTimeSeries, error) {
	nodes := h.Nodes()
	if len(nodes) == 0 {
		return nil, errors.New("hypercontagion: cannot run an opinion driver on a hypergraph with no nodes")
	}
	dt := opinionDt(opts.Dt)

	current := cloneFloatMap(initial)
	out := &ContinuousOpinionTimeSeries{
		Times:  []float64{opts.TMin},
		States: make(map[string][]float64, len(nodes)),
	}
	for _, n := range nodes {
		out.States[n] = []float64{current[n]}
	}

	t := opts.TMin
	for t <= opts.TMax {
		t += dt
		current = HegselmannKrause(h, current, opts.Epsilon)
		out.Times = append(out.Times, t)
		for _, n := range nodes {
			out.States[n] = append(out.States[n], current[n])
		}
	}
	return out, nil
}
