package hypercontagion

import (
	"math/rand"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nwlandry/hypercontagion/internal/eventlog"
	"github.com/nwlandry/hypercontagion/internal/metrics"
)

// isKey identifies one (hyperedge, susceptible-target) transmission
// opportunity inside an IS[k] collection.
type isKey struct {
	EdgeID string
	Node   string
}

// EventRecord describes one state transition, or one initial placement
// when Initial is true. An initial record carries the node's starting
// state in NewState: S->S for a susceptible node, S->I for an initial
// infected, and I->R for an initial recovered. Source is nil
// for recoveries and for initial placements, and holds the hyperedge ID
// that mediated a transmission otherwise.
type EventRecord struct {
	Time     float64
	Source   *string
	Target   string
	OldState Status
	NewState Status
	Initial  bool
}

// GillespieCommonOptions holds the parameters shared by RunGillespieSIR
// and RunGillespieSIS.
type GillespieCommonOptions struct {
	// Tau maps hyperedge size to its base transmission rate. A missing
	// or zero entry disables that channel.
	Tau map[int]float64
	// Gamma is the per-node recovery rate.
	Gamma float64
	// Kernel gates whether a hyperedge offers live transmission to a
	// candidate target. Defaults to Threshold(0.5) if nil.
	Kernel ContagionKernel
	// InitialInfecteds names the nodes infected at TMin. Mutually
	// exclusive with Rho.
	InitialInfecteds []string
	// Rho is the fraction of nodes to infect at TMin, chosen uniformly
	// at random. Mutually exclusive with InitialInfecteds.
	Rho *float64
	TMin, TMax float64
	// NodeWeight scales a node's contribution to the recovery rate.
	// Defaults to 1 for every node when nil.
	NodeWeight func(node string) float64
	// EdgeWeight scales a hyperedge's contribution to its transmission
	// channel. Defaults to 1 for every edge when nil.
	EdgeWeight func(edgeID string) float64
	// ReturnEventData requests the full transition log in addition to
	// the time series.
	ReturnEventData bool
	// Rng supplies the single pseudorandom stream driving the run. If
	// nil, a source seeded from the wall clock is created.
	Rng *rand.Rand
	// EventSink, if non-nil, receives every recorded event as it
	// happens, independent of ReturnEventData. RunID identifies the run
	// to the sink; a fresh ksuid is minted if left empty.
	EventSink eventlog.Sink
	RunID     string
	// Metrics, if non-nil, is updated with per-event observations as the
	// run progresses.
	Metrics *metrics.RunCollector
	// Logger receives run start and run finished messages at Info level
	// and channel-absorption notices at Debug level. Defaults
	// to a no-op logger when nil.
	Logger *zerolog.Logger
}

func (o *GillespieCommonOptions) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}

func (o *GillespieCommonOptions) validate() error {
	if o.Rho != nil && len(o.InitialInfecteds) > 0 {
		return ErrConflictingInitialCondition
	}
	if o.Rho != nil && (*o.Rho < 0 || *o.Rho > 1) {
		return ErrInvalidRho
	}
	if o.Gamma < 0 {
		return errors.Wrapf(ErrNegativeRate, "gamma = %f", o.Gamma)
	}
	for size, rate := range o.Tau {
		if rate < 0 {
			return errors.Wrapf(ErrNegativeRate, "tau[%d] = %f", size, rate)
		}
	}
	return nil
}

func (o *GillespieCommonOptions) rng() *rand.Rand {
	if o.Rng != nil {
		return o.Rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (o *GillespieCommonOptions) nodeWeight(node string) float64 {
	if o.NodeWeight == nil {
		return 1
	}
	return o.NodeWeight(node)
}

func (o *GillespieCommonOptions) edgeWeight(edgeID string) float64 {
	if o.EdgeWeight == nil {
		return 1
	}
	return o.EdgeWeight(edgeID)
}

func (o *GillespieCommonOptions) kernel() ContagionKernel {
	if o.Kernel == nil {
		return Threshold(0.5)
	}
	return o.Kernel
}

// gillespieState is the mutable bookkeeping shared by both compartmental
// models during one run.
type gillespieState struct {
	h         Hypergraph
	opts      *GillespieCommonOptions
	rng       *rand.Rand
	status    map[string]Status
	infecteds *WeightedIndex[string]
	is        map[int]*WeightedIndex[isKey]
	events    []EventRecord
	runID     string
}

func newGillespieState(h Hypergraph, opts *GillespieCommonOptions) *gillespieState {
	rng := opts.rng()
	runID := opts.RunID
	if runID == "" && opts.EventSink != nil {
		runID = eventlog.NewRunID()
	}
	st := &gillespieState{
		h:         h,
		opts:      opts,
		rng:       rng,
		status:    make(map[string]Status, h.NumNodes()),
		infecteds: NewWeightedIndex[string](rng),
		is:        make(map[int]*WeightedIndex[isKey]),
		runID:     runID,
	}
	for _, size := range h.EdgeSizes() {
		st.is[size] = NewWeightedIndex[isKey](st.rng)
	}
	for _, n := range h.Nodes() {
		st.status[n] = Susceptible
	}
	return st
}

func (st *gillespieState) recordEvent(t float64, source *string, target string, old, new_ Status, initial bool) {
	if st.opts.ReturnEventData {
		st.events = append(st.events, EventRecord{Time: t, Source: source, Target: target, OldState: old, NewState: new_, Initial: initial})
	}
	if st.opts.EventSink != nil {
		if err := st.opts.EventSink.RecordEvent(st.runID, t, source, target, old.String(), new_.String(), initial); err != nil {
			// The sink's error is discarded; a failing sink does not
			// abort a run already in progress.
			_ = err
		}
	}
	if !initial {
		st.opts.Metrics.ObserveEvent(old.String(), new_.String())
	}
}

func (st *gillespieState) selectInitialInfecteds() ([]string, error) {
	opts := st.opts
	if opts.Rho == nil && len(opts.InitialInfecteds) == 0 {
		nodes := st.h.Nodes()
		if len(nodes) == 0 {
			return nil, nil
		}
		return []string{nodes[st.rng.Intn(len(nodes))]}, nil
	}
	if opts.Rho != nil {
		nodes := st.h.Nodes()
		n := int(float64(len(nodes))*(*opts.Rho) + 0.5)
		perm := st.rng.Perm(len(nodes))
		out := make([]string, 0, n)
		for i := 0; i < n && i < len(perm); i++ {
			out = append(out, nodes[perm[i]])
		}
		return out, nil
	}
	for _, n := range opts.InitialInfecteds {
		if !st.h.HasNode(n) {
			return nil, errors.Wrapf(ErrUnknownNode, "initial infected %q", n)
		}
	}
	return opts.InitialInfecteds, nil
}

// seedIS populates the IS[k] collections from the initial status
// assignment, mirroring the teacher's bulk-build step before a
// Gillespie run starts consuming events.
func (st *gillespieState) seedIS() error {
	kernel := st.opts.kernel()
	for _, u := range st.h.Nodes() {
		if st.status[u] != Infected {
			continue
		}
		for _, edgeID := range st.h.MemberHyperedges(u) {
			edge, _ := st.h.Edge(edgeID)
			for _, v := range edge.Members {
				if st.status[v] != Susceptible {
					continue
				}
				c, err := kernel(v, st.status, edge.Members, st.rng)
				if err != nil {
					return err
				}
				if err := checkFinite(c); err != nil {
					return err
				}
				if c != 0 {
					is, ok := st.is[len(edge.Members)]
					if !ok {
						is = NewWeightedIndex[isKey](st.rng)
						st.is[len(edge.Members)] = is
					}
					is.Insert(isKey{edgeID, v}, st.opts.edgeWeight(edgeID))
				}
			}
		}
	}
	return nil
}

// onInfection applies the incidence update rule for a node that just
// transitioned into Infected.
func (st *gillespieState) onInfection(u string) error {
	kernel := st.opts.kernel()
	for _, edgeID := range st.h.MemberHyperedges(u) {
		edge, _ := st.h.Edge(edgeID)
		if is, ok := st.is[len(edge.Members)]; ok {
			is.Remove(isKey{edgeID, u})
		}
		for _, v := range edge.Members {
			if v == u || st.status[v] != Susceptible {
				continue
			}
			c, err := kernel(v, st.status, edge.Members, st.rng)
			if err != nil {
				return err
			}
			if err := checkFinite(c); err != nil {
				return err
			}
			if c != 0 {
				is, ok := st.is[len(edge.Members)]
				if !ok {
					is = NewWeightedIndex[isKey](st.rng)
					st.is[len(edge.Members)] = is
				}
				is.Insert(isKey{edgeID, v}, st.opts.edgeWeight(edgeID))
			}
		}
	}
	return nil
}

// onLossOfInfection applies the incidence update rule for a node that
// just left Infected (recovered, SIR, or returned to Susceptible, SIS).
// resusceptible controls whether u itself is re-added to IS[k] as a new
// susceptible target, which only applies to SIS.
func (st *gillespieState) onLossOfInfection(u string, resusceptible bool) error {
	kernel := st.opts.kernel()
	for _, edgeID := range st.h.MemberHyperedges(u) {
		edge, _ := st.h.Edge(edgeID)
		for _, v := range edge.Members {
			if v == u || st.status[v] != Susceptible {
				continue
			}
			c, err := kernel(v, st.status, edge.Members, st.rng)
			if err != nil {
				return err
			}
			if err := checkFinite(c); err != nil {
				return err
			}
			if c == 0 {
				if is, ok := st.is[len(edge.Members)]; ok {
					is.Remove(isKey{edgeID, v})
				}
			}
		}
		if resusceptible {
			c, err := kernel(u, st.status, edge.Members, st.rng)
			if err != nil {
				return err
			}
			if err := checkFinite(c); err != nil {
				return err
			}
			if c != 0 {
				is, ok := st.is[len(edge.Members)]
				if !ok {
					is = NewWeightedIndex[isKey](st.rng)
					st.is[len(edge.Members)] = is
				}
				is.Insert(isKey{edgeID, u}, st.opts.edgeWeight(edgeID))
			}
		}
	}
	return nil
}

func (st *gillespieState) totalRates() (map[int]float64, float64) {
	rates := make(map[int]float64, len(st.is)+1)
	rates[0] = st.opts.Gamma * st.infecteds.TotalWeight()
	total := rates[0]
	for size, is := range st.is {
		tau := st.opts.Tau[size]
		r := tau * is.TotalWeight()
		rates[size] = r
		total += r
	}
	return rates, total
}

func (st *gillespieState) chooseChannel(rates map[int]float64, total float64) int {
	keys := make([]int, 0, len(rates))
	for k := range rates {
		keys = append(keys, k)
	}
	// Sorted so the index drawn from rng.Intn is reproducible across
	// runs; Go's map iteration order is randomized per process and
	// would otherwise silently break seeded reproducibility.
	sort.Ints(keys)
	for {
		k := keys[st.rng.Intn(len(keys))]
		if st.rng.Float64() < rates[k]/total {
			return k
		}
	}
}

func checkFinite(v float64) error {
	if v != v || v > maxFiniteRate || v < -maxFiniteRate {
		return ErrNonFiniteKernelResult
	}
	return nil
}

const maxFiniteRate = 1e300

// SIRTimeSeries is the parallel-array result of a completed SIR run.
type SIRTimeSeries struct {
	Times []float64
	S, I, R []int
}

// RunGillespieSIR runs the continuous-time direct-method SIR driver.
// InitialRecovereds names nodes that start in the Recovered state; it
// may be nil.
func RunGillespieSIR(h Hypergraph, opts GillespieCommonOptions, initialRecovereds []string) (*SIRTimeSeries, []EventRecord, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	st := newGillespieState(h, &opts)
	log := opts.logger()
	log.Info().Str("run_id", st.runID).Str("driver", "gillespie_sir").Float64("t_min", opts.TMin).Float64("t_max", opts.TMax).Msg("run started")

	infecteds, err := st.selectInitialInfecteds()
	if err != nil {
		return nil, nil, err
	}
	recoveredSet := make(map[string]bool, len(initialRecovereds))
	for _, n := range initialRecovereds {
		if !h.HasNode(n) {
			return nil, nil, errors.Wrapf(ErrUnknownNode, "initial recovered %q", n)
		}
		recoveredSet[n] = true
		st.status[n] = Recovered
	}
	for _, n := range infecteds {
		st.status[n] = Infected
		st.infecteds.Insert(n, st.opts.nodeWeight(n))
	}
	if err := st.seedIS(); err != nil {
		return nil, nil, err
	}

	for _, n := range infecteds {
		st.recordEvent(opts.TMin, nil, n, Susceptible, Infected, true)
	}
	for _, n := range initialRecovereds {
		st.recordEvent(opts.TMin, nil, n, Infected, Recovered, true)
	}
	for _, n := range h.Nodes() {
		if st.status[n] == Susceptible {
			st.recordEvent(opts.TMin, nil, n, Susceptible, Susceptible, true)
		}
	}

	ts := &SIRTimeSeries{
		Times: []float64{opts.TMin},
		I:     []int{len(infecteds)},
		R:     []int{len(recoveredSet)},
	}
	ts.S = []int{h.NumNodes() - ts.I[0] - ts.R[0]}

	t := opts.TMin
	for st.infecteds.Len() > 0 && t < opts.TMax {
		rates, total := st.totalRates()
		if total <= 0 {
			log.Debug().Str("run_id", st.runID).Float64("t", t).Msg("all channels absorbed, stopping early")
			break
		}
		t += st.rng.ExpFloat64() / total
		if t >= opts.TMax {
			break
		}
		channel := st.chooseChannel(rates, total)
		if channel == 0 {
			node := st.infecteds.RandomRemoval()
			st.status[node] = Recovered
			st.recordEvent(t, nil, node, Infected, Recovered, false)
			if err := st.onLossOfInfection(node, false); err != nil {
				return nil, nil, err
			}
			ts.S = append(ts.S, ts.S[len(ts.S)-1])
			ts.I = append(ts.I, ts.I[len(ts.I)-1]-1)
			ts.R = append(ts.R, ts.R[len(ts.R)-1]+1)
		} else {
			is := st.is[channel]
			key := is.ChooseRandom()
			st.status[key.Node] = Infected
			st.infecteds.Insert(key.Node, st.opts.nodeWeight(key.Node))
			edgeID := key.EdgeID
			st.recordEvent(t, &edgeID, key.Node, Susceptible, Infected, false)
			if err := st.onInfection(key.Node); err != nil {
				return nil, nil, err
			}
			ts.S = append(ts.S, ts.S[len(ts.S)-1]-1)
			ts.I = append(ts.I, ts.I[len(ts.I)-1]+1)
			ts.R = append(ts.R, ts.R[len(ts.R)-1])
		}
		ts.Times = append(ts.Times, t)
	}
	log.Info().Str("run_id", st.runID).Float64("t_final", t).Int("events", len(st.events)).Msg("run finished")
	return ts, st.events, nil
}

// SISTimeSeries is the parallel-array result of a completed SIS run.
type SISTimeSeries struct {
	Times []float64
	S, I  []int
}

// RunGillespieSIS runs the continuous-time direct-method SIS driver.
// Unlike SIR, a recovering node returns to Susceptible and regains
// transmission opportunities.
func RunGillespieSIS(h Hypergraph, opts GillespieCommonOptions) (*SISTimeSeries, []EventRecord, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	st := newGillespieState(h, &opts)
	log := opts.logger()
	log.Info().Str("run_id", st.runID).Str("driver", "gillespie_sis").Float64("t_min", opts.TMin).Float64("t_max", opts.TMax).Msg("run started")

	infecteds, err := st.selectInitialInfecteds()
	if err != nil {
		return nil, nil, err
	}
	for _, n := range infecteds {
		st.status[n] = Infected
		st.infecteds.Insert(n, st.opts.nodeWeight(n))
	}
	if err := st.seedIS(); err != nil {
		return nil, nil, err
	}

	for _, n := range infecteds {
		st.recordEvent(opts.TMin, nil, n, Susceptible, Infected, true)
	}
	for _, n := range h.Nodes() {
		if st.status[n] == Susceptible {
			st.recordEvent(opts.TMin, nil, n, Susceptible, Susceptible, true)
		}
	}

	ts := &SISTimeSeries{
		Times: []float64{opts.TMin},
		I:     []int{len(infecteds)},
	}
	ts.S = []int{h.NumNodes() - ts.I[0]}

	t := opts.TMin
	for st.infecteds.Len() > 0 && t < opts.TMax {
		rates, total := st.totalRates()
		if total <= 0 {
			log.Debug().Str("run_id", st.runID).Float64("t", t).Msg("all channels absorbed, stopping early")
			break
		}
		t += st.rng.ExpFloat64() / total
		if t >= opts.TMax {
			break
		}
		channel := st.chooseChannel(rates, total)
		if channel == 0 {
			node := st.infecteds.RandomRemoval()
			st.status[node] = Susceptible
			st.recordEvent(t, nil, node, Infected, Susceptible, false)
			if err := st.onLossOfInfection(node, true); err != nil {
				return nil, nil, err
			}
			ts.S = append(ts.S, ts.S[len(ts.S)-1]+1)
			ts.I = append(ts.I, ts.I[len(ts.I)-1]-1)
		} else {
			is := st.is[channel]
			key := is.ChooseRandom()
			st.status[key.Node] = Infected
			st.infecteds.Insert(key.Node, st.opts.nodeWeight(key.Node))
			edgeID := key.EdgeID
			st.recordEvent(t, &edgeID, key.Node, Susceptible, Infected, false)
			if err := st.onInfection(key.Node); err != nil {
				return nil, nil, err
			}
			ts.S = append(ts.S, ts.S[len(ts.S)-1]-1)
			ts.I = append(ts.I, ts.I[len(ts.I)-1]+1)
		}
		ts.Times = append(ts.Times, t)
	}
	log.Info().Str("run_id", st.runID).Float64("t_final", t).Int("events", len(st.events)).Msg("run finished")
	return ts, st.events, nil
}
