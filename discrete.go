package hypercontagion

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nwlandry/hypercontagion/internal/eventlog"
	"github.com/nwlandry/hypercontagion/internal/metrics"
)

// DiscreteCommonOptions holds the parameters shared by RunDiscreteSIR and
// RunDiscreteSIS: a fixed-step synchronous update in which every node's
// fate for the step is drawn from the snapshot at the start of the step,
// never from partial updates already committed within the same step.
type DiscreteCommonOptions struct {
	Tau              map[int]float64
	Gamma            float64
	Kernel           ContagionKernel
	InitialInfecteds []string
	Rho              *float64
	TMin, TMax       float64
	// Dt is the fixed time step. Defaults to 1 when zero.
	Dt              float64
	ReturnEventData bool
	Rng             *rand.Rand
	// EventSink, if non-nil, receives every recorded event as it
	// happens, independent of ReturnEventData. RunID identifies the run
	// to the sink; a fresh ksuid is minted if left empty.
	EventSink eventlog.Sink
	RunID     string
	// Metrics, if non-nil, is updated with per-event and per-step
	// observations as the run progresses.
	Metrics *metrics.RunCollector
	// Logger receives run start/termination-reason messages at Info
	// level. Defaults to a no-op logger when nil.
	Logger *zerolog.Logger
}

func (o *DiscreteCommonOptions) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}

func (o *DiscreteCommonOptions) validate() error {
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
	if o.Dt < 0 {
		return errors.Wrapf(ErrNegativeRate, "dt = %f", o.Dt)
	}
	return nil
}

func (o *DiscreteCommonOptions) rng() *rand.Rand {
	if o.Rng != nil {
		return o.Rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (o *DiscreteCommonOptions) kernel() ContagionKernel {
	if o.Kernel == nil {
		return Threshold(0.5)
	}
	return o.Kernel
}

func (o *DiscreteCommonOptions) dt() float64 {
	if o.Dt > 0 {
		return o.Dt
	}
	return 1
}

type discreteState struct {
	h      Hypergraph
	opts   *DiscreteCommonOptions
	rng    *rand.Rand
	status map[string]Status
	events []EventRecord
	runID  string
}

func newDiscreteState(h Hypergraph, opts *DiscreteCommonOptions) *discreteState {
	runID := opts.RunID
	if runID == "" && opts.EventSink != nil {
		runID = eventlog.NewRunID()
	}
	st := &discreteState{
		h:      h,
		opts:   opts,
		rng:    opts.rng(),
		status: make(map[string]Status, h.NumNodes()),
		runID:  runID,
	}
	for _, n := range h.Nodes() {
		st.status[n] = Susceptible
	}
	return st
}

func (st *discreteState) recordEvent(t float64, source *string, target string, old, new_ Status, initial bool) {
	if st.opts.ReturnEventData {
		st.events = append(st.events, EventRecord{Time: t, Source: source, Target: target, OldState: old, NewState: new_, Initial: initial})
	}
	if st.opts.EventSink != nil {
		_ = st.opts.EventSink.RecordEvent(st.runID, t, source, target, old.String(), new_.String(), initial)
	}
	if !initial {
		st.opts.Metrics.ObserveEvent(old.String(), new_.String())
	}
}

func (st *discreteState) selectInitialInfecteds() ([]string, error) {
	opts := st.opts
	nodes := st.h.Nodes()
	if opts.Rho == nil && len(opts.InitialInfecteds) == 0 {
		if len(nodes) == 0 {
			return nil, nil
		}
		return []string{nodes[st.rng.Intn(len(nodes))]}, nil
	}
	if opts.Rho != nil {
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

// RunDiscreteSIR runs the fixed-step synchronous SIR driver: every step
// reads exclusively from the snapshot taken at the step's start and
// commits all updates at once, so a node's fate never depends on another
// node's update within the same step.
func RunDiscreteSIR(h Hypergraph, opts DiscreteCommonOptions, initialRecovereds []string) (*SIRTimeSeries, []EventRecord, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	st := newDiscreteState(h, &opts)
	log := opts.logger()
	log.Info().Str("run_id", st.runID).Str("driver", "discrete_sir").Float64("t_min", opts.TMin).Float64("t_max", opts.TMax).Float64("dt", opts.dt()).Msg("run started")
	kernel := opts.kernel()
	dt := opts.dt()

	infecteds, err := st.selectInitialInfecteds()
	if err != nil {
		return nil, nil, err
	}
	for _, n := range infecteds {
		st.status[n] = Infected
		st.recordEvent(opts.TMin, nil, n, Susceptible, Infected, true)
	}
	for _, n := range initialRecovereds {
		if !h.HasNode(n) {
			return nil, nil, errors.Wrapf(ErrUnknownNode, "initial recovered %q", n)
		}
		st.status[n] = Recovered
		st.recordEvent(opts.TMin, nil, n, Infected, Recovered, true)
	}
	for _, n := range h.Nodes() {
		if st.status[n] == Susceptible {
			st.recordEvent(opts.TMin, nil, n, Susceptible, Susceptible, true)
		}
	}

	ts := &SIRTimeSeries{
		Times: []float64{opts.TMin},
		S:     []int{h.NumNodes() - len(infecteds) - len(initialRecovereds)},
		I:     []int{len(infecteds)},
		R:     []int{len(initialRecovereds)},
	}

	nodes := h.Nodes()
	t := opts.TMin
	for t <= opts.TMax && ts.I[len(ts.I)-1] != 0 {
		stop := st.opts.Metrics.TimeStep()
		snapshot := st.status
		next := make(map[string]Status, len(snapshot))
		for k, v := range snapshot {
			next[k] = v
		}
		dS, dI, dR := 0, 0, 0
		stepTime := t + dt

		for _, node := range nodes {
			switch snapshot[node] {
			case Infected:
				if opts.Gamma > 0 && st.rng.Float64() < opts.Gamma*dt {
					next[node] = Recovered
					dI--
					dR++
					st.recordEvent(stepTime, nil, node, Infected, Recovered, false)
				}
			case Susceptible:
				for _, edgeID := range h.MemberHyperedges(node) {
					edge, _ := h.Edge(edgeID)
					tau := opts.Tau[len(edge.Members)]
					if tau <= 0 {
						continue
					}
					c, err := kernel(node, snapshot, edge.Members, st.rng)
					if err != nil {
						return nil, nil, err
					}
					if err := checkFinite(c); err != nil {
						return nil, nil, err
					}
					if st.rng.Float64() < tau*c*dt {
						next[node] = Infected
						dS--
						dI++
						src := edgeID
						st.recordEvent(stepTime, &src, node, Susceptible, Infected, false)
						break
					}
				}
			}
		}

		st.status = next
		t = stepTime
		ts.Times = append(ts.Times, t)
		ts.S = append(ts.S, ts.S[len(ts.S)-1]+dS)
		ts.I = append(ts.I, ts.I[len(ts.I)-1]+dI)
		ts.R = append(ts.R, ts.R[len(ts.R)-1]+dR)
		st.opts.Metrics.SetCompartmentSizes(map[string]int{
			"S": ts.S[len(ts.S)-1], "I": ts.I[len(ts.I)-1], "R": ts.R[len(ts.R)-1],
		})
		stop()
	}

	log.Info().Str("run_id", st.runID).Float64("t_final", t).Int("events", len(st.events)).Msg("run finished")
	return ts, st.events, nil
}

// RunDiscreteSIS runs the fixed-step synchronous SIS driver.
func RunDiscreteSIS(h Hypergraph, opts DiscreteCommonOptions) (*SISTimeSeries, []EventRecord, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	st := newDiscreteState(h, &opts)
	log := opts.logger()
	log.Info().Str("run_id", st.runID).Str("driver", "discrete_sis").Float64("t_min", opts.TMin).Float64("t_max", opts.TMax).Float64("dt", opts.dt()).Msg("run started")
	kernel := opts.kernel()
	dt := opts.dt()

	infecteds, err := st.selectInitialInfecteds()
	if err != nil {
		return nil, nil, err
	}
	for _, n := range infecteds {
		st.status[n] = Infected
		st.recordEvent(opts.TMin, nil, n, Susceptible, Infected, true)
	}
	for _, n := range h.Nodes() {
		if st.status[n] == Susceptible {
			st.recordEvent(opts.TMin, nil, n, Susceptible, Susceptible, true)
		}
	}

	ts := &SISTimeSeries{
		Times: []float64{opts.TMin},
		S:     []int{h.NumNodes() - len(infecteds)},
		I:     []int{len(infecteds)},
	}

	nodes := h.Nodes()
	t := opts.TMin
	for t <= opts.TMax && ts.I[len(ts.I)-1] != 0 {
		stop := st.opts.Metrics.TimeStep()
		snapshot := st.status
		next := make(map[string]Status, len(snapshot))
		for k, v := range snapshot {
			next[k] = v
		}
		dS, dI := 0, 0
		stepTime := t + dt

		for _, node := range nodes {
			switch snapshot[node] {
			case Infected:
				if opts.Gamma > 0 && st.rng.Float64() < opts.Gamma*dt {
					next[node] = Susceptible
					dI--
					dS++
					st.recordEvent(stepTime, nil, node, Infected, Susceptible, false)
				}
			case Susceptible:
				for _, edgeID := range h.MemberHyperedges(node) {
					edge, _ := h.Edge(edgeID)
					tau := opts.Tau[len(edge.Members)]
					if tau <= 0 {
						continue
					}
					c, err := kernel(node, snapshot, edge.Members, st.rng)
					if err != nil {
						return nil, nil, err
					}
					if err := checkFinite(c); err != nil {
						return nil, nil, err
					}
					if st.rng.Float64() < tau*c*dt {
						next[node] = Infected
						dS--
						dI++
						src := edgeID
						st.recordEvent(stepTime, &src, node, Susceptible, Infected, false)
						break
					}
				}
			}
		}

		st.status = next
		t = stepTime
		ts.Times = append(ts.Times, t)
		ts.S = append(ts.S, ts.S[len(ts.S)-1]+dS)
		ts.I = append(ts.I, ts.I[len(ts.I)-1]+dI)
		st.opts.Metrics.SetCompartmentSizes(map[string]int{
			"S": ts.S[len(ts.S)-1], "I": ts.I[len(ts.I)-1],
		})
		stop()
	}

	log.Info().Str("run_id", st.runID).Float64("t_final", t).Int("events", len(st.events)).Msg("run finished")
	return ts, st.events, nil
}
