package hypercontagion

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nwlandry/hypercontagion/internal/eventlog"
	"github.com/nwlandry/hypercontagion/internal/metrics"
)

// EventDrivenCommonOptions holds the parameters shared by
// RunEventDrivenSIR and RunEventDrivenSIS. Unlike the Gillespie driver,
// transmission and recovery delays need not be exponential: supplying
// TransTimeFunc/RecTimeFunc or CombinedTimeFunc overrides the default
// Markovian provider described in spec.md section 4.F.
type EventDrivenCommonOptions struct {
	Tau              map[int]float64
	Gamma            float64
	Kernel           ContagionKernel
	InitialInfecteds []string
	Rho              *float64
	TMin, TMax       float64
	// TransTimeFunc, if set, returns the delay until a transmission
	// across the given edge would occur. Mutually exclusive with
	// CombinedTimeFunc.
	TransTimeFunc func(edgeMembers []string, rng *rand.Rand) float64
	// RecTimeFunc, if set, returns a node's recovery delay. Mutually
	// exclusive with CombinedTimeFunc.
	RecTimeFunc func(node string, rng *rand.Rand) float64
	// CombinedTimeFunc, if set, returns both a transmission delay (over
	// edgeMembers) and node's recovery delay from one correlated draw.
	// Mutually exclusive with TransTimeFunc/RecTimeFunc.
	CombinedTimeFunc func(node string, edgeMembers []string, rng *rand.Rand) (transDelay, recDelay float64)
	ReturnEventData  bool
	Rng              *rand.Rand
	// EventSink, if non-nil, receives every recorded event as it
	// happens, independent of ReturnEventData. RunID identifies the run
	// to the sink; a fresh ksuid is minted if left empty.
	EventSink eventlog.Sink
	RunID     string
	// Metrics, if non-nil, is updated with per-event observations as the
	// run progresses.
	Metrics *metrics.RunCollector
	// Logger receives run start/termination-reason messages at Info
	// level. Defaults to a no-op logger when nil.
	Logger *zerolog.Logger
}

func (o *EventDrivenCommonOptions) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}

func (o *EventDrivenCommonOptions) validate() error {
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
	if o.CombinedTimeFunc != nil && (o.TransTimeFunc != nil || o.RecTimeFunc != nil) {
		return ErrConflictingTimeProviders
	}
	return nil
}

func (o *EventDrivenCommonOptions) rng() *rand.Rand {
	if o.Rng != nil {
		return o.Rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (o *EventDrivenCommonOptions) kernel() ContagionKernel {
	if o.Kernel == nil {
		return Threshold(0.5)
	}
	return o.Kernel
}

func (o *EventDrivenCommonOptions) delays(node string, edgeMembers []string, rng *rand.Rand) (transDelay, recDelay float64) {
	if o.CombinedTimeFunc != nil {
		return o.CombinedTimeFunc(node, edgeMembers, rng)
	}
	if o.TransTimeFunc != nil {
		transDelay = o.TransTimeFunc(edgeMembers, rng)
	} else {
		tau := o.Tau[len(edgeMembers)]
		if tau > 0 {
			transDelay = rng.ExpFloat64() / tau
		} else {
			transDelay = math.Inf(1)
		}
	}
	if o.RecTimeFunc != nil {
		recDelay = o.RecTimeFunc(node, rng)
	} else if o.Gamma > 0 {
		recDelay = rng.ExpFloat64() / o.Gamma
	} else {
		recDelay = math.Inf(1)
	}
	return transDelay, recDelay
}

// eventDrivenState is the mutable bookkeeping threaded through the
// non-Markovian SIR/SIS event handlers.
type eventDrivenState struct {
	h           Hypergraph
	opts        *EventDrivenCommonOptions
	rng         *rand.Rand
	status      map[string]Status
	recTime     map[string]float64
	predInfTime map[string]float64
	queue       *EventQueue
	events      []EventRecord
	runID       string

	times  []float64
	S, I, R []int
}

func newEventDrivenState(h Hypergraph, opts *EventDrivenCommonOptions) *eventDrivenState {
	rng := opts.rng()
	runID := opts.RunID
	if runID == "" && opts.EventSink != nil {
		runID = eventlog.NewRunID()
	}
	st := &eventDrivenState{
		h:           h,
		opts:        opts,
		rng:         rng,
		status:      make(map[string]Status, h.NumNodes()),
		recTime:     make(map[string]float64, h.NumNodes()),
		predInfTime: make(map[string]float64, h.NumNodes()),
		queue:       NewEventQueue(opts.TMax),
		runID:       runID,
	}
	for _, n := range h.Nodes() {
		st.status[n] = Susceptible
		st.recTime[n] = opts.TMin - 1
		st.predInfTime[n] = math.Inf(1)
	}
	return st
}

func (st *eventDrivenState) recordEvent(t float64, source *string, target string, old, new_ Status, initial bool) {
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

func (st *eventDrivenState) selectInitialInfecteds() ([]string, error) {
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

// projectedStatusSIR builds the status snapshot edge members would hold
// at infTime, assuming no further transitions besides scheduled
// recoveries: susceptible members stay susceptible; infected members
// stay infected only if their scheduled recovery is still in the
// future; everyone else (already recovered, or due to recover by
// infTime) is projected as recovered.
func (st *eventDrivenState) projectedStatusSIR(members []string, infTime float64) map[string]Status {
	projected := make(map[string]Status, len(members))
	for _, node := range members {
		switch {
		case st.status[node] == Infected && st.recTime[node] > infTime:
			projected[node] = Infected
		case st.status[node] == Susceptible:
			projected[node] = Susceptible
		default:
			projected[node] = Recovered
		}
	}
	return projected
}

// projectedStatusSIS is the SIS analogue: there is no recovered
// compartment, so anyone not projected infected defaults to
// susceptible.
func (st *eventDrivenState) projectedStatusSIS(members []string, infTime float64) map[string]Status {
	projected := make(map[string]Status, len(members))
	for _, node := range members {
		if st.status[node] == Infected && st.recTime[node] > infTime {
			projected[node] = Infected
		} else {
			projected[node] = Susceptible
		}
	}
	return projected
}

// processTransmissionSIR is scheduled by the event queue to attempt
// infecting target at time t. It is a no-op if target is no longer
// susceptible by the time it runs.
func (st *eventDrivenState) processTransmissionSIR(t float64, source *string, target string, initial bool) error {
	if st.status[target] != Susceptible {
		return nil
	}
	st.status[target] = Infected
	st.recordEvent(t, source, target, Susceptible, Infected, initial)
	// Initial infecteds are already counted in the series' first entry.
	if !initial {
		st.times = append(st.times, t)
		st.S = append(st.S, st.S[len(st.S)-1]-1)
		st.I = append(st.I, st.I[len(st.I)-1]+1)
		st.R = append(st.R, st.R[len(st.R)-1])
	}

	_, recDelay := st.opts.delays(target, nil, st.rng)
	st.recTime[target] = t + recDelay
	if st.recTime[target] < st.opts.TMax {
		st.queue.AddRecovery(st.recTime[target], target)
	}

	for _, edgeID := range st.h.MemberHyperedges(target) {
		edge, _ := st.h.Edge(edgeID)
		for _, nbr := range edge.Members {
			if st.status[nbr] != Susceptible {
				continue
			}
			transDelay, _ := st.opts.delays(nbr, edge.Members, st.rng)
			infTime := t + transDelay
			projected := st.projectedStatusSIR(edge.Members, infTime)
			c, err := st.opts.kernel()(nbr, projected, edge.Members, st.rng)
			if err != nil {
				return err
			}
			if err := checkFinite(c); err != nil {
				return err
			}
			if c != 0 && infTime < st.predInfTime[nbr] && infTime < st.opts.TMax {
				src := edgeID
				st.queue.AddTransmission(infTime, &src, nbr, false)
				st.predInfTime[nbr] = infTime
			}
		}
	}
	return nil
}

func (st *eventDrivenState) processRecoverySIR(t float64, node string) {
	st.times = append(st.times, t)
	st.recordEvent(t, nil, node, Infected, Recovered, false)
	st.S = append(st.S, st.S[len(st.S)-1])
	st.I = append(st.I, st.I[len(st.I)-1]-1)
	st.R = append(st.R, st.R[len(st.R)-1]+1)
	st.status[node] = Recovered
}

func (st *eventDrivenState) processTransmissionSIS(t float64, source *string, target string, initial bool) error {
	if st.status[target] != Susceptible {
		return nil
	}
	st.status[target] = Infected
	st.recordEvent(t, source, target, Susceptible, Infected, initial)
	// Initial infecteds are already counted in the series' first entry.
	if !initial {
		st.times = append(st.times, t)
		st.S = append(st.S, st.S[len(st.S)-1]-1)
		st.I = append(st.I, st.I[len(st.I)-1]+1)
	}

	_, recDelay := st.opts.delays(target, nil, st.rng)
	st.recTime[target] = t + recDelay
	if st.recTime[target] < st.opts.TMax {
		st.queue.AddRecovery(st.recTime[target], target)
	}

	for _, edgeID := range st.h.MemberHyperedges(target) {
		edge, _ := st.h.Edge(edgeID)
		for _, nbr := range edge.Members {
			if st.status[nbr] != Susceptible {
				continue
			}
			transDelay, _ := st.opts.delays(nbr, edge.Members, st.rng)
			infTime := t + transDelay
			projected := st.projectedStatusSIS(edge.Members, infTime)
			c, err := st.opts.kernel()(nbr, projected, edge.Members, st.rng)
			if err != nil {
				return err
			}
			if err := checkFinite(c); err != nil {
				return err
			}
			if c != 0 && infTime < st.predInfTime[nbr] && infTime < st.opts.TMax {
				src := edgeID
				st.queue.AddTransmission(infTime, &src, nbr, false)
				st.predInfTime[nbr] = infTime
			}
		}
	}
	return nil
}

func (st *eventDrivenState) processRecoverySIS(t float64, node string) {
	st.times = append(st.times, t)
	st.recordEvent(t, nil, node, Infected, Susceptible, false)
	st.S = append(st.S, st.S[len(st.S)-1]+1)
	st.I = append(st.I, st.I[len(st.I)-1]-1)
	st.status[node] = Susceptible
}

// RunEventDrivenSIR runs the non-Markovian SIR driver: transmissions and
// recoveries are pre-scheduled on an EventQueue rather than drawn one
// channel at a time.
func RunEventDrivenSIR(h Hypergraph, opts EventDrivenCommonOptions, initialRecovereds []string) (*SIRTimeSeries, []EventRecord, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	st := newEventDrivenState(h, &opts)
	log := opts.logger()
	log.Info().Str("run_id", st.runID).Str("driver", "event_driven_sir").Float64("t_min", opts.TMin).Float64("t_max", opts.TMax).Msg("run started")

	infecteds, err := st.selectInitialInfecteds()
	if err != nil {
		return nil, nil, err
	}
	for _, n := range initialRecovereds {
		if !h.HasNode(n) {
			return nil, nil, errors.Wrapf(ErrUnknownNode, "initial recovered %q", n)
		}
		st.status[n] = Recovered
	}

	st.times = []float64{opts.TMin}
	st.S = []int{h.NumNodes() - len(infecteds) - len(initialRecovereds)}
	st.I = []int{len(infecteds)}
	st.R = []int{len(initialRecovereds)}

	for _, n := range infecteds {
		st.queue.AddTransmission(opts.TMin, nil, n, true)
	}
	for _, n := range initialRecovereds {
		st.recordEvent(opts.TMin, nil, n, Infected, Recovered, true)
	}
	for _, n := range h.Nodes() {
		if st.status[n] == Susceptible {
			st.recordEvent(opts.TMin, nil, n, Susceptible, Susceptible, true)
		}
	}

	for st.queue.Len() > 0 {
		kind, t, source, target, initial := st.queue.Pop()
		switch kind {
		case transmissionEvent:
			if err := st.processTransmissionSIR(t, source, target, initial); err != nil {
				return nil, nil, err
			}
		case recoveryEvent:
			st.processRecoverySIR(t, target)
		}
	}

	log.Info().Str("run_id", st.runID).Int("events", len(st.events)).Msg("run finished")
	return &SIRTimeSeries{Times: st.times, S: st.S, I: st.I, R: st.R}, st.events, nil
}

// RunEventDrivenSIS runs the non-Markovian SIS driver.
func RunEventDrivenSIS(h Hypergraph, opts EventDrivenCommonOptions) (*SISTimeSeries, []EventRecord, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	st := newEventDrivenState(h, &opts)
	log := opts.logger()
	log.Info().Str("run_id", st.runID).Str("driver", "event_driven_sis").Float64("t_min", opts.TMin).Float64("t_max", opts.TMax).Msg("run started")

	infecteds, err := st.selectInitialInfecteds()
	if err != nil {
		return nil, nil, err
	}

	st.times = []float64{opts.TMin}
	st.S = []int{h.NumNodes() - len(infecteds)}
	st.I = []int{len(infecteds)}

	for _, n := range infecteds {
		st.queue.AddTransmission(opts.TMin, nil, n, true)
	}
	for _, n := range h.Nodes() {
		if st.status[n] == Susceptible {
			st.recordEvent(opts.TMin, nil, n, Susceptible, Susceptible, true)
		}
	}

	for st.queue.Len() > 0 {
		kind, t, source, target, initial := st.queue.Pop()
		switch kind {
		case transmissionEvent:
			if err := st.processTransmissionSIS(t, source, target, initial); err != nil {
				return nil, nil, err
			}
		case recoveryEvent:
			st.processRecoverySIS(t, target)
		}
	}

	log.Info().Str("run_id", st.runID).Int("events", len(st.events)).Msg("run finished")
	return &SISTimeSeries{Times: st.times, S: st.S, I: st.I}, st.events, nil
}
