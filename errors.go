package hypercontagion

import "github.com/pkg/errors"

// Sentinel errors for the error taxonomy of the simulation call surface.
// Callers can match these with errors.Is even after a call site wraps
// them with errors.Wrap/Wrapf for context.
var (
	// ErrConflictingInitialCondition is returned when both Rho and
	// InitialInfecteds are specified; they are mutually exclusive.
	ErrConflictingInitialCondition = errors.New("hypercontagion: cannot specify both rho and initial infecteds")

	// ErrConflictingTimeProviders is returned when both a custom
	// transmission-time function and a combined transmission-and-recovery
	// time function are supplied to the event-driven driver.
	ErrConflictingTimeProviders = errors.New("hypercontagion: cannot specify both a transmission time function and a combined transmission/recovery time function")

	// ErrNegativeRate is returned when gamma or an entry of tau is
	// negative.
	ErrNegativeRate = errors.New("hypercontagion: rate must be non-negative")

	// ErrNegativeWeight is returned when a node or edge weight is
	// negative.
	ErrNegativeWeight = errors.New("hypercontagion: weight must be non-negative")

	// ErrDegenerateEdge is returned by hypergraph construction helpers
	// that choose to fail rather than silently discard a malformed edge.
	ErrDegenerateEdge = errors.New("hypercontagion: hyperedge has fewer than 2 members")

	// ErrEmptyWeightedIndex is returned by WeightedIndex.ChooseRandom on
	// an empty index. Callers must guarantee non-emptiness; this error
	// exists so a violation fails loudly instead of corrupting state.
	ErrEmptyWeightedIndex = errors.New("hypercontagion: choose_random called on an empty WeightedIndex")

	// ErrInvalidRho is returned when Rho is outside [0, 1].
	ErrInvalidRho = errors.New("hypercontagion: rho must be in [0, 1]")

	// ErrUnknownNode is returned when an initial-condition node label is
	// not present in the hypergraph.
	ErrUnknownNode = errors.New("hypercontagion: node not found in hypergraph")

	// ErrNonFiniteKernelResult is returned when a contagion kernel
	// produces NaN or +/-Inf; malformed kernels abort rather than
	// silently corrupting the simulation.
	ErrNonFiniteKernelResult = errors.New("hypercontagion: contagion kernel returned a non-finite value")
)

// Message constants for test assertions, matching the teacher's
// t.Errorf(ConstantName, ...) convention.
const (
	UnequalFloatParameterError  = "expected %s %f, instead got %f"
	UnequalIntParameterError    = "expected %s %d, instead got %d"
	UnequalStringParameterError = "expected %s %s, instead got %s"
	UnexpectedErrorWhileError   = "encountered error while %s: %s"
	ExpectedErrorWhileError     = "expected an error while %s, instead got none"
)
