package hypercontagion

import "math/rand"

// ContagionKernel decides whether a hyperedge currently offers a live
// transmission opportunity to node, given the global status map and the
// edge's member list (node included). It returns a non-negative
// multiplier applied to the edge-size's base transmission rate; 0 means
// no opportunity. rng is supplied so a kernel may break ties (see
// MajorityVote) without reaching for package-level randomness, keeping
// every run reproducible from one seed.
//
// User-supplied kernels follow this exact shape, per spec.md section 5's
// "kernel: one of the standard kernels or a user-provided function of
// the same shape."
type ContagionKernel func(node string, status map[string]Status, members []string, rng *rand.Rand) (float64, error)

// infectedNeighborCount returns the number of members other than node
// that are currently Infected, along with the size of that neighbor
// set.
func infectedNeighborCount(node string, status map[string]Status, members []string) (infected, total int) {
	for _, v := range members {
		if v == node {
			continue
		}
		total++
		if status[v] == Infected {
			infected++
		}
	}
	return infected, total
}

// Collective returns 1 if every other member of the edge is Infected,
// else 0. An edge with no other members (total == 0) never fires.
func Collective(node string, status map[string]Status, members []string, rng *rand.Rand) (float64, error) {
	infected, total := infectedNeighborCount(node, status, members)
	if total == 0 {
		return 0, nil
	}
	if infected == total {
		return 1, nil
	}
	return 0, nil
}

// Individual returns 1 if at least one other member of the edge is
// Infected, else 0.
func Individual(node string, status map[string]Status, members []string, rng *rand.Rand) (float64, error) {
	infected, _ := infectedNeighborCount(node, status, members)
	if infected > 0 {
		return 1, nil
	}
	return 0, nil
}

// Threshold returns a ContagionKernel that fires (returns 1) when the
// fraction of infected neighbors is at least theta, and 0 otherwise. An
// edge with no other members never fires, matching the reference
// implementation's division-by-zero fallback to 0.
func Threshold(theta float64) ContagionKernel {
	return func(node string, status map[string]Status, members []string, rng *rand.Rand) (float64, error) {
		infected, total := infectedNeighborCount(node, status, members)
		if total == 0 {
			return 0, nil
		}
		if float64(infected) >= theta*float64(total) {
			return 1, nil
		}
		return 0, nil
	}
}

// MajorityVote returns 1 if a strict majority of the edge's other
// members are infected, 0 if a strict minority are, and otherwise
// breaks an exact tie with a single uniform coin flip from rng. The
// comparison is done with exact integer arithmetic (infected*2 against
// total) rather than dividing first, so the tie case is detected
// without floating-point drift: see the "Open Question decisions"
// entry in DESIGN.md. An edge with no other members never fires.
func MajorityVote(node string, status map[string]Status, members []string, rng *rand.Rand) (float64, error) {
	infected, total := infectedNeighborCount(node, status, members)
	if total == 0 {
		return 0, nil
	}
	switch {
	case infected*2 > total:
		return 1, nil
	case infected*2 < total:
		return 0, nil
	default:
		return float64(rng.Intn(2)), nil
	}
}

// SizeDependent returns the raw count of infected members other than
// node, rather than a boolean 0/1 gate.
func SizeDependent(node string, status map[string]Status, members []string, rng *rand.Rand) (float64, error) {
	infected, _ := infectedNeighborCount(node, status, members)
	return float64(infected), nil
}
