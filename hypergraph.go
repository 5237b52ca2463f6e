package hypercontagion

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// Hyperedge is one group in a Hypergraph: an unordered, size-2-or-more
// set of member node labels, carrying an optional weight. No kernel or
// driver in this package reads the weight; Gillespie edge weights come
// from GillespieCommonOptions.EdgeWeight instead.
type Hyperedge struct {
	ID      string
	Members []string
	Weight  float64
}

// Hypergraph is a population connected by hyperedges instead of pairwise
// edges. It generalizes the teacher's adjacencyMatrix host network from
// pairwise connections to n-ary incidence: every node tracks the set of
// hyperedges it belongs to, and every hyperedge tracks its own member
// list and size, matching the bookkeeping HyperContagion's Python
// Hypergraph performs in addEdges/generateNeighbors.
//
// Every driver in this package takes a Hypergraph rather than a concrete
// type, so a caller may substitute a different backing representation
// (a database-backed hypergraph, a read-only view over a shared corpus)
// without touching simulation code. hypergraphData is the only
// implementation this package ships.
type Hypergraph interface {
	NumNodes() int
	NumEdges() int
	HasNode(label string) bool
	Nodes() []string
	AddEdge(members []string, weight float64) (string, error)
	AddEdgeWithID(id string, members []string, weight float64) error
	Edge(id string) (*Hyperedge, bool)
	Edges() []*Hyperedge
	EdgeSizes() []int
	EdgesOfSize(n int) []string
	MemberHyperedges(node string) []string
	OtherMembers(edgeID, node string) []string
	Copy() Hypergraph
	Dump() []byte
}

// hypergraphData is the in-memory Hypergraph implementation used
// throughout this package: a plain slice-and-map representation with no
// persistence or concurrency control of its own, matching the teacher's
// adjacencyMatrix.
type hypergraphData struct {
	nodes    map[string]bool
	edges    map[string]*Hyperedge
	incident map[string][]string // node label -> hyperedge IDs it belongs to
	bySize   map[int][]string    // hyperedge size -> hyperedge IDs
	weighted bool
}

// NewHypergraph creates an empty hypergraph. weighted controls whether
// AddEdge keeps the weight it is given; unweighted hypergraphs still
// carry a weight field but every edge's weight is set to 1.
func NewHypergraph(weighted bool) Hypergraph {
	return &hypergraphData{
		nodes:    make(map[string]bool),
		edges:    make(map[string]*Hyperedge),
		incident: make(map[string][]string),
		bySize:   make(map[int][]string),
		weighted: weighted,
	}
}

// NumNodes returns the number of distinct nodes that appear in at least
// one hyperedge.
func (h *hypergraphData) NumNodes() int { return len(h.nodes) }

// NumEdges returns the number of hyperedges.
func (h *hypergraphData) NumEdges() int { return len(h.edges) }

// HasNode reports whether label names a node in the hypergraph.
func (h *hypergraphData) HasNode(label string) bool { return h.nodes[label] }

// Nodes returns the node labels in sorted order. Drivers index into this
// slice with RNG draws, so a stable order is what makes a seeded run
// reproducible rather than dependent on Go's randomized map iteration.
func (h *hypergraphData) Nodes() []string {
	out := make([]string, 0, len(h.nodes))
	for n := range h.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// AddEdge inserts a hyperedge with the given members and weight,
// auto-assigning it a ksuid-derived ID, and returns that ID. A
// hyperedge with fewer than two distinct members is rejected with
// ErrDegenerateEdge, mirroring deleteDegenerateHyperedges in the
// reference Hypergraph.
func (h *hypergraphData) AddEdge(members []string, weight float64) (string, error) {
	id := ksuid.New().String()
	if err := h.AddEdgeWithID(id, members, weight); err != nil {
		return "", err
	}
	return id, nil
}

// AddEdgeWithID inserts a hyperedge under a caller-supplied ID, for
// callers (loaders, tests) that need deterministic edge identifiers.
func (h *hypergraphData) AddEdgeWithID(id string, members []string, weight float64) error {
	distinct := dedupeStrings(members)
	if len(distinct) < 2 {
		return errors.Wrapf(ErrDegenerateEdge, "edge %s has %d distinct member(s)", id, len(distinct))
	}
	if weight < 0 {
		return errors.Wrapf(ErrNegativeWeight, "edge %s weight %f", id, weight)
	}
	if _, exists := h.edges[id]; exists {
		return errors.Errorf("hypercontagion: hyperedge id %q already exists", id)
	}
	if !h.weighted {
		weight = 1
	}
	edge := &Hyperedge{ID: id, Members: distinct, Weight: weight}
	h.edges[id] = edge
	h.bySize[len(distinct)] = append(h.bySize[len(distinct)], id)
	for _, m := range distinct {
		h.nodes[m] = true
		h.incident[m] = append(h.incident[m], id)
	}
	return nil
}

// Edge returns the hyperedge with the given ID and whether it exists.
func (h *hypergraphData) Edge(id string) (*Hyperedge, bool) {
	e, ok := h.edges[id]
	return e, ok
}

// Edges returns every hyperedge in an unspecified order.
func (h *hypergraphData) Edges() []*Hyperedge {
	out := make([]*Hyperedge, 0, len(h.edges))
	for _, e := range h.edges {
		out = append(out, e)
	}
	return out
}

// EdgeSizes returns the distinct hyperedge sizes present, ascending,
// matching getHyperedgeSizes in the reference implementation.
func (h *hypergraphData) EdgeSizes() []int {
	sizes := make([]int, 0, len(h.bySize))
	for s := range h.bySize {
		sizes = append(sizes, s)
	}
	sort.Ints(sizes)
	return sizes
}

// EdgesOfSize returns the IDs of every hyperedge with exactly n members.
func (h *hypergraphData) EdgesOfSize(n int) []string {
	ids := h.bySize[n]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// MemberHyperedges returns the IDs of every hyperedge that node belongs
// to, the generalization of GetNeighbors from pairwise adjacency to
// incidence.
func (h *hypergraphData) MemberHyperedges(node string) []string {
	ids := h.incident[node]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// OtherMembers returns every member of edgeID other than node. It is
// the hypergraph analogue of the reference Hypergraph's per-neighbor
// "neighbors" tuple computed in generateNeighbors.
func (h *hypergraphData) OtherMembers(edgeID, node string) []string {
	e, ok := h.edges[edgeID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.Members)-1)
	for _, m := range e.Members {
		if m != node {
			out = append(out, m)
		}
	}
	return out
}

// Copy returns a deep copy of the hypergraph. Changes to the copy never
// affect the original and vice versa, matching adjacencyMatrix.Copy's
// contract in the teacher's network.go.
func (h *hypergraphData) Copy() Hypergraph {
	n := NewHypergraph(h.weighted).(*hypergraphData)
	for id, e := range h.edges {
		members := make([]string, len(e.Members))
		copy(members, e.Members)
		n.edges[id] = &Hyperedge{ID: id, Members: members, Weight: e.Weight}
	}
	for node := range h.nodes {
		n.nodes[node] = true
	}
	for node, ids := range h.incident {
		cp := make([]string, len(ids))
		copy(cp, ids)
		n.incident[node] = cp
	}
	for size, ids := range h.bySize {
		cp := make([]string, len(ids))
		copy(cp, ids)
		n.bySize[size] = cp
	}
	return n
}

// Dump serializes the hypergraph to a deterministic, sorted-by-edge-ID
// text form, one hyperedge per line, following the Dump convention in
// the teacher's network.go.
func (h *hypergraphData) Dump() []byte {
	ids := make([]string, 0, len(h.edges))
	for id := range h.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b := new(bytes.Buffer)
	for _, id := range ids {
		e := h.edges[id]
		members := make([]string, len(e.Members))
		copy(members, e.Members)
		sort.Strings(members)
		fmt.Fprintf(b, "%s\t%f\t%v\n", e.ID, e.Weight, members)
	}
	return b.Bytes()
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
