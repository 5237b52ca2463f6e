package hypercontagion

import "math/rand"

// WeightedIndex is a container of distinct, comparable items supporting
// O(1)-amortised insert/remove/update and a weighted-uniform random draw
// by rejection sampling. The unweighted case (every item has weight 1)
// degenerates to uniform sampling over the contained items.
//
// Representation: a dynamic slice of items plus an item-to-position map
// gives O(1) insertion and O(1) removal (swap with the last element,
// then pop). A parallel weight map, a running total weight, a running
// max weight, and a count of how many items currently hold that max
// weight let ChooseRandom reject-sample without ever scanning the whole
// container, and let the max weight be recomputed only when its last
// holder leaves.
//
// It is permitted for maxWeight to lag strictly above the true maximum
// after a removal that left no more holders at the old max but a
// recompute has not yet triggered; ChooseRandom stays correct, only
// slower, for as long as that lag persists. This is the slot documented
// in spec.md section 9 where a Fenwick tree or the alias method would
// drop in without changing any caller.
type WeightedIndex[T comparable] struct {
	items        []T
	itemPosition map[T]int
	weight       map[T]float64
	totalWeight  float64
	maxWeight    float64
	maxHolders   int
	rng          *rand.Rand
}

// NewWeightedIndex creates an empty WeightedIndex drawing randomness from
// rng. rng must not be nil and must not be shared across goroutines
// concurrently with this index (it is normally the RNG owned by one
// driver run's state).
func NewWeightedIndex[T comparable](rng *rand.Rand) *WeightedIndex[T] {
	return &WeightedIndex[T]{
		itemPosition: make(map[T]int),
		weight:       make(map[T]float64),
		rng:          rng,
	}
}

// Len returns the number of items currently held.
func (w *WeightedIndex[T]) Len() int {
	return len(w.items)
}

// Contains reports whether item is present.
func (w *WeightedIndex[T]) Contains(item T) bool {
	_, ok := w.itemPosition[item]
	return ok
}

// TotalWeight returns the sum of all weights, or the cardinality of the
// index if every item carries the implicit weight of 1.
func (w *WeightedIndex[T]) TotalWeight() float64 {
	return w.totalWeight
}

// Insert adds item with the given weight. If item is already present,
// its weight is overwritten (not incremented). A weight of exactly zero
// removes the item instead of inserting it.
func (w *WeightedIndex[T]) Insert(item T, weight float64) {
	if w.Contains(item) {
		w.Remove(item)
	}
	if weight != 0 {
		w.Update(item, weight)
	}
}

// Update inserts item with weight delta if absent, or increments its
// existing weight by delta. delta may be negative; the caller is
// responsible for never driving an individual weight below zero.
func (w *WeightedIndex[T]) Update(item T, delta float64) {
	wasMax := w.weight[item] == w.maxWeight && w.Contains(item)
	newWeight := w.weight[item] + delta
	if delta < 0 && wasMax {
		w.maxHolders--
	}
	w.weight[item] = newWeight
	w.totalWeight += delta
	switch {
	case newWeight > w.maxWeight:
		w.maxWeight = newWeight
		w.maxHolders = 1
	case newWeight == w.maxWeight:
		if !wasMax {
			w.maxHolders++
		}
	}
	if delta < 0 && wasMax && w.maxHolders == 0 {
		w.recomputeMaxWeight()
	}
	if !w.Contains(item) {
		w.items = append(w.items, item)
		w.itemPosition[item] = len(w.items) - 1
	}
}

// Remove deletes item. It is a no-op if item is absent.
func (w *WeightedIndex[T]) Remove(item T) {
	pos, ok := w.itemPosition[item]
	if !ok {
		return
	}
	last := len(w.items) - 1
	lastItem := w.items[last]
	w.items[pos] = lastItem
	w.itemPosition[lastItem] = pos
	w.items = w.items[:last]
	delete(w.itemPosition, item)

	weight := w.weight[item]
	delete(w.weight, item)
	w.totalWeight -= weight
	if weight == w.maxWeight {
		w.maxHolders--
		if w.maxHolders == 0 {
			w.recomputeMaxWeight()
		}
	}
}

func (w *WeightedIndex[T]) recomputeMaxWeight() {
	max := 0.0
	holders := 0
	for _, it := range w.items {
		wt := w.weight[it]
		switch {
		case wt > max:
			max = wt
			holders = 1
		case wt == max:
			holders++
		}
	}
	w.maxWeight = max
	w.maxHolders = holders
}

// ChooseRandom returns an item sampled with probability proportional to
// its weight, without removing it. It is a caller error to call
// ChooseRandom on an empty index; the loop invariants of every driver in
// this package guarantee non-emptiness before calling, so this path
// panics with ErrEmptyWeightedIndex rather than returning a zero value
// that would silently corrupt a transmission channel.
func (w *WeightedIndex[T]) ChooseRandom() T {
	if len(w.items) == 0 {
		panic(ErrEmptyWeightedIndex)
	}
	// Every item present carries a strictly positive weight: Insert
	// removes rather than stores a zero weight, so maxWeight > 0 here.
	for {
		candidate := w.items[w.rng.Intn(len(w.items))]
		if w.rng.Float64() < w.weight[candidate]/w.maxWeight {
			return candidate
		}
	}
}

// RandomRemoval chooses an item as ChooseRandom does, removes it, and
// returns it.
func (w *WeightedIndex[T]) RandomRemoval() T {
	choice := w.ChooseRandom()
	w.Remove(choice)
	return choice
}
