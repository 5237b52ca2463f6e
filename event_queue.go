package hypercontagion

import (
	"container/heap"
	"math"
)

// eventKind tags a queuedEvent with which handler in the event-driven
// drivers must process it. The event queue stores this tag instead of a
// closure so that every entry is inspectable and replayable without
// invoking arbitrary code at pop time.
type eventKind uint8

const (
	// transmissionEvent is an attempt by source (nil for an initial
	// seeding) to infect target at the scheduled time.
	transmissionEvent eventKind = iota
	// recoveryEvent is target's scheduled recovery.
	recoveryEvent
)

// queuedEvent is one pending entry in an EventQueue: a time, a
// monotonically increasing insertion counter that breaks ties, and the
// tagged payload a RunEventDriven* loop needs to replay the event.
type queuedEvent struct {
	time    float64
	seq     uint64
	kind    eventKind
	source  *string
	target  string
	initial bool
	heapIdx int
}

// eventHeap implements heap.Interface ordered strictly by (time, seq),
// the shape lvlath's dijkstra package uses for its own
// container/heap-backed priority queue.
type eventHeap []*queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *eventHeap) Push(x interface{}) {
	e := x.(*queuedEvent)
	e.heapIdx = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// EventQueue is a bounded-horizon min-priority queue of scheduled,
// tagged events used by the non-Markovian event-driven drivers. Entries
// at or after tmax are silently dropped at Add time; entries that tie
// on time run in insertion order, which is what makes a seeded run
// reproducible.
type EventQueue struct {
	h    eventHeap
	tmax float64
	seq  uint64
}

// NewEventQueue creates an EventQueue bounded by tmax. A tmax of
// math.Inf(1) accepts every event regardless of time.
func NewEventQueue(tmax float64) *EventQueue {
	return &EventQueue{tmax: tmax}
}

// NewUnboundedEventQueue creates an EventQueue with tmax = +Inf.
func NewUnboundedEventQueue() *EventQueue {
	return NewEventQueue(math.Inf(1))
}

// TMax returns the queue's horizon.
func (q *EventQueue) TMax() float64 { return q.tmax }

func (q *EventQueue) push(e *queuedEvent) {
	if e.time >= q.tmax {
		return
	}
	e.seq = q.seq
	heap.Push(&q.h, e)
	q.seq++
}

// AddTransmission schedules a transmission event: source (nil for an
// initial seeding) attempting to infect target at time t. Events at or
// after the queue's horizon are silently dropped, matching the
// teacher's convention that an out-of-horizon schedule is not an
// error.
func (q *EventQueue) AddTransmission(t float64, source *string, target string, initial bool) {
	q.push(&queuedEvent{time: t, kind: transmissionEvent, source: source, target: target, initial: initial})
}

// AddRecovery schedules target's recovery at time t.
func (q *EventQueue) AddRecovery(t float64, target string) {
	q.push(&queuedEvent{time: t, kind: recoveryEvent, target: target})
}

// Pop removes and returns the earliest-time entry's tag and payload. It
// panics if the queue is empty; callers drive the queue with
// `for q.Len() > 0`.
func (q *EventQueue) Pop() (kind eventKind, t float64, source *string, target string, initial bool) {
	e := heap.Pop(&q.h).(*queuedEvent)
	return e.kind, e.time, e.source, e.target, e.initial
}

// Len reports the number of pending entries.
func (q *EventQueue) Len() int { return len(q.h) }
