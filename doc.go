// Package hypercontagion simulates stochastic spreading processes on
// hypergraphs: epidemic-style state transitions (SIR/SIS with
// higher-order, group-mediated transmission rules) and opinion-dynamics
// updates (Deffuant-Weisbuch, Hegselmann-Krause, voter).
//
// A hypergraph has nodes and hyperedges, each hyperedge an unordered set
// of two or more nodes. Transmission and influence are mediated by whole
// groups rather than by pairs, so the core of this package is not a
// graph algorithm but a continuous-time event-driven simulator built
// around three pieces: a weighted sampling structure (WeightedIndex), a
// time-ordered event queue (EventQueue), and the Gillespie / event-driven
// drivers that keep the per-edge-size "susceptible neighbor of an
// infected group" index in sync with every status change.
//
// Hypergraph construction, visualisation, and CLI packaging are outside
// this package; it exposes a programmatic interface only.
package hypercontagion
