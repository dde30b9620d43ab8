// Package rest provides the read-only status API of a running simulation.
// The engine itself is single-threaded, so handlers never touch the System:
// the driving loop publishes immutable StatusSnapshot values into a Store and
// the API serves the latest one.
package rest

import (
	"sync/atomic"
)

// RuleStatus is one rule's outcome counters in a snapshot.
type RuleStatus struct {
	Name    string `json:"name"`
	Applied int64  `json:"applied"`
	Failed  int64  `json:"failed"`
}

// StatusSnapshot is an immutable view of a simulation published between steps.
type StatusSnapshot struct {
	RunID       string             `json:"run_id"`
	Model       string             `json:"model"`
	Time        float64            `json:"time"`
	Events      int64              `json:"events"`
	Agents      int                `json:"agents"`
	Observables map[string]float64 `json:"observables"`
	Rules       []RuleStatus       `json:"rules"`
}

// Store hands the latest snapshot from the simulation loop to the handlers.
// Set and Latest are safe for concurrent use.
type Store struct {
	current atomic.Value // StatusSnapshot
}

// NewStore constructs a Store primed with an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(StatusSnapshot{Observables: map[string]float64{}})
	return s
}

// Set publishes a new snapshot.
func (s *Store) Set(snapshot StatusSnapshot) { s.current.Store(snapshot) }

// Latest returns the most recently published snapshot.
func (s *Store) Latest() StatusSnapshot { return s.current.Load().(StatusSnapshot) }
