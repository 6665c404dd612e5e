// Package appstate tracks process liveness and readiness for the health
// endpoints and the long-running consumers.
package appstate

import "sync/atomic"

// State holds the alive and ready flags. The zero value is not alive and not ready.
type State struct {
	alive atomic.Bool
	ready atomic.Bool
}

// New returns a State that is alive but not yet ready.
func New() *State {
	s := &State{}
	s.alive.Store(true)
	return s
}

func (s *State) Alive() bool { return s.alive.Load() }
func (s *State) Ready() bool { return s.ready.Load() }

// MarkReady flags the process as ready to serve traffic.
func (s *State) MarkReady() { s.ready.Store(true) }

// Shutdown clears both flags so that consumer loops exit and probes fail.
func (s *State) Shutdown() {
	s.ready.Store(false)
	s.alive.Store(false)
}

// Fail marks the process as not alive after an unrecoverable error, letting
// the platform restart it.
func (s *State) Fail() {
	s.alive.Store(false)
	s.ready.Store(false)
}
