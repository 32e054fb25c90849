// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"sync/atomic"
)

// State is the lifecycle state of a [Reactor].
//
// State Machine:
//
//	StateAwake → StateRunning (Run or Tick)
//	StateRunning ⇄ StateSleeping (blocking poll)
//	StateRunning → StateAwake (Run or Tick returns)
//	StateAwake → StateTerminated (Close)
type State uint64

const (
	// StateAwake is idle, ready to Run or Tick.
	StateAwake State = iota
	// StateRunning is executing an iteration.
	StateRunning
	// StateSleeping is blocked in the poller, waiting for I/O, a timer, or a
	// wakeup.
	StateSleeping
	// StateTerminated is closed, permanently.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine, transitions are CAS only.
type fastState struct {
	v atomic.Uint64
}

func (s *fastState) Load() State {
	return State(s.v.Load())
}

func (s *fastState) Store(state State) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsRunning returns true if Run or Tick is active.
func (s *fastState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}
