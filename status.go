// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

// Status is the lifecycle state of an [Event].
//
// State Machine:
//
//	StatusPending → StatusRunning      [Event.Start]
//	StatusRunning → StatusCompleted    [Event.Complete]
//	StatusRunning → StatusFailed       [Event.Fail]
//
// StatusCompleted and StatusFailed are terminal.
type Status uint8

const (
	// StatusPending indicates the event has been constructed but not started.
	StatusPending Status = iota
	// StatusRunning indicates the recorded work is executing.
	StatusRunning
	// StatusCompleted indicates the work returned normally.
	StatusCompleted
	// StatusFailed indicates the work returned an error or panicked.
	StatusFailed
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
