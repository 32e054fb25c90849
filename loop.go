// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

import (
	"context"
	"strconv"
	"time"
)

type (
	// TimerID identifies a timer registered via [Loop.AddTimer] or
	// [Loop.AddPeriodicTimer]. The zero value is never a valid timer.
	TimerID uint64

	// StreamListener is called with the file descriptor that became ready.
	StreamListener func(fd int)

	// TimerCallback is called with the timer that fired.
	TimerCallback func(id TimerID)

	// TickListener is called once, from the next or a future tick.
	TickListener func()

	// Loop is the reactor loop capability set that a [Proxy] instruments.
	//
	// Each callback-accepting operation must accept a replacement callback
	// with the same signature, which is how the proxy attributes callback
	// executions back to their registration.
	Loop interface {
		// AddReadStream calls listener whenever fd is readable.
		AddReadStream(fd int, listener StreamListener) error

		// AddWriteStream calls listener whenever fd is writable.
		AddWriteStream(fd int, listener StreamListener) error

		// RemoveReadStream stops watching fd for readability.
		RemoveReadStream(fd int) error

		// RemoveWriteStream stops watching fd for writability.
		RemoveWriteStream(fd int) error

		// RemoveStream removes both the read and write watchers of fd.
		RemoveStream(fd int) error

		// AddTimer calls callback once, after interval.
		AddTimer(interval time.Duration, callback TimerCallback) (TimerID, error)

		// AddPeriodicTimer calls callback every interval, until cancelled.
		AddPeriodicTimer(interval time.Duration, callback TimerCallback) (TimerID, error)

		// CancelTimer cancels the timer, if it is active.
		CancelTimer(id TimerID)

		// IsTimerActive reports whether the timer is still scheduled.
		IsTimerActive(id TimerID) bool

		// NextTick schedules listener to run before any other events, on the
		// next iteration.
		NextTick(listener TickListener) error

		// FutureTick schedules listener to run after next ticks, on the next
		// iteration.
		FutureTick(listener TickListener) error

		// Tick performs a single, non-blocking iteration.
		Tick() error

		// Run iterates until stopped, ctx is done, or there is nothing left
		// to do.
		Run(ctx context.Context) error

		// Stop causes Run to return, at the end of the current iteration.
		Stop()
	}
)

// String implements fmt.Stringer.
func (x TimerID) String() string {
	return `timer:` + strconv.FormatUint(uint64(x), 10)
}
