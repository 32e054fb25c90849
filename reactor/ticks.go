// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"github.com/joeycumines/go-loopprof"
)

// NextTick schedules listener to run at the start of the next iteration,
// before future ticks and timers. Next ticks added by a next tick run in the
// same pass.
func (r *Reactor) NextTick(listener loopprof.TickListener) error {
	return r.enqueueTick(&r.nextTicks, listener)
}

// FutureTick schedules listener to run in the next iteration, after next
// ticks. Future ticks added by a future tick run in a later pass.
func (r *Reactor) FutureTick(listener loopprof.TickListener) error {
	return r.enqueueTick(&r.futureTicks, listener)
}

func (r *Reactor) enqueueTick(queue *[]loopprof.TickListener, listener loopprof.TickListener) error {
	if listener == nil {
		return ErrNilCallback
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrLoopClosed
	}
	*queue = append(*queue, listener)
	r.mu.Unlock()

	r.wakeIfSleeping()

	return nil
}

// runNextTicks drains the next tick queue, including ticks enqueued while
// draining.
func (r *Reactor) runNextTicks() {
	for {
		listener, ok := r.popTick(&r.nextTicks)
		if !ok {
			return
		}
		listener()
	}
}

// runFutureTicks runs the future ticks queued as of the start of the pass.
func (r *Reactor) runFutureTicks() {
	r.mu.Lock()
	n := len(r.futureTicks)
	r.mu.Unlock()

	for ; n > 0; n-- {
		listener, ok := r.popTick(&r.futureTicks)
		if !ok {
			return
		}
		listener()
	}
}

func (r *Reactor) popTick(queue *[]loopprof.TickListener) (loopprof.TickListener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := *queue
	if len(q) == 0 {
		return nil, false
	}
	listener := q[0]
	q[0] = nil
	*queue = q[1:]
	if len(*queue) == 0 {
		*queue = nil
	}
	return listener, true
}
