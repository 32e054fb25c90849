// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package looptest provides a scriptable [loopprof.Loop], for testing
// subscribers without a real reactor.
package looptest

import (
	"context"
	"sync"
	"time"

	"github.com/joeycumines/go-loopprof"
)

// Loop stores callbacks rather than firing them, see [Loop.FireTimer] and
// [Loop.FireTicks].
type Loop struct {
	// Err, if set, is returned by every error-returning operation.
	Err error

	// RunFunc, if set, implements Run.
	RunFunc func(ctx context.Context) error

	mu          sync.Mutex
	timers      map[loopprof.TimerID]loopprof.TimerCallback
	readers     map[int]loopprof.StreamListener
	ticks       []loopprof.TickListener
	nextTimerID loopprof.TimerID
}

var _ loopprof.Loop = (*Loop)(nil)

// New returns an empty Loop.
func New() *Loop {
	return &Loop{
		timers:  make(map[loopprof.TimerID]loopprof.TimerCallback),
		readers: make(map[int]loopprof.StreamListener),
	}
}

func (x *Loop) AddReadStream(fd int, listener loopprof.StreamListener) error {
	if x.Err != nil {
		return x.Err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.readers[fd] = listener
	return nil
}

func (x *Loop) AddWriteStream(int, loopprof.StreamListener) error { return x.Err }

func (x *Loop) RemoveReadStream(fd int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.readers, fd)
	return x.Err
}

func (x *Loop) RemoveWriteStream(int) error { return x.Err }

func (x *Loop) RemoveStream(fd int) error { return x.RemoveReadStream(fd) }

func (x *Loop) AddTimer(_ time.Duration, callback loopprof.TimerCallback) (loopprof.TimerID, error) {
	if x.Err != nil {
		return 0, x.Err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.nextTimerID++
	x.timers[x.nextTimerID] = callback
	return x.nextTimerID, nil
}

func (x *Loop) AddPeriodicTimer(interval time.Duration, callback loopprof.TimerCallback) (loopprof.TimerID, error) {
	return x.AddTimer(interval, callback)
}

func (x *Loop) CancelTimer(id loopprof.TimerID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.timers, id)
}

func (x *Loop) IsTimerActive(id loopprof.TimerID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.timers[id]
	return ok
}

func (x *Loop) NextTick(listener loopprof.TickListener) error {
	if x.Err != nil {
		return x.Err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ticks = append(x.ticks, listener)
	return nil
}

func (x *Loop) FutureTick(listener loopprof.TickListener) error { return x.NextTick(listener) }

func (x *Loop) Tick() error { return x.Err }

func (x *Loop) Run(ctx context.Context) error {
	if x.Err != nil {
		return x.Err
	}
	if x.RunFunc != nil {
		return x.RunFunc(ctx)
	}
	return nil
}

func (x *Loop) Stop() {}

// FireTimer invokes the callback registered for id, if any, returning
// whether it was found.
func (x *Loop) FireTimer(id loopprof.TimerID) bool {
	x.mu.Lock()
	callback, ok := x.timers[id]
	x.mu.Unlock()
	if ok && callback != nil {
		callback(id)
	}
	return ok
}

// FireStream invokes the read listener registered for fd, if any.
func (x *Loop) FireStream(fd int) bool {
	x.mu.Lock()
	listener, ok := x.readers[fd]
	x.mu.Unlock()
	if ok && listener != nil {
		listener(fd)
	}
	return ok
}

// FireTicks invokes, then discards, every queued tick listener, returning
// the number invoked.
func (x *Loop) FireTicks() int {
	x.mu.Lock()
	ticks := x.ticks
	x.ticks = nil
	x.mu.Unlock()
	for _, listener := range ticks {
		listener()
	}
	return len(ticks)
}
