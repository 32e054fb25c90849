// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-loopprof"
	"github.com/joeycumines/go-loopprof/internal/goid"
	"github.com/joeycumines/logiface"
)

// maxPollTimeout bounds a single blocking poll, waiting on a distant timer.
const maxPollTimeout = time.Hour

// Reactor is a single-threaded event loop, multiplexing timers, tick queues,
// and file descriptor readiness (epoll on Linux, kqueue on Darwin).
//
// Callbacks run on the goroutine calling [Reactor.Run] or [Reactor.Tick].
// Registration methods and [Reactor.Stop] are safe to call from any
// goroutine, and wake a blocked poll.
//
// The reactor does not recover panics: a panicking callback unwinds out of
// Run or Tick, leaving the loop stopped but usable.
type Reactor struct {
	// Prevent copying
	_ [0]func()

	logger *logiface.Logger[logiface.Event]

	poller fastPoller
	state  fastState

	wakeReadFd  int
	wakeWriteFd int
	wakePending atomic.Bool

	stopping        atomic.Bool
	loopGoroutineID atomic.Uint64

	// mu guards everything below, and transitions to and from StateAwake
	mu          sync.Mutex
	timers      timerHeap
	timerIndex  map[loopprof.TimerID]*timer
	nextTimerID uint64
	nextTicks   []loopprof.TickListener
	futureTicks []loopprof.TickListener
	readers     map[int]loopprof.StreamListener
	writers     map[int]loopprof.StreamListener
	interest    map[int]IOEvents
	closed      bool
	released    bool
}

var _ loopprof.Loop = (*Reactor)(nil)

// New creates a new, idle, Reactor. It must be closed to release its file
// descriptors.
func New(opts ...Option) (*Reactor, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	r := &Reactor{
		logger:     cfg.logger,
		timerIndex: make(map[loopprof.TimerID]*timer),
		readers:    make(map[int]loopprof.StreamListener),
		writers:    make(map[int]loopprof.StreamListener),
		interest:   make(map[int]IOEvents),
	}

	if err := r.poller.Init(); err != nil {
		return nil, err
	}

	r.wakeReadFd, r.wakeWriteFd, err = createWakeFd()
	if err != nil {
		_ = r.poller.Close()
		return nil, err
	}

	if err := r.poller.RegisterFD(r.wakeReadFd, EventRead, func(IOEvents) { r.drainWakeup() }); err != nil {
		r.mu.Lock()
		_ = r.release()
		r.mu.Unlock()
		return nil, err
	}

	return r, nil
}

// State returns the current lifecycle state.
func (r *Reactor) State() State {
	return r.state.Load()
}

// Run runs the loop on the calling goroutine until [Reactor.Stop] is called,
// ctx is cancelled (returning ctx.Err()), or there is nothing left to do: no
// pending ticks, no timers, and no stream listeners.
func (r *Reactor) Run(ctx context.Context) error {
	if r.isLoopGoroutine() {
		return ErrReentrantRun
	}
	if err := r.enter(); err != nil {
		return err
	}
	defer r.exit()

	r.stopping.Store(false)

	r.logger.Debug().Log(`reactor: run started`)

	stopWake := context.AfterFunc(ctx, r.wake)
	defer stopWake()

	for {
		if err := ctx.Err(); err != nil {
			r.logger.Debug().Err(err).Log(`reactor: run cancelled`)
			return err
		}
		if r.stopping.Load() {
			r.logger.Debug().Log(`reactor: run stopped`)
			return nil
		}
		idle, err := r.iterate(true)
		if err != nil {
			r.logger.Err().Err(err).Log(`reactor: poll failed`)
			return err
		}
		if idle {
			r.logger.Debug().Log(`reactor: run finished, nothing left to do`)
			return nil
		}
	}
}

// Tick runs a single, non-blocking, iteration of the loop: next ticks,
// future ticks, expired timers, then ready streams.
func (r *Reactor) Tick() error {
	if r.isLoopGoroutine() {
		return ErrReentrantRun
	}
	if err := r.enter(); err != nil {
		if errors.Is(err, ErrLoopAlreadyRunning) {
			return ErrLoopRunning
		}
		return err
	}
	defer r.exit()

	_, err := r.iterate(false)
	return err
}

// Stop causes a running loop to return after the current iteration. It is
// safe to call from any goroutine, including callbacks. A Stop while the
// loop is not running does not affect the next Run.
func (r *Reactor) Stop() {
	r.stopping.Store(true)
	r.wake()
}

// Close releases the poller and wake file descriptors. If the loop is
// running, it is stopped, and resources are released once it returns.
func (r *Reactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrLoopClosed
	}
	r.closed = true

	if r.state.IsRunning() {
		r.stopping.Store(true)
		r.signalWakeup()
		return nil
	}

	r.state.Store(StateTerminated)
	return r.release()
}

func (r *Reactor) enter() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrLoopClosed
	}
	if !r.state.TryTransition(StateAwake, StateRunning) {
		return ErrLoopAlreadyRunning
	}
	r.loopGoroutineID.Store(goid.Current())
	return nil
}

func (r *Reactor) exit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loopGoroutineID.Store(0)
	if !r.closed {
		r.state.Store(StateAwake)
		return
	}
	r.state.Store(StateTerminated)
	if err := r.release(); err != nil {
		r.logger.Warning().Err(err).Log(`reactor: failed to release resources`)
	}
}

// iterate runs one pass of the loop, returning idle if nothing is left to do
// (no ticks, timers, or streams).
func (r *Reactor) iterate(block bool) (idle bool, err error) {
	r.runNextTicks()
	r.runFutureTicks()
	r.runTimers(time.Now())

	// must transition before computing the timeout, see wakeIfSleeping
	sleeping := block && r.state.TryTransition(StateRunning, StateSleeping)
	if sleeping {
		defer r.state.TryTransition(StateSleeping, StateRunning)
	}

	timeout, idle := r.pollTimeout(block)
	if idle {
		return true, nil
	}

	r.logger.Trace().Int(`timeout_ms`, timeout).Log(`reactor: poll`)

	if _, err := r.poller.PollIO(timeout); err != nil {
		return false, err
	}

	return false, nil
}

// pollTimeout returns the poll timeout in milliseconds, -1 to block
// indefinitely.
func (r *Reactor) pollTimeout(block bool) (timeout int, idle bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pendingTicks := len(r.nextTicks) > 0 || len(r.futureTicks) > 0
	deadline, hasTimers := r.nextTimerDeadline()

	if !pendingTicks && !hasTimers && len(r.interest) == 0 {
		return 0, true
	}

	if !block || pendingTicks || r.stopping.Load() {
		return 0, false
	}

	if hasTimers {
		d := time.Until(deadline)
		if d <= 0 {
			return 0, false
		}
		if d > maxPollTimeout {
			d = maxPollTimeout
		}
		// round up, waking early would spin
		return int((d + time.Millisecond - 1) / time.Millisecond), false
	}

	return -1, false
}

// wakeIfSleeping wakes the loop if it is blocked in the poller, so that it
// observes a registration made from another goroutine.
func (r *Reactor) wakeIfSleeping() {
	if r.state.Load() == StateSleeping {
		r.wake()
	}
}

func (r *Reactor) wake() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signalWakeup()
}

// signalWakeup must be called with mu held.
func (r *Reactor) signalWakeup() {
	if r.released || !r.wakePending.CompareAndSwap(false, true) {
		return
	}
	if err := signalWakeFd(r.wakeWriteFd); err != nil {
		r.wakePending.Store(false)
		r.logger.Warning().Err(err).Log(`reactor: failed to signal wakeup`)
	}
}

func (r *Reactor) drainWakeup() {
	// cleared first, so a concurrent wake re-signals rather than being lost
	r.wakePending.Store(false)
	drainWakeFd(r.wakeReadFd)
}

// release must be called with mu held.
func (r *Reactor) release() error {
	if r.released {
		return nil
	}
	r.released = true

	r.timers = nil
	clear(r.timerIndex)
	r.nextTicks = nil
	r.futureTicks = nil
	clear(r.readers)
	clear(r.writers)
	clear(r.interest)

	errs := []error{r.poller.Close()}
	if r.wakeReadFd > 0 {
		errs = append(errs, closeFD(r.wakeReadFd))
	}
	if r.wakeWriteFd > 0 && r.wakeWriteFd != r.wakeReadFd {
		errs = append(errs, closeFD(r.wakeWriteFd))
	}
	return errors.Join(errs...)
}

func (r *Reactor) isLoopGoroutine() bool {
	id := r.loopGoroutineID.Load()
	return id != 0 && id == goid.Current()
}
