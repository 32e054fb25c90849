// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-loopprof/internal/goid"
	"github.com/joeycumines/logiface"
)

// errGoexit is recorded when a callback calls [runtime.Goexit], which is not
// a panic, and so is not re-raised.
var errGoexit = errors.New("loopprof: goroutine exited")

// Proxy records every operation made through it, and every callback the
// wrapped [Loop] later fires, as nested [Event] values.
//
// A Proxy implements [Loop], and must be used in place of the wrapped loop.
// Return values, errors, and panics pass through verbatim.
//
// The current context (the event used to parent new events) is tracked per
// goroutine, so e.g. [Proxy.Stop] may be called from another goroutine
// without disturbing the nesting of events recorded by [Proxy.Run].
type Proxy struct {
	// Prevent copying
	_ [0]func()

	loop       Loop
	dispatcher *Dispatcher
	logger     *logiface.Logger[logiface.Event]
	sessionID  string

	// mu guards events and contexts
	mu       sync.Mutex
	events   []*Event
	contexts map[uint64]*Event
}

var _ Loop = (*Proxy)(nil)

// NewProxy wraps loop, which is bound to the proxy for its lifetime.
func NewProxy(loop Loop, opts ...Option) (*Proxy, error) {
	if loop == nil {
		return nil, ErrNilLoop
	}

	cfg, err := resolveProxyOptions(opts)
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		loop:       loop,
		dispatcher: cfg.dispatcher,
		logger:     cfg.logger,
		sessionID:  cfg.sessionID,
		contexts:   make(map[uint64]*Event),
	}
	if p.dispatcher == nil {
		p.dispatcher = NewDispatcher()
	}
	if p.sessionID == `` {
		p.sessionID = uuid.NewString()
	}

	return p, nil
}

// Loop returns the wrapped loop. Calls made on it directly are not recorded.
func (p *Proxy) Loop() Loop {
	return p.loop
}

// SessionID identifies this proxy's events.
func (p *Proxy) SessionID() string {
	return p.sessionID
}

// Dispatcher returns the lifecycle dispatcher.
func (p *Proxy) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// Subscribe registers listener for a lifecycle topic, see
// [Dispatcher.Subscribe].
func (p *Proxy) Subscribe(topic Topic, listener Listener) (unsubscribe func(), err error) {
	return p.dispatcher.Subscribe(topic, listener)
}

// Events returns a snapshot of the event log, in creation order.
func (p *Proxy) Events() []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]*Event, len(p.events))
	copy(events, p.events)
	return events
}

// Len returns the number of events recorded so far.
func (p *Proxy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// Current returns the event currently executing on the calling goroutine,
// or nil. It is intended for diagnostics.
func (p *Proxy) Current() *Event {
	gid := goid.Current()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contexts[gid]
}

// AddReadStream records [KindAddReadStream].
func (p *Proxy) AddReadStream(fd int, listener StreamListener) error {
	ev := NewEvent(KindAddReadStream, fd, listener)
	_, err := p.recordOperation(ev, func() (any, error) {
		return nil, p.loop.AddReadStream(fd, Wrap[int](p, ev, listener))
	})
	return err
}

// AddWriteStream records [KindAddWriteStream].
func (p *Proxy) AddWriteStream(fd int, listener StreamListener) error {
	ev := NewEvent(KindAddWriteStream, fd, listener)
	_, err := p.recordOperation(ev, func() (any, error) {
		return nil, p.loop.AddWriteStream(fd, Wrap[int](p, ev, listener))
	})
	return err
}

// RemoveReadStream records [KindRemoveReadStream].
func (p *Proxy) RemoveReadStream(fd int) error {
	_, err := p.recordOperation(NewEvent(KindRemoveReadStream, fd), func() (any, error) {
		return nil, p.loop.RemoveReadStream(fd)
	})
	return err
}

// RemoveWriteStream records [KindRemoveWriteStream].
func (p *Proxy) RemoveWriteStream(fd int) error {
	_, err := p.recordOperation(NewEvent(KindRemoveWriteStream, fd), func() (any, error) {
		return nil, p.loop.RemoveWriteStream(fd)
	})
	return err
}

// RemoveStream records [KindRemoveStream].
func (p *Proxy) RemoveStream(fd int) error {
	_, err := p.recordOperation(NewEvent(KindRemoveStream, fd), func() (any, error) {
		return nil, p.loop.RemoveStream(fd)
	})
	return err
}

// AddTimer records [KindAddTimer], capturing the TimerID as the result.
func (p *Proxy) AddTimer(interval time.Duration, callback TimerCallback) (TimerID, error) {
	ev := NewEvent(KindAddTimer, interval, callback)
	result, err := p.recordOperation(ev, func() (any, error) {
		return p.loop.AddTimer(interval, Wrap[TimerID](p, ev, callback))
	})
	id, _ := result.(TimerID)
	return id, err
}

// AddPeriodicTimer records [KindAddPeriodicTimer], capturing the TimerID as
// the result. Every firing is recorded as a separate callbackFired event.
func (p *Proxy) AddPeriodicTimer(interval time.Duration, callback TimerCallback) (TimerID, error) {
	ev := NewEvent(KindAddPeriodicTimer, interval, callback)
	result, err := p.recordOperation(ev, func() (any, error) {
		return p.loop.AddPeriodicTimer(interval, Wrap[TimerID](p, ev, callback))
	})
	id, _ := result.(TimerID)
	return id, err
}

// CancelTimer records [KindCancelTimer].
func (p *Proxy) CancelTimer(id TimerID) {
	_, _ = p.recordOperation(NewEvent(KindCancelTimer, id), func() (any, error) {
		p.loop.CancelTimer(id)
		return nil, nil
	})
}

// IsTimerActive records [KindIsTimerActive], capturing the answer as the
// result.
func (p *Proxy) IsTimerActive(id TimerID) bool {
	result, _ := p.recordOperation(NewEvent(KindIsTimerActive, id), func() (any, error) {
		return p.loop.IsTimerActive(id), nil
	})
	active, _ := result.(bool)
	return active
}

// NextTick records [KindNextTick].
func (p *Proxy) NextTick(listener TickListener) error {
	ev := NewEvent(KindNextTick, listener)
	_, err := p.recordOperation(ev, func() (any, error) {
		return nil, p.loop.NextTick(WrapFunc(p, ev, listener))
	})
	return err
}

// FutureTick records [KindFutureTick].
func (p *Proxy) FutureTick(listener TickListener) error {
	ev := NewEvent(KindFutureTick, listener)
	_, err := p.recordOperation(ev, func() (any, error) {
		return nil, p.loop.FutureTick(WrapFunc(p, ev, listener))
	})
	return err
}

// Tick records [KindTick]. Callbacks fired during the tick are recorded as
// children of their registering events, not of the tick.
func (p *Proxy) Tick() error {
	_, err := p.recordOperation(NewEvent(KindTick), func() (any, error) {
		return nil, p.loop.Tick()
	})
	return err
}

// Run records [KindRun], which stays running until the wrapped loop returns.
func (p *Proxy) Run(ctx context.Context) error {
	_, err := p.recordOperation(NewEvent(KindRun), func() (any, error) {
		return nil, p.loop.Run(ctx)
	})
	return err
}

// Stop records [KindStop].
func (p *Proxy) Stop() {
	_, _ = p.recordOperation(NewEvent(KindStop), func() (any, error) {
		p.loop.Stop()
		return nil, nil
	})
}

// recordOperation records an intercepted loop operation, parented to the
// calling goroutine's current context.
func (p *Proxy) recordOperation(ev *Event, work func() (any, error)) (any, error) {
	return p.record(ev, true, work)
}

// record implements the recording protocol: append to the log, start and
// publish, run work with ev as the current context, then complete or fail
// and publish. The previous context is restored on every exit path.
// Once started, ev always reaches a terminal status, even if a started
// listener panics.
func (p *Proxy) record(ev *Event, inherit bool, work func() (any, error)) (any, error) {
	gid := goid.Current()

	p.mu.Lock()
	saved := p.contexts[gid]
	if inherit && saved != nil {
		ev.parent = saved
	}
	p.events = append(p.events, ev)
	ev.setID(uint64(len(p.events)))
	p.mu.Unlock()

	defer p.setContext(gid, saved)

	if err := ev.Start(); err != nil {
		panic(err)
	}

	// a panicking started listener fails the event, like the work itself
	result, err := p.execute(ev, func() (any, error) {
		p.dispatcher.Publish(TopicStarted, ev)
		p.setContext(gid, ev)
		return work()
	})
	if err != nil {
		p.fail(ev, err)
		return result, err
	}

	if err := ev.Complete(result); err != nil {
		panic(err)
	}
	p.logger.Trace().
		Uint64(`id`, ev.ID()).
		Str(`kind`, ev.Kind().String()).
		Dur(`duration`, ev.Duration()).
		Log(`loopprof: event completed`)
	p.dispatcher.Publish(TopicCompleted, ev)

	return result, nil
}

// execute runs work, failing ev then re-panicking with the original value if
// work panics. An error value is recorded as-is, anything else as a
// [*PanicError].
func (p *Proxy) execute(ev *Event, work func() (any, error)) (result any, err error) {
	var returned bool
	defer func() {
		if returned {
			return
		}
		r := recover()
		if r == nil {
			// runtime.Goexit, let it continue unwinding
			p.fail(ev, errGoexit)
			return
		}
		p.fail(ev, panicError(r))
		panic(r)
	}()
	result, err = work()
	returned = true
	return
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r}
}

func (p *Proxy) fail(ev *Event, err error) {
	if e := ev.Fail(err); e != nil {
		panic(e)
	}
	p.logger.Trace().
		Uint64(`id`, ev.ID()).
		Str(`kind`, ev.Kind().String()).
		Dur(`duration`, ev.Duration()).
		Err(err).
		Log(`loopprof: event failed`)
	p.dispatcher.Publish(TopicFailed, ev)
}

func (p *Proxy) setContext(gid uint64, ev *Event) {
	p.mu.Lock()
	if ev == nil {
		delete(p.contexts, gid)
	} else {
		p.contexts[gid] = ev
	}
	p.mu.Unlock()
}
