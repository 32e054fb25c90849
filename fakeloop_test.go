// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeLoop is a scriptable Loop, which stores callbacks instead of firing
// them.
type fakeLoop struct {
	mu          sync.Mutex
	calls       []Kind
	readers     map[int]StreamListener
	writers     map[int]StreamListener
	timers      map[TimerID]TimerCallback
	ticks       []TickListener
	nextTimerID TimerID

	// err is returned by every error-returning operation, if set
	err error
	// panicValue is raised by every operation, if non-nil
	panicValue any
	// onRun replaces the default Run behavior
	onRun func(ctx context.Context) error
}

var _ Loop = (*fakeLoop)(nil)

func newFakeLoop() *fakeLoop {
	return &fakeLoop{
		readers: make(map[int]StreamListener),
		writers: make(map[int]StreamListener),
		timers:  make(map[TimerID]TimerCallback),
	}
}

func (x *fakeLoop) call(kind Kind) error {
	x.mu.Lock()
	x.calls = append(x.calls, kind)
	panicValue, err := x.panicValue, x.err
	x.mu.Unlock()
	if panicValue != nil {
		panic(panicValue)
	}
	return err
}

func (x *fakeLoop) Calls() []Kind {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Kind(nil), x.calls...)
}

func (x *fakeLoop) AddReadStream(fd int, listener StreamListener) error {
	if err := x.call(KindAddReadStream); err != nil {
		return err
	}
	x.mu.Lock()
	x.readers[fd] = listener
	x.mu.Unlock()
	return nil
}

func (x *fakeLoop) AddWriteStream(fd int, listener StreamListener) error {
	if err := x.call(KindAddWriteStream); err != nil {
		return err
	}
	x.mu.Lock()
	x.writers[fd] = listener
	x.mu.Unlock()
	return nil
}

func (x *fakeLoop) RemoveReadStream(fd int) error {
	if err := x.call(KindRemoveReadStream); err != nil {
		return err
	}
	x.mu.Lock()
	delete(x.readers, fd)
	x.mu.Unlock()
	return nil
}

func (x *fakeLoop) RemoveWriteStream(fd int) error {
	if err := x.call(KindRemoveWriteStream); err != nil {
		return err
	}
	x.mu.Lock()
	delete(x.writers, fd)
	x.mu.Unlock()
	return nil
}

func (x *fakeLoop) RemoveStream(fd int) error {
	if err := x.call(KindRemoveStream); err != nil {
		return err
	}
	x.mu.Lock()
	delete(x.readers, fd)
	delete(x.writers, fd)
	x.mu.Unlock()
	return nil
}

func (x *fakeLoop) AddTimer(interval time.Duration, callback TimerCallback) (TimerID, error) {
	return x.addTimer(KindAddTimer, callback)
}

func (x *fakeLoop) AddPeriodicTimer(interval time.Duration, callback TimerCallback) (TimerID, error) {
	return x.addTimer(KindAddPeriodicTimer, callback)
}

func (x *fakeLoop) addTimer(kind Kind, callback TimerCallback) (TimerID, error) {
	if err := x.call(kind); err != nil {
		return 0, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.nextTimerID++
	x.timers[x.nextTimerID] = callback
	return x.nextTimerID, nil
}

func (x *fakeLoop) CancelTimer(id TimerID) {
	_ = x.call(KindCancelTimer)
	x.mu.Lock()
	delete(x.timers, id)
	x.mu.Unlock()
}

func (x *fakeLoop) IsTimerActive(id TimerID) bool {
	_ = x.call(KindIsTimerActive)
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.timers[id]
	return ok
}

func (x *fakeLoop) NextTick(listener TickListener) error {
	return x.enqueue(KindNextTick, listener)
}

func (x *fakeLoop) FutureTick(listener TickListener) error {
	return x.enqueue(KindFutureTick, listener)
}

func (x *fakeLoop) enqueue(kind Kind, listener TickListener) error {
	if err := x.call(kind); err != nil {
		return err
	}
	x.mu.Lock()
	x.ticks = append(x.ticks, listener)
	x.mu.Unlock()
	return nil
}

func (x *fakeLoop) Tick() error {
	return x.call(KindTick)
}

func (x *fakeLoop) Run(ctx context.Context) error {
	if err := x.call(KindRun); err != nil {
		return err
	}
	if x.onRun != nil {
		return x.onRun(ctx)
	}
	return nil
}

func (x *fakeLoop) Stop() {
	_ = x.call(KindStop)
}

// Timer returns the callback the loop received for id.
func (x *fakeLoop) Timer(t *testing.T, id TimerID) TimerCallback {
	t.Helper()
	x.mu.Lock()
	defer x.mu.Unlock()
	callback, ok := x.timers[id]
	require.True(t, ok, "timer %v not registered", id)
	return callback
}

// Reader returns the read listener the loop received for fd.
func (x *fakeLoop) Reader(t *testing.T, fd int) StreamListener {
	t.Helper()
	x.mu.Lock()
	defer x.mu.Unlock()
	listener, ok := x.readers[fd]
	require.True(t, ok, "fd %d not registered", fd)
	return listener
}

// Ticks removes and returns the queued tick listeners.
func (x *fakeLoop) Ticks() []TickListener {
	x.mu.Lock()
	defer x.mu.Unlock()
	ticks := x.ticks
	x.ticks = nil
	return ticks
}

// notifications records every lifecycle notification, per event.
type notifications struct {
	mu     sync.Mutex
	topics map[*Event][]Topic
	order  []*Event
}

func recordNotifications(t *testing.T, p *Proxy) *notifications {
	t.Helper()
	n := &notifications{topics: make(map[*Event][]Topic)}
	for _, topic := range []Topic{TopicStarted, TopicCompleted, TopicFailed} {
		unsubscribe, err := p.Subscribe(topic, func(ev *Event) {
			n.mu.Lock()
			defer n.mu.Unlock()
			if _, ok := n.topics[ev]; !ok {
				n.order = append(n.order, ev)
			}
			n.topics[ev] = append(n.topics[ev], topic)
		})
		require.NoError(t, err)
		t.Cleanup(unsubscribe)
	}
	return n
}

func (x *notifications) For(ev *Event) []Topic {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Topic(nil), x.topics[ev]...)
}

// requireWellFormed asserts every event saw a prefix of started, then one
// of completed or failed.
func (x *notifications) requireWellFormed(t *testing.T) {
	t.Helper()
	x.mu.Lock()
	defer x.mu.Unlock()
	for ev, topics := range x.topics {
		require.LessOrEqual(t, len(topics), 2, ev.String())
		require.Equal(t, TopicStarted, topics[0], ev.String())
		if len(topics) == 2 {
			require.Contains(t, []Topic{TopicCompleted, TopicFailed}, topics[1], ev.String())
		}
	}
}

func newTestProxy(t *testing.T, opts ...Option) (*Proxy, *fakeLoop) {
	t.Helper()
	loop := newFakeLoop()
	p, err := NewProxy(loop, opts...)
	require.NoError(t, err)
	return p, loop
}
