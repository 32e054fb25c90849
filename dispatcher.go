// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

import (
	"sync"
)

// Topic is one of the three lifecycle notification topics.
type Topic uint8

const (
	// TopicStarted is published after an event transitions to running.
	TopicStarted Topic = iota + 1
	// TopicCompleted is published after an event transitions to completed.
	TopicCompleted
	// TopicFailed is published after an event transitions to failed.
	TopicFailed
)

const numTopics = 3

// String returns the topic name.
func (t Topic) String() string {
	switch t {
	case TopicStarted:
		return "loopprof.event_started"
	case TopicCompleted:
		return "loopprof.event_completed"
	case TopicFailed:
		return "loopprof.event_failed"
	default:
		return "unknown"
	}
}

func (t Topic) valid() bool {
	return t >= TopicStarted && t <= TopicFailed
}

// Listener receives lifecycle notifications. It is called synchronously, on
// the goroutine that caused the transition.
type Listener func(ev *Event)

// Dispatcher is a publish-subscribe bus over the lifecycle topics.
//
// Publish calls listeners synchronously, in subscription order. Panics raised
// by listeners are not recovered, they propagate to the publisher. The
// listener set is captured before any listener runs, so listeners may
// subscribe, unsubscribe, or cause further events to be published.
//
// The zero value is ready to use.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners [numTopics][]*subscription
}

type subscription struct {
	fn Listener
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return new(Dispatcher)
}

// Subscribe registers listener for topic, returning a function that removes
// it again (idempotent). A nil listener is ignored.
func (d *Dispatcher) Subscribe(topic Topic, listener Listener) (unsubscribe func(), err error) {
	if !topic.valid() {
		return nil, ErrUnknownTopic
	}
	if listener == nil {
		return func() {}, nil
	}

	sub := &subscription{fn: listener}

	d.mu.Lock()
	d.listeners[topic-1] = append(d.listeners[topic-1], sub)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(topic, sub) })
	}, nil
}

// Publish invokes every listener subscribed to topic, passing ev.
func (d *Dispatcher) Publish(topic Topic, ev *Event) {
	if !topic.valid() {
		panic(ErrUnknownTopic)
	}

	d.mu.RLock()
	subs := d.listeners[topic-1]
	d.mu.RUnlock()

	// subs is never mutated in place, see remove
	for _, sub := range subs {
		sub.fn(ev)
	}
}

// Len returns the number of listeners subscribed to topic.
func (d *Dispatcher) Len(topic Topic) int {
	if !topic.valid() {
		return 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[topic-1])
}

func (d *Dispatcher) remove(topic Topic, sub *subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.listeners[topic-1]
	for i, s := range old {
		if s == sub {
			subs := make([]*subscription, 0, len(old)-1)
			subs = append(subs, old[:i]...)
			subs = append(subs, old[i+1:]...)
			d.listeners[topic-1] = subs
			return
		}
	}
}
