// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// used for testing
var timeNow = time.Now

// Event records one loop operation, or one firing of a wrapped callback.
//
// Lifecycle methods ([Event.Start], [Event.Complete], [Event.Fail]) are only
// called by whatever created the event, inline with the call that created
// it. All accessors are safe for concurrent use, e.g. by subscribers that
// hand events to another goroutine.
type Event struct {
	// Prevent copying
	_ [0]func()

	mu      sync.Mutex
	args    []any
	parent  *Event
	result  any
	err     error
	started time.Time
	ended   time.Time
	id      uint64
	kind    Kind
	status  Status
}

// NewEvent constructs a pending event, with no parent. The args are copied.
func NewEvent(kind Kind, args ...any) *Event {
	e := &Event{kind: kind}
	if len(args) != 0 {
		e.args = make([]any, len(args))
		copy(e.args, args)
	}
	return e
}

// ID is the 1-based position of the event in the log of the [Proxy] that
// recorded it, or 0 if it was never recorded.
func (e *Event) ID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Kind returns what the event records.
func (e *Event) Kind() Kind {
	return e.kind
}

// Args returns a copy of the arguments the operation (or callback) was
// invoked with.
func (e *Event) Args() []any {
	if len(e.args) == 0 {
		return nil
	}
	args := make([]any, len(e.args))
	copy(args, e.args)
	return args
}

// Parent returns the event that was executing when this event was created
// (for callbackFired events, the event that registered the callback), or nil.
func (e *Event) Parent() *Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parent
}

// Status returns the current lifecycle state.
func (e *Event) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// StartTime is zero until the event has started.
func (e *Event) StartTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// EndTime is zero until the event is terminal.
func (e *Event) EndTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

// Duration returns the recorded duration, or the time elapsed so far if the
// event is running, or 0 if pending.
func (e *Event) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.status == StatusPending:
		return 0
	case e.status.IsTerminal():
		return e.ended.Sub(e.started)
	default:
		return timeNow().Sub(e.started)
	}
}

// Result returns the value captured on completion (which may itself be nil).
func (e *Event) Result() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Err returns the error captured on failure, or nil.
func (e *Event) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// SetParent attaches the parent reference. It is only legal once, and only
// while the event is pending.
func (e *Event) SetParent(parent *Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPending || e.parent != nil || parent == e {
		return e.invalidState(`set parent of`)
	}
	e.parent = parent
	return nil
}

// Start transitions pending to running, recording the start time.
func (e *Event) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPending {
		return e.invalidState(`start`)
	}
	e.status = StatusRunning
	e.started = timeNow()
	return nil
}

// Complete transitions running to completed, recording the end time and the
// result.
func (e *Event) Complete(result any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusRunning {
		return e.invalidState(`complete`)
	}
	e.status = StatusCompleted
	e.ended = e.endTime()
	e.result = result
	return nil
}

// Fail transitions running to failed, recording the end time and err, which
// must be non-nil.
func (e *Event) Fail(err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusRunning || err == nil {
		return e.invalidState(`fail`)
	}
	e.status = StatusFailed
	e.ended = e.endTime()
	e.err = err
	return nil
}

// String returns a short description, e.g. "#3 addTimer(10ms) completed".
func (e *Event) String() string {
	e.mu.Lock()
	id, status := e.id, e.status
	e.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s(", id, e.kind)
	for i, arg := range e.args {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(FormatArg(arg))
	}
	fmt.Fprintf(&b, ") %s", status)
	return b.String()
}

func (e *Event) setID(id uint64) {
	e.mu.Lock()
	e.id = id
	e.mu.Unlock()
}

// endTime guards start <= end against a clock that steps backwards.
func (e *Event) endTime() time.Time {
	now := timeNow()
	if now.Before(e.started) {
		return e.started
	}
	return now
}

func (e *Event) invalidState(op string) *InvalidStateError {
	return &InvalidStateError{Op: op, ID: e.id, Kind: e.kind, Status: e.status}
}

// FormatArg renders an event argument for logs and persistence. Callbacks
// render as their type, rather than an address.
func FormatArg(arg any) string {
	switch v := arg.(type) {
	case nil:
		return `<nil>`
	case StreamListener, TimerCallback, TickListener, func(), func(int), func(TimerID):
		return fmt.Sprintf(`%T`, v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
