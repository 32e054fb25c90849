// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrUnsupportedOperation is matched by every [*UnsupportedOperationError].
	ErrUnsupportedOperation = errors.New("loopprof: unsupported operation")

	// ErrInvalidEventState is matched by every [*InvalidStateError].
	ErrInvalidEventState = errors.New("loopprof: invalid event state")

	// ErrInvalidArgument is returned by [Proxy.Invoke] when the arguments do
	// not fit the operation's signature.
	ErrInvalidArgument = errors.New("loopprof: invalid argument")

	// ErrNilLoop is returned by [NewProxy] when given a nil [Loop].
	ErrNilLoop = errors.New("loopprof: nil loop")

	// ErrUnknownTopic is returned when subscribing to a topic that is not
	// one of the three lifecycle topics.
	ErrUnknownTopic = errors.New("loopprof: unknown topic")
)

// UnsupportedOperationError indicates a loop operation name outside the
// fixed operation set. It is a defect in the caller, never retried.
type UnsupportedOperationError struct {
	Name string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("loopprof: unsupported operation %q", e.Name)
}

// Is allows matching against [ErrUnsupportedOperation].
func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// InvalidStateError indicates an [Event] lifecycle method was called out of
// order, e.g. completing an event twice.
type InvalidStateError struct {
	// Op is the lifecycle method that was rejected, e.g. "complete".
	Op     string
	ID     uint64
	Kind   Kind
	Status Status
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("loopprof: invalid event state: cannot %s event %d (%s) in state %s", e.Op, e.ID, e.Kind, e.Status)
}

// Is allows matching against [ErrInvalidEventState].
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidEventState
}

// PanicError captures a non-error panic value raised by a delegate (the
// wrapped loop, or a user callback), as recorded on the failed [Event].
// Panics with an error value record that error directly. The original value
// is re-panicked unchanged; PanicError only exists in the event record.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("loopprof: delegate panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, enabling [errors.Is]
// and [errors.As] through the recorded failure.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
