// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

// Kind identifies what an [Event] records: one of the loop operations, or
// the firing of a callback that was registered through one.
type Kind uint8

const (
	// KindAddReadStream records [Loop.AddReadStream].
	KindAddReadStream Kind = iota + 1
	// KindAddWriteStream records [Loop.AddWriteStream].
	KindAddWriteStream
	// KindRemoveReadStream records [Loop.RemoveReadStream].
	KindRemoveReadStream
	// KindRemoveWriteStream records [Loop.RemoveWriteStream].
	KindRemoveWriteStream
	// KindRemoveStream records [Loop.RemoveStream].
	KindRemoveStream
	// KindAddTimer records [Loop.AddTimer].
	KindAddTimer
	// KindAddPeriodicTimer records [Loop.AddPeriodicTimer].
	KindAddPeriodicTimer
	// KindCancelTimer records [Loop.CancelTimer].
	KindCancelTimer
	// KindIsTimerActive records [Loop.IsTimerActive].
	KindIsTimerActive
	// KindNextTick records [Loop.NextTick].
	KindNextTick
	// KindFutureTick records [Loop.FutureTick].
	KindFutureTick
	// KindTick records [Loop.Tick].
	KindTick
	// KindRun records [Loop.Run].
	KindRun
	// KindStop records [Loop.Stop].
	KindStop
	// KindCallbackFired records the loop invoking a wrapped callback.
	KindCallbackFired
)

// operationKinds is every Kind that corresponds to a loop operation, in
// declaration order.
var operationKinds = [...]Kind{
	KindAddReadStream,
	KindAddWriteStream,
	KindRemoveReadStream,
	KindRemoveWriteStream,
	KindRemoveStream,
	KindAddTimer,
	KindAddPeriodicTimer,
	KindCancelTimer,
	KindIsTimerActive,
	KindNextTick,
	KindFutureTick,
	KindTick,
	KindRun,
	KindStop,
}

// String returns the operation name, e.g. "addTimer".
func (k Kind) String() string {
	switch k {
	case KindAddReadStream:
		return "addReadStream"
	case KindAddWriteStream:
		return "addWriteStream"
	case KindRemoveReadStream:
		return "removeReadStream"
	case KindRemoveWriteStream:
		return "removeWriteStream"
	case KindRemoveStream:
		return "removeStream"
	case KindAddTimer:
		return "addTimer"
	case KindAddPeriodicTimer:
		return "addPeriodicTimer"
	case KindCancelTimer:
		return "cancelTimer"
	case KindIsTimerActive:
		return "isTimerActive"
	case KindNextTick:
		return "nextTick"
	case KindFutureTick:
		return "futureTick"
	case KindTick:
		return "tick"
	case KindRun:
		return "run"
	case KindStop:
		return "stop"
	case KindCallbackFired:
		return "callbackFired"
	default:
		return "unknown"
	}
}

// IsOperation reports whether k is one of the loop operations, i.e. anything
// but [KindCallbackFired] or an invalid value.
func (k Kind) IsOperation() bool {
	return k >= KindAddReadStream && k <= KindStop
}

// Operations returns every operation Kind, in declaration order.
func Operations() []Kind {
	kinds := make([]Kind, len(operationKinds))
	copy(kinds, operationKinds[:])
	return kinds
}

// ParseKind maps a loop operation name to its Kind. Names outside the fixed
// operation set (including "callbackFired") fail with an
// [*UnsupportedOperationError].
func ParseKind(name string) (Kind, error) {
	for _, k := range operationKinds {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, &UnsupportedOperationError{Name: name}
}
