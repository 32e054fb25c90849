// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

import (
	"context"
	"fmt"
	"time"
)

// Invoke calls the loop operation with the given name (e.g. "addTimer"),
// for drivers that only know operations by name, e.g. scripted workloads.
//
// Names outside the operation set fail with an [*UnsupportedOperationError],
// and arguments that don't fit the operation's signature fail with
// [ErrInvalidArgument]. In both cases nothing is recorded. Otherwise the
// result is that of the typed method: a TimerID for addTimer and
// addPeriodicTimer, a bool for isTimerActive, and nil for everything else.
//
// Callbacks may be given either as the named types ([StreamListener],
// [TimerCallback], [TickListener]) or their underlying func types. The run
// operation accepts an optional [context.Context].
func (p *Proxy) Invoke(name string, args ...any) (any, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindAddReadStream, KindAddWriteStream:
		if err := checkArgs(kind, args, 2); err != nil {
			return nil, err
		}
		fd, err := argFD(kind, args[0])
		if err != nil {
			return nil, err
		}
		listener, err := argStreamListener(kind, args[1])
		if err != nil {
			return nil, err
		}
		if kind == KindAddReadStream {
			return nil, p.AddReadStream(fd, listener)
		}
		return nil, p.AddWriteStream(fd, listener)

	case KindRemoveReadStream, KindRemoveWriteStream, KindRemoveStream:
		if err := checkArgs(kind, args, 1); err != nil {
			return nil, err
		}
		fd, err := argFD(kind, args[0])
		if err != nil {
			return nil, err
		}
		switch kind {
		case KindRemoveReadStream:
			return nil, p.RemoveReadStream(fd)
		case KindRemoveWriteStream:
			return nil, p.RemoveWriteStream(fd)
		default:
			return nil, p.RemoveStream(fd)
		}

	case KindAddTimer, KindAddPeriodicTimer:
		if err := checkArgs(kind, args, 2); err != nil {
			return nil, err
		}
		interval, err := argInterval(kind, args[0])
		if err != nil {
			return nil, err
		}
		callback, err := argTimerCallback(kind, args[1])
		if err != nil {
			return nil, err
		}
		if kind == KindAddTimer {
			return p.AddTimer(interval, callback)
		}
		return p.AddPeriodicTimer(interval, callback)

	case KindCancelTimer, KindIsTimerActive:
		if err := checkArgs(kind, args, 1); err != nil {
			return nil, err
		}
		id, ok := args[0].(TimerID)
		if !ok {
			return nil, invalidArg(kind, 0, args[0])
		}
		if kind == KindCancelTimer {
			p.CancelTimer(id)
			return nil, nil
		}
		return p.IsTimerActive(id), nil

	case KindNextTick, KindFutureTick:
		if err := checkArgs(kind, args, 1); err != nil {
			return nil, err
		}
		listener, err := argTickListener(kind, args[0])
		if err != nil {
			return nil, err
		}
		if kind == KindNextTick {
			return nil, p.NextTick(listener)
		}
		return nil, p.FutureTick(listener)

	case KindTick:
		if err := checkArgs(kind, args, 0); err != nil {
			return nil, err
		}
		return nil, p.Tick()

	case KindRun:
		ctx := context.Background()
		switch len(args) {
		case 0:
		case 1:
			v, ok := args[0].(context.Context)
			if !ok || v == nil {
				return nil, invalidArg(kind, 0, args[0])
			}
			ctx = v
		default:
			return nil, fmt.Errorf("%w: %s takes at most 1 argument, got %d", ErrInvalidArgument, kind, len(args))
		}
		return nil, p.Run(ctx)

	case KindStop:
		if err := checkArgs(kind, args, 0); err != nil {
			return nil, err
		}
		p.Stop()
		return nil, nil

	default:
		// unreachable, ParseKind only returns operation kinds
		panic(fmt.Errorf("loopprof: unhandled operation %s", kind))
	}
}

func checkArgs(kind Kind, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrInvalidArgument, kind, n, len(args))
	}
	return nil
}

func invalidArg(kind Kind, i int, v any) error {
	return fmt.Errorf("%w: %s argument %d: unexpected type %T", ErrInvalidArgument, kind, i, v)
}

func argFD(kind Kind, v any) (int, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case uintptr:
		return int(v), nil
	default:
		return 0, invalidArg(kind, 0, v)
	}
}

func argInterval(kind Kind, v any) (time.Duration, error) {
	switch v := v.(type) {
	case time.Duration:
		return v, nil
	default:
		return 0, invalidArg(kind, 0, v)
	}
}

func argStreamListener(kind Kind, v any) (StreamListener, error) {
	switch v := v.(type) {
	case StreamListener:
		return v, nil
	case func(int):
		return v, nil
	default:
		return nil, invalidArg(kind, 1, v)
	}
}

func argTimerCallback(kind Kind, v any) (TimerCallback, error) {
	switch v := v.(type) {
	case TimerCallback:
		return v, nil
	case func(TimerID):
		return v, nil
	default:
		return nil, invalidArg(kind, 1, v)
	}
}

func argTickListener(kind Kind, v any) (TickListener, error) {
	switch v := v.(type) {
	case TickListener:
		return v, nil
	case func():
		return v, nil
	default:
		return nil, invalidArg(kind, 0, v)
	}
}
