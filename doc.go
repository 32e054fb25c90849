// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package loopprof records the activity of a reactor-style event loop, as a
// tree of timed events.
//
// # Architecture
//
// A [Proxy] is placed in front of a [Loop]. Every operation made through the
// proxy (adding timers, watching streams, scheduling ticks, running and
// stopping the loop) is recorded as an [Event], and every callback handed to
// the loop is replaced with a wrapper (see [Wrap]) that records each firing as
// a [KindCallbackFired] event, parented to the operation that registered it.
// Operations made while a recorded event is executing (e.g. a timer callback
// that adds another timer) are parented to that event.
//
// Each event moves through [StatusPending], [StatusRunning], then exactly one
// of [StatusCompleted] or [StatusFailed]. Transitions are broadcast through a
// [Dispatcher], on [TopicStarted], [TopicCompleted], and [TopicFailed].
// What happens to events after that is up to subscribers, see the otelprof,
// sqlitestore, and proflog packages.
//
// The reactor package provides a [Loop] implementation.
//
// # Transparency
//
// The proxy does not change what the loop does: return values and errors
// pass through verbatim, and a panic raised by the loop or a callback is
// recorded (as the error itself, if the value is one, otherwise as a
// [*PanicError]) then re-raised with the original value.
//
// # Usage
//
//	r, err := reactor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	loop, err := loopprof.NewProxy(r)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	loop.AddTimer(100*time.Millisecond, func(loopprof.TimerID) {
//	    loop.NextTick(func() { fmt.Println("tick") })
//	})
//
//	if err := loop.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
//	loopprof.FormatTree(os.Stdout, loopprof.BuildTree(loop.Events()))
//
// # Error Types
//
//   - [UnsupportedOperationError]: an operation name outside the fixed set
//   - [InvalidStateError]: an event lifecycle method called out of order
//   - [PanicError]: a recorded non-error panic, from the loop or a callback
package loopprof
