// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package loopprof_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/joeycumines/go-loopprof"
	"github.com/joeycumines/go-loopprof/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReactorProxy(t *testing.T) (*loopprof.Proxy, *reactor.Reactor) {
	t.Helper()
	r, err := reactor.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	p, err := loopprof.NewProxy(r)
	require.NoError(t, err)
	return p, r
}

func eventsOfKind(events []*loopprof.Event, kind loopprof.Kind) []*loopprof.Event {
	var out []*loopprof.Event
	for _, ev := range events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestProxy_reactor_periodicTimer(t *testing.T) {
	p, _ := newReactorProxy(t)

	var count int
	id, err := p.AddPeriodicTimer(time.Millisecond, func(id loopprof.TimerID) {
		count++
		if count == 3 {
			p.CancelTimer(id)
		}
	})
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 3, count)
	assert.False(t, p.IsTimerActive(id))

	events := p.Events()
	add := events[0]
	assert.Equal(t, loopprof.KindAddPeriodicTimer, add.Kind())

	fired := eventsOfKind(events, loopprof.KindCallbackFired)
	require.Len(t, fired, 3)
	for _, ev := range fired {
		assert.Same(t, add, ev.Parent())
		assert.Equal(t, []any{id}, ev.Args())
		assert.Equal(t, loopprof.StatusCompleted, ev.Status())
	}

	cancels := eventsOfKind(events, loopprof.KindCancelTimer)
	require.Len(t, cancels, 1)
	assert.Same(t, fired[2], cancels[0].Parent())
}

func TestProxy_reactor_streams(t *testing.T) {
	p, _ := newReactorProxy(t)

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()
	defer pw.Close()

	readFD, writeFD := int(pr.Fd()), int(pw.Fd())

	var received []byte
	require.NoError(t, p.AddReadStream(readFD, func(fd int) {
		buf := make([]byte, 16)
		n, err := pr.Read(buf)
		require.NoError(t, err)
		received = append(received, buf[:n]...)
		require.NoError(t, p.RemoveReadStream(fd))
	}))
	require.NoError(t, p.AddWriteStream(writeFD, func(fd int) {
		_, err := pw.Write([]byte(`ping`))
		require.NoError(t, err)
		require.NoError(t, p.RemoveWriteStream(fd))
	}))

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, `ping`, string(received))

	events := p.Events()
	addRead, addWrite := events[0], events[1]
	fired := eventsOfKind(events, loopprof.KindCallbackFired)
	require.Len(t, fired, 2)
	assert.Same(t, addWrite, fired[0].Parent())
	assert.Equal(t, []any{writeFD}, fired[0].Args())
	assert.Same(t, addRead, fired[1].Parent())
	assert.Equal(t, []any{readFD}, fired[1].Args())
}

func TestProxy_reactor_stopFromAnotherGoroutine(t *testing.T) {
	p, r := newReactorProxy(t)

	id, err := p.AddTimer(time.Hour, func(loopprof.TimerID) {})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.State() != reactor.StateSleeping {
		require.True(t, time.Now().Before(deadline), `timed out waiting for the loop to sleep`)
		time.Sleep(time.Millisecond)
	}

	p.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out waiting for Run`)
	}

	assert.True(t, p.IsTimerActive(id))

	events := p.Events()
	require.Len(t, events, 4)
	run, stop := events[1], events[2]
	assert.Equal(t, loopprof.KindRun, run.Kind())
	assert.Equal(t, loopprof.KindStop, stop.Kind())
	assert.Nil(t, stop.Parent())
	assert.Equal(t, loopprof.StatusCompleted, run.Status())
	assert.Empty(t, eventsOfKind(events, loopprof.KindCallbackFired))
}

func TestProxy_reactor_runCancelled(t *testing.T) {
	p, _ := newReactorProxy(t)

	_, err := p.AddTimer(time.Hour, func(loopprof.TimerID) {})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = p.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	run := eventsOfKind(p.Events(), loopprof.KindRun)
	require.Len(t, run, 1)
	assert.Equal(t, loopprof.StatusFailed, run[0].Status())
	assert.Equal(t, err, run[0].Err())
}

func TestProxy_reactor_callbackPanic(t *testing.T) {
	p, r := newReactorProxy(t)

	sentinel := errors.New(`callback failed`)
	require.NoError(t, p.NextTick(func() { panic(sentinel) }))

	func() {
		defer func() {
			assert.Same(t, sentinel, recover())
		}()
		_ = p.Run(context.Background())
		t.Error(`expected panic`)
	}()

	assert.Equal(t, reactor.StateAwake, r.State())
	assert.Nil(t, p.Current())

	events := p.Events()
	require.Len(t, events, 3)
	nextTick, run, fired := events[0], events[1], events[2]
	assert.Equal(t, loopprof.StatusCompleted, nextTick.Status())
	assert.Same(t, nextTick, fired.Parent())
	assert.ErrorIs(t, fired.Err(), sentinel)
	// the panic unwound through run, too
	assert.Equal(t, loopprof.StatusFailed, run.Status())
	assert.ErrorIs(t, run.Err(), sentinel)
}

func TestProxy_reactor_reentrantRun(t *testing.T) {
	p, _ := newReactorProxy(t)

	var runErr error
	require.NoError(t, p.NextTick(func() {
		runErr = p.Run(context.Background())
	}))
	require.NoError(t, p.Run(context.Background()))

	require.ErrorIs(t, runErr, reactor.ErrReentrantRun)
	runs := eventsOfKind(p.Events(), loopprof.KindRun)
	require.Len(t, runs, 2)
	assert.Equal(t, loopprof.StatusCompleted, runs[0].Status())
	assert.Equal(t, loopprof.StatusFailed, runs[1].Status())
	assert.Equal(t, loopprof.KindCallbackFired, runs[1].Parent().Kind())
}
