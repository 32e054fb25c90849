// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package reactor

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-loopprof"
)

func TestReactor_Run_idleReturnsImmediately(t *testing.T) {
	r := newTestReactor(t)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if state := r.State(); state != StateAwake {
		t.Errorf("expected StateAwake, got %v", state)
	}
}

func TestReactor_AddTimer_deadlineOrder(t *testing.T) {
	r := newTestReactor(t)

	var order []int
	for _, v := range []int{3, 1, 2} {
		if _, err := r.AddTimer(time.Duration(v)*time.Millisecond, func(loopprof.TimerID) {
			order = append(order, v)
		}); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if want := []int{1, 2, 3}; !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestReactor_AddTimer_uniqueIncreasingIDs(t *testing.T) {
	r := newTestReactor(t)
	var last loopprof.TimerID
	for i := 0; i < 10; i++ {
		id, err := r.AddTimer(time.Hour, func(loopprof.TimerID) {})
		if err != nil {
			t.Fatal(err)
		}
		if id <= last {
			t.Fatalf("expected id > %v, got %v", last, id)
		}
		last = id
	}
}

func TestReactor_AddTimer_activeDuringCallback(t *testing.T) {
	r := newTestReactor(t)

	var (
		id     loopprof.TimerID
		active bool
		fired  loopprof.TimerID
	)
	id, err := r.AddTimer(0, func(v loopprof.TimerID) {
		fired = v
		active = r.IsTimerActive(v)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsTimerActive(id) {
		t.Error("expected timer to be active before it fires")
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if fired != id {
		t.Errorf("expected callback to receive %v, got %v", id, fired)
	}
	if !active {
		t.Error("expected one-shot timer to be active during its callback")
	}
	if r.IsTimerActive(id) {
		t.Error("expected one-shot timer to be inactive after it fired")
	}
}

func TestReactor_AddPeriodicTimer_cancelFromCallback(t *testing.T) {
	r := newTestReactor(t)

	var count int
	id, err := r.AddPeriodicTimer(time.Millisecond, func(id loopprof.TimerID) {
		count++
		if count == 3 {
			r.CancelTimer(id)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if count != 3 {
		t.Errorf("expected 3 firings, got %d", count)
	}
	if r.IsTimerActive(id) {
		t.Error("expected cancelled periodic timer to be inactive")
	}
}

func TestReactor_CancelTimer_idempotent(t *testing.T) {
	r := newTestReactor(t)

	var fired bool
	id, err := r.AddTimer(time.Millisecond, func(loopprof.TimerID) { fired = true })
	if err != nil {
		t.Fatal(err)
	}

	r.CancelTimer(id)
	r.CancelTimer(id)
	r.CancelTimer(loopprof.TimerID(12345))

	if r.IsTimerActive(id) {
		t.Error("expected cancelled timer to be inactive")
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if fired {
		t.Error("cancelled timer fired")
	}
}

func TestReactor_Tick_tickOrdering(t *testing.T) {
	r := newTestReactor(t)

	var order []string
	if err := r.FutureTick(func() {
		order = append(order, `f1`)
		_ = r.FutureTick(func() { order = append(order, `f2`) })
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.NextTick(func() {
		order = append(order, `n1`)
		_ = r.NextTick(func() { order = append(order, `n2`) })
	}); err != nil {
		t.Fatal(err)
	}

	if err := r.Tick(); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if want := []string{`n1`, `n2`, `f1`}; !reflect.DeepEqual(order, want) {
		t.Fatalf("expected %v after first tick, got %v", want, order)
	}

	if err := r.Tick(); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if want := []string{`n1`, `n2`, `f1`, `f2`}; !reflect.DeepEqual(order, want) {
		t.Fatalf("expected %v after second tick, got %v", want, order)
	}
}

func TestReactor_Tick_ticksBeforeTimers(t *testing.T) {
	r := newTestReactor(t)

	var order []string
	if _, err := r.AddTimer(time.Microsecond, func(loopprof.TimerID) { order = append(order, `timer`) }); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if err := r.FutureTick(func() { order = append(order, `future`) }); err != nil {
		t.Fatal(err)
	}
	if err := r.NextTick(func() { order = append(order, `next`) }); err != nil {
		t.Fatal(err)
	}

	if err := r.Tick(); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	if want := []string{`next`, `future`, `timer`}; !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestReactor_AddReadStream(t *testing.T) {
	r := newTestReactor(t)
	pr, pw := testPipe(t)
	fd := int(pr.Fd())

	if _, err := pw.Write([]byte(`x`)); err != nil {
		t.Fatal(err)
	}

	var calls []int
	listener := func(v int) {
		calls = append(calls, v)
		if err := r.RemoveReadStream(v); err != nil {
			t.Errorf("RemoveReadStream() error: %v", err)
		}
	}
	if err := r.AddReadStream(fd, listener); err != nil {
		t.Fatal(err)
	}
	// duplicate registration is a no-op
	if err := r.AddReadStream(fd, func(int) { t.Error("duplicate listener called") }); err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if want := []int{fd}; !reflect.DeepEqual(calls, want) {
		t.Errorf("expected %v, got %v", want, calls)
	}
}

func TestReactor_AddWriteStream(t *testing.T) {
	r := newTestReactor(t)
	_, pw := testPipe(t)
	fd := int(pw.Fd())

	var calls int
	if err := r.AddWriteStream(fd, func(v int) {
		calls++
		_ = r.RemoveStream(v)
	}); err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestReactor_RemoveStream_missing(t *testing.T) {
	r := newTestReactor(t)
	pr, _ := testPipe(t)
	fd := int(pr.Fd())
	if err := r.RemoveReadStream(fd); err != nil {
		t.Errorf("RemoveReadStream() error: %v", err)
	}
	if err := r.RemoveWriteStream(fd); err != nil {
		t.Errorf("RemoveWriteStream() error: %v", err)
	}
	if err := r.RemoveStream(fd); err != nil {
		t.Errorf("RemoveStream() error: %v", err)
	}
}

func TestReactor_Stop_fromAnotherGoroutine(t *testing.T) {
	r := newTestReactor(t)
	pr, _ := testPipe(t)

	// never readable, blocks the poll indefinitely
	if err := r.AddReadStream(int(pr.Fd()), func(int) {}); err != nil {
		t.Fatal(err)
	}

	done := runAsync(r, context.Background())
	waitForState(t, r, StateSleeping)

	r.Stop()

	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestReactor_Stop_beforeRun(t *testing.T) {
	r := newTestReactor(t)
	r.Stop()

	var fired bool
	if _, err := r.AddTimer(time.Millisecond, func(loopprof.TimerID) { fired = true }); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !fired {
		t.Error("expected a Stop before Run to not affect Run")
	}
}

func TestReactor_Stop_fromCallback(t *testing.T) {
	r := newTestReactor(t)

	var count int
	if _, err := r.AddPeriodicTimer(time.Millisecond, func(loopprof.TimerID) {
		count++
		r.Stop()
	}); err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 firing, got %d", count)
	}
}

func TestReactor_Run_contextCancel(t *testing.T) {
	r := newTestReactor(t)
	if _, err := r.AddTimer(time.Hour, func(loopprof.TimerID) {}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestReactor_AddTimer_wakesSleepingLoop(t *testing.T) {
	r := newTestReactor(t)
	pr, _ := testPipe(t)
	if err := r.AddReadStream(int(pr.Fd()), func(int) {}); err != nil {
		t.Fatal(err)
	}

	done := runAsync(r, context.Background())
	waitForState(t, r, StateSleeping)

	var fired atomic.Bool
	if _, err := r.AddTimer(time.Millisecond, func(loopprof.TimerID) {
		fired.Store(true)
		r.Stop()
	}); err != nil {
		t.Fatal(err)
	}

	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !fired.Load() {
		t.Error("expected timer to fire")
	}
}

func TestReactor_reentrant(t *testing.T) {
	r := newTestReactor(t)

	var runErr, tickErr error
	if err := r.NextTick(func() {
		runErr = r.Run(context.Background())
		tickErr = r.Tick()
	}); err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !errors.Is(runErr, ErrReentrantRun) {
		t.Errorf("expected ErrReentrantRun from Run, got %v", runErr)
	}
	if !errors.Is(tickErr, ErrReentrantRun) {
		t.Errorf("expected ErrReentrantRun from Tick, got %v", tickErr)
	}
}

func TestReactor_concurrentRun(t *testing.T) {
	r := newTestReactor(t)
	pr, _ := testPipe(t)
	if err := r.AddReadStream(int(pr.Fd()), func(int) {}); err != nil {
		t.Fatal(err)
	}

	done := runAsync(r, context.Background())
	waitForState(t, r, StateRunning, StateSleeping)

	if err := r.Run(context.Background()); !errors.Is(err, ErrLoopAlreadyRunning) {
		t.Errorf("expected ErrLoopAlreadyRunning, got %v", err)
	}
	if err := r.Tick(); !errors.Is(err, ErrLoopRunning) {
		t.Errorf("expected ErrLoopRunning, got %v", err)
	}

	r.Stop()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestReactor_callbackPanicPropagates(t *testing.T) {
	r := newTestReactor(t)

	if err := r.NextTick(func() { panic(`boom`) }); err != nil {
		t.Fatal(err)
	}

	func() {
		defer func() {
			if v := recover(); v != `boom` {
				t.Errorf("expected panic %q, got %v", `boom`, v)
			}
		}()
		_ = r.Tick()
		t.Error("expected Tick to panic")
	}()

	if state := r.State(); state != StateAwake {
		t.Fatalf("expected StateAwake after panic, got %v", state)
	}

	var ran bool
	if err := r.NextTick(func() { ran = true }); err != nil {
		t.Fatal(err)
	}
	if err := r.Tick(); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if !ran {
		t.Error("expected loop to be usable after a panic")
	}
}

func TestReactor_timerPanicStillRemoved(t *testing.T) {
	r := newTestReactor(t)

	id, err := r.AddTimer(time.Microsecond, func(loopprof.TimerID) { panic(`boom`) })
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	func() {
		defer func() { _ = recover() }()
		_ = r.Tick()
	}()

	if r.IsTimerActive(id) {
		t.Error("expected one-shot timer to be removed after a panicking callback")
	}
}

func TestReactor_invalidArguments(t *testing.T) {
	r := newTestReactor(t)

	if _, err := r.AddTimer(time.Millisecond, nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("expected ErrNilCallback, got %v", err)
	}
	if err := r.NextTick(nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("expected ErrNilCallback, got %v", err)
	}
	if err := r.AddReadStream(-1, func(int) {}); !errors.Is(err, ErrInvalidFD) {
		t.Errorf("expected ErrInvalidFD, got %v", err)
	}
	if err := r.AddWriteStream(0, nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("expected ErrNilCallback, got %v", err)
	}
}

func TestReactor_Close(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddTimer(time.Hour, func(loopprof.TimerID) {}); err != nil {
		t.Fatal(err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if state := r.State(); state != StateTerminated {
		t.Errorf("expected StateTerminated, got %v", state)
	}
	if err := r.Close(); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("expected ErrLoopClosed, got %v", err)
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("expected ErrLoopClosed from Run, got %v", err)
	}
	if err := r.Tick(); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("expected ErrLoopClosed from Tick, got %v", err)
	}
	if _, err := r.AddTimer(time.Millisecond, func(loopprof.TimerID) {}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("expected ErrLoopClosed from AddTimer, got %v", err)
	}
	if err := r.FutureTick(func() {}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("expected ErrLoopClosed from FutureTick, got %v", err)
	}

	// safe after close
	r.Stop()
}

func TestReactor_Close_whileRunning(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	pr, _ := testPipe(t)
	if err := r.AddReadStream(int(pr.Fd()), func(int) {}); err != nil {
		t.Fatal(err)
	}

	done := runAsync(r, context.Background())
	waitForState(t, r, StateSleeping)

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if state := r.State(); state != StateTerminated {
		t.Errorf("expected StateTerminated, got %v", state)
	}
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		StateAwake:      `Awake`,
		StateRunning:    `Running`,
		StateSleeping:   `Sleeping`,
		StateTerminated: `Terminated`,
		State(99):       `Unknown`,
	} {
		if got := state.String(); got != want {
			t.Errorf("%d: expected %q, got %q", state, want, got)
		}
	}
}
