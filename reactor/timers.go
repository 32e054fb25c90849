// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"container/heap"
	"time"

	"github.com/joeycumines/go-loopprof"
)

// MinInterval is the smallest timer interval, shorter intervals are rounded
// up to it.
const MinInterval = time.Microsecond

type timer struct {
	when     time.Time
	callback loopprof.TimerCallback
	interval time.Duration
	id       loopprof.TimerID
	index    int // heap index, -1 if not scheduled
	periodic bool
}

// timerHeap is a min-heap of timers, ordered by deadline then ID.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].id < h[j].id
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// AddTimer schedules callback to run once, after interval.
func (r *Reactor) AddTimer(interval time.Duration, callback loopprof.TimerCallback) (loopprof.TimerID, error) {
	return r.addTimer(interval, callback, false)
}

// AddPeriodicTimer schedules callback to run every interval, until cancelled.
func (r *Reactor) AddPeriodicTimer(interval time.Duration, callback loopprof.TimerCallback) (loopprof.TimerID, error) {
	return r.addTimer(interval, callback, true)
}

func (r *Reactor) addTimer(interval time.Duration, callback loopprof.TimerCallback, periodic bool) (loopprof.TimerID, error) {
	if callback == nil {
		return 0, ErrNilCallback
	}
	if interval < MinInterval {
		interval = MinInterval
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, ErrLoopClosed
	}
	r.nextTimerID++
	t := &timer{
		id:       loopprof.TimerID(r.nextTimerID),
		when:     time.Now().Add(interval),
		interval: interval,
		callback: callback,
		periodic: periodic,
	}
	heap.Push(&r.timers, t)
	r.timerIndex[t.id] = t
	r.mu.Unlock()

	r.wakeIfSleeping()

	return t.id, nil
}

// CancelTimer cancels the timer, if it is active. Cancelling a timer from
// within its own callback prevents a periodic timer from rescheduling.
func (r *Reactor) CancelTimer(id loopprof.TimerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timerIndex[id]
	if !ok {
		return
	}
	delete(r.timerIndex, id)
	if t.index >= 0 {
		heap.Remove(&r.timers, t.index)
	}
}

// IsTimerActive returns true if the timer is scheduled, or is a one-shot
// timer whose callback is running.
func (r *Reactor) IsTimerActive(id loopprof.TimerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timerIndex[id]
	return ok
}

// runTimers fires every timer due as of now. Timers rescheduled or added
// during this pass are not due until a later pass.
func (r *Reactor) runTimers(now time.Time) {
	for {
		r.mu.Lock()
		if len(r.timers) == 0 || r.timers[0].when.After(now) {
			r.mu.Unlock()
			return
		}
		t := heap.Pop(&r.timers).(*timer)
		r.mu.Unlock()

		r.fireTimer(t, now)
	}
}

func (r *Reactor) fireTimer(t *timer, now time.Time) {
	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.timerIndex[t.id] != t {
			// cancelled during the callback
			return
		}
		if t.periodic {
			t.when = now.Add(t.interval)
			heap.Push(&r.timers, t)
		} else {
			delete(r.timerIndex, t.id)
		}
	}()
	t.callback(t.id)
}

// nextTimerDeadline must be called with mu held.
func (r *Reactor) nextTimerDeadline() (time.Time, bool) {
	if len(r.timers) == 0 {
		return time.Time{}, false
	}
	return r.timers[0].when, true
}
