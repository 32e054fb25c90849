// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"github.com/joeycumines/go-loopprof"
)

// AddReadStream calls listener whenever fd is readable. If fd already has a
// read listener, this is a no-op.
func (r *Reactor) AddReadStream(fd int, listener loopprof.StreamListener) error {
	return r.addStream(fd, EventRead, listener)
}

// AddWriteStream calls listener whenever fd is writable. If fd already has a
// write listener, this is a no-op.
func (r *Reactor) AddWriteStream(fd int, listener loopprof.StreamListener) error {
	return r.addStream(fd, EventWrite, listener)
}

// RemoveReadStream removes the read listener for fd, if any.
func (r *Reactor) RemoveReadStream(fd int) error {
	return r.removeStream(fd, EventRead)
}

// RemoveWriteStream removes the write listener for fd, if any.
func (r *Reactor) RemoveWriteStream(fd int) error {
	return r.removeStream(fd, EventWrite)
}

// RemoveStream removes both listeners for fd, if any.
func (r *Reactor) RemoveStream(fd int) error {
	return r.removeStream(fd, EventRead|EventWrite)
}

func (r *Reactor) addStream(fd int, direction IOEvents, listener loopprof.StreamListener) error {
	if fd < 0 {
		return ErrInvalidFD
	}
	if listener == nil {
		return ErrNilCallback
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrLoopClosed
	}
	listeners := r.listenersFor(direction)
	if _, ok := listeners[fd]; ok {
		r.mu.Unlock()
		return nil
	}
	listeners[fd] = listener
	err := r.updateInterest(fd)
	if err != nil {
		delete(listeners, fd)
	}
	r.mu.Unlock()

	if err != nil {
		return err
	}

	r.wakeIfSleeping()

	return nil
}

func (r *Reactor) removeStream(fd int, directions IOEvents) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrLoopClosed
	}
	var changed bool
	for _, direction := range [...]IOEvents{EventRead, EventWrite} {
		if directions&direction == 0 {
			continue
		}
		listeners := r.listenersFor(direction)
		if _, ok := listeners[fd]; ok {
			delete(listeners, fd)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.updateInterest(fd)
}

// listenersFor must be called with mu held.
func (r *Reactor) listenersFor(direction IOEvents) map[int]loopprof.StreamListener {
	if direction == EventWrite {
		return r.writers
	}
	return r.readers
}

// updateInterest syncs the poller registration for fd with the listener
// maps. It must be called with mu held.
func (r *Reactor) updateInterest(fd int) error {
	var events IOEvents
	if _, ok := r.readers[fd]; ok {
		events |= EventRead
	}
	if _, ok := r.writers[fd]; ok {
		events |= EventWrite
	}

	registered, ok := r.interest[fd]
	switch {
	case !ok && events == 0:
		return nil
	case !ok:
		if err := r.poller.RegisterFD(fd, events, func(ready IOEvents) { r.dispatchStream(fd, ready) }); err != nil {
			return err
		}
	case events == 0:
		delete(r.interest, fd)
		// the fd may already be closed, which deregisters it implicitly
		_ = r.poller.UnregisterFD(fd)
		return nil
	case events != registered:
		if err := r.poller.ModifyFD(fd, events); err != nil {
			return err
		}
	}
	r.interest[fd] = events
	return nil
}

// dispatchStream calls the listeners of a ready fd. Error and hangup
// conditions are delivered to both, so they can observe EOF.
func (r *Reactor) dispatchStream(fd int, ready IOEvents) {
	const failure = EventError | EventHangup

	if ready&(EventRead|failure) != 0 {
		r.mu.Lock()
		listener := r.readers[fd]
		r.mu.Unlock()
		if listener != nil {
			listener(fd)
		}
	}

	// re-read, the read listener may have removed the write listener
	if ready&(EventWrite|failure) != 0 {
		r.mu.Lock()
		listener := r.writers[fd]
		r.mu.Unlock()
		if listener != nil {
			listener(fd)
		}
	}
}
