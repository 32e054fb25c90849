// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"errors"
)

var (
	// ErrLoopAlreadyRunning is returned by [Reactor.Run] if the loop is
	// already running on another goroutine.
	ErrLoopAlreadyRunning = errors.New("reactor: loop is already running")

	// ErrLoopRunning is returned by [Reactor.Tick] if [Reactor.Run] is active
	// on another goroutine.
	ErrLoopRunning = errors.New("reactor: loop is running")

	// ErrReentrantRun is returned by [Reactor.Run] and [Reactor.Tick] when
	// called from within a callback.
	ErrReentrantRun = errors.New("reactor: cannot run loop from within a callback")

	// ErrLoopClosed is returned once [Reactor.Close] has been called.
	ErrLoopClosed = errors.New("reactor: loop is closed")

	// ErrUnsupportedPlatform is returned by [New] on platforms without a
	// poller implementation.
	ErrUnsupportedPlatform = errors.New("reactor: unsupported platform")

	// ErrNilCallback is returned when registering a nil callback.
	ErrNilCallback = errors.New("reactor: nil callback")

	// ErrInvalidFD is returned for negative file descriptors.
	ErrInvalidFD = errors.New("reactor: invalid file descriptor")

	// Poller errors.
	ErrFDOutOfRange        = errors.New("reactor: fd out of range (max 100000000)")
	ErrFDAlreadyRegistered = errors.New("reactor: fd already registered")
	ErrFDNotRegistered     = errors.New("reactor: fd not registered")
	ErrPollerClosed        = errors.New("reactor: poller closed")
)
