// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor implements a single-threaded, reactor-style, event loop,
// satisfying [loopprof.Loop].
//
// Each iteration of the loop runs, in order:
//
//  1. Next ticks, until the queue is empty (including ticks added meanwhile)
//  2. Future ticks, those queued as of the start of the pass
//  3. Expired timers, in deadline order
//  4. A poll for stream readiness, blocking until the next timer (or
//     indefinitely, if there are none) unless there is pending work
//
// Timers have a minimum interval of [MinInterval]. A one-shot timer is
// active until its callback returns, a periodic timer until it is cancelled.
//
// Stream readiness uses epoll on Linux and kqueue on Darwin. Other platforms
// are not supported, and [New] fails with [ErrUnsupportedPlatform].
package reactor
