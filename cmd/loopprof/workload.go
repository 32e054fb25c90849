// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joeycumines/go-loopprof"
)

// runWorkload schedules the demo work through p, then runs the loop. The
// loop is stopped once every piece of work has finished:
//
//   - cfg.Timers one-shot timers, each scheduling a next tick
//   - a periodic timer, cancelled by its own callback after cfg.Timers fires
//   - a future tick
//   - a pipe, written once its write end is ready, then read and unwatched
func runWorkload(ctx context.Context, p *loopprof.Proxy, cfg *Config) error {
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe: %w", err)
	}
	defer pr.Close()
	defer pw.Close()

	// callbacks all run on the loop goroutine
	remaining := cfg.Timers + 3
	done := func() {
		remaining--
		if remaining == 0 {
			p.Stop()
		}
	}

	for i := 1; i <= cfg.Timers; i++ {
		if _, err := p.AddTimer(time.Duration(i)*cfg.Interval, func(loopprof.TimerID) {
			if err := p.NextTick(done); err != nil {
				done()
			}
		}); err != nil {
			return err
		}
	}

	fires := 0
	if _, err := p.AddPeriodicTimer(cfg.Interval, func(id loopprof.TimerID) {
		fires++
		if fires >= cfg.Timers {
			p.CancelTimer(id)
			done()
		}
	}); err != nil {
		return err
	}
	if err := p.FutureTick(done); err != nil {
		return err
	}

	readFD, writeFD := int(pr.Fd()), int(pw.Fd())

	if err := p.AddWriteStream(writeFD, func(fd int) {
		_, _ = pw.Write([]byte(`ping`))
		_ = p.RemoveWriteStream(fd)
	}); err != nil {
		return err
	}

	if err := p.AddReadStream(readFD, func(fd int) {
		buf := make([]byte, 64)
		_, _ = pr.Read(buf)
		_ = p.RemoveReadStream(fd)
		done()
	}); err != nil {
		return err
	}

	return p.Run(ctx)
}
