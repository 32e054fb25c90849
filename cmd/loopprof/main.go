// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command loopprof drives a small workload through a recording proxy, on the
// reference reactor, then prints the resulting event tree.
//
// Configuration is read from the environment:
//
//	LOOPPROF_LOG_LEVEL      log level, e.g. debug (default info)
//	LOOPPROF_DB_PATH        persist events to this SQLite database
//	LOOPPROF_OTLP_ENDPOINT  export spans to this OTLP/HTTP endpoint
//	LOOPPROF_TIMERS         number of one-shot timers (default 3)
//	LOOPPROF_INTERVAL       base timer interval (default 10ms)
//	LOOPPROF_SLOW           log events at least this slow as warnings (default 5ms)
//
// Logs are written to stderr, as JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/go-loopprof"
	"github.com/joeycumines/go-loopprof/proflog"
	"github.com/joeycumines/go-loopprof/reactor"
	"github.com/joeycumines/go-loopprof/sqlitestore"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loopprof: %v\n", err)
		os.Exit(2)
	}

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "loopprof: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

func run(ctx context.Context, cfg *Config, stdout, stderr io.Writer) (err error) {
	logger := newLogger(stderr, cfg.LogLevel.Level())

	r, err := reactor.New(reactor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if e := r.Close(); e != nil && !errors.Is(e, reactor.ErrLoopClosed) {
			err = errors.Join(err, e)
		}
	}()

	p, err := loopprof.NewProxy(r, loopprof.WithLogger(logger))
	if err != nil {
		return err
	}

	reporter, err := proflog.New(logger, proflog.WithSlowThreshold(cfg.Slow))
	if err != nil {
		return err
	}
	detachReporter, err := reporter.Attach(p)
	if err != nil {
		return err
	}
	defer detachReporter()

	telemetry, err := newTelemetry(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if e := telemetry.Shutdown(context.WithoutCancel(ctx)); e != nil {
			logger.Warning().Err(e).Log(`loopprof: telemetry shutdown failed`)
		}
	}()
	detachTelemetry, err := telemetry.Attach(p)
	if err != nil {
		return err
	}
	defer detachTelemetry()

	var store *sqlitestore.Store
	if cfg.DBPath != `` {
		store, err = sqlitestore.Open(ctx, cfg.DBPath, sqlitestore.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() {
			if e := store.Close(); e != nil {
				err = errors.Join(err, e)
			}
		}()
		detachStore, err := store.Attach(p)
		if err != nil {
			return err
		}
		defer detachStore()
	}

	logger.Info().
		Str(`session`, p.SessionID()).
		Int(`timers`, cfg.Timers).
		Dur(`interval`, cfg.Interval).
		Log(`loopprof: workload started`)

	runErr := runWorkload(ctx, p, cfg)
	if errors.Is(runErr, context.Canceled) {
		logger.Notice().Log(`loopprof: interrupted`)
		runErr = nil
	}

	if err := loopprof.FormatTree(stdout, loopprof.BuildTree(p.Events())); err != nil {
		return errors.Join(runErr, err)
	}

	if store != nil {
		if err := store.Flush(context.WithoutCancel(ctx)); err != nil {
			return errors.Join(runErr, err)
		}
	}

	telemetry.LogSummary(context.WithoutCancel(ctx), logger)

	logger.Info().
		Str(`session`, p.SessionID()).
		Int(`events`, p.Len()).
		Uint64(`suppressed`, reporter.Suppressed()).
		Log(`loopprof: workload finished`)

	return runErr
}
