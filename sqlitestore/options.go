// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sqlitestore

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// Option configures [Open].
type Option interface {
	applyStore(*storeOptions) error
}

type storeOptions struct {
	logger        *logiface.Logger[logiface.Event]
	batchSize     int
	flushInterval time.Duration
}

type storeOptionImpl struct {
	applyStoreFunc func(*storeOptions) error
}

func (o *storeOptionImpl) applyStore(opts *storeOptions) error {
	return o.applyStoreFunc(opts)
}

// WithBatchSize sets the maximum number of rows written per transaction.
// Defaults to 64.
func WithBatchSize(n int) Option {
	return &storeOptionImpl{func(opts *storeOptions) error {
		if n <= 0 {
			return errors.New("sqlitestore: batch size must be positive")
		}
		opts.batchSize = n
		return nil
	}}
}

// WithFlushInterval sets the maximum time a row waits before its batch is
// written. Defaults to 50ms. A negative interval disables time based
// flushing, leaving only [WithBatchSize] and [Store.Flush].
func WithFlushInterval(d time.Duration) Option {
	return &storeOptionImpl{func(opts *storeOptions) error {
		if d == 0 {
			return errors.New("sqlitestore: flush interval must be non-zero")
		}
		opts.flushInterval = d
		return nil
	}}
}

// WithLogger sets the logger used to report write failures.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &storeOptionImpl{func(opts *storeOptions) error {
		opts.logger = logger
		return nil
	}}
}

func resolveOptions(opts []Option) (*storeOptions, error) {
	cfg := &storeOptions{
		batchSize:     64,
		flushInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyStore(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
