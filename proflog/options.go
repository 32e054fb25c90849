// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proflog

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
)

// DefaultRateLimits apply to warning and error lines, per event kind, unless
// overridden by [WithRateLimits].
var DefaultRateLimits = map[time.Duration]int{
	time.Second: 10,
	time.Minute: 100,
}

// Option configures [New].
type Option interface {
	applyReporter(*reporterOptions) error
}

type reporterOptions struct {
	limiter       *catrate.Limiter
	slowThreshold time.Duration
}

type reporterOptionImpl struct {
	applyReporterFunc func(*reporterOptions) error
}

func (o *reporterOptionImpl) applyReporter(opts *reporterOptions) error {
	return o.applyReporterFunc(opts)
}

// WithSlowThreshold logs completed events that ran for at least d as
// warnings. Zero disables it, which is the default.
func WithSlowThreshold(d time.Duration) Option {
	return &reporterOptionImpl{func(opts *reporterOptions) error {
		if d < 0 {
			return errors.New("proflog: negative slow threshold")
		}
		opts.slowThreshold = d
		return nil
	}}
}

// WithRateLimits replaces [DefaultRateLimits], see [catrate.NewLimiter] for
// the requirements. An empty map disables rate limiting.
func WithRateLimits(rates map[time.Duration]int) Option {
	return &reporterOptionImpl{func(opts *reporterOptions) error {
		if len(rates) == 0 {
			opts.limiter = nil
			return nil
		}
		limiter, err := newLimiter(rates)
		if err != nil {
			return err
		}
		opts.limiter = limiter
		return nil
	}}
}

func newLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("proflog: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

func resolveOptions(opts []Option) (*reporterOptions, error) {
	limiter, err := newLimiter(DefaultRateLimits)
	if err != nil {
		return nil, err
	}
	cfg := &reporterOptions{limiter: limiter}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyReporter(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
