// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package otelprof

import (
	"errors"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a [Tracer] or [Metrics].
type Option interface {
	applyOption(*options) error
}

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

type optionImpl struct {
	applyOptionFunc func(*options) error
}

func (o *optionImpl) applyOption(opts *options) error {
	return o.applyOptionFunc(opts)
}

// WithTracerProvider sets the provider used by [NewTracer]. Defaults to the
// global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return &optionImpl{func(opts *options) error {
		if provider == nil {
			return errors.New("otelprof: nil tracer provider")
		}
		opts.tracerProvider = provider
		return nil
	}}
}

// WithMeterProvider sets the provider used by [NewMetrics]. Defaults to the
// global provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return &optionImpl{func(opts *options) error {
		if provider == nil {
			return errors.New("otelprof: nil meter provider")
		}
		opts.meterProvider = provider
		return nil
	}}
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
