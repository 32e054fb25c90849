// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package otelprof

import (
	"context"
	"time"

	"github.com/joeycumines/go-loopprof"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricEvents        = `loopprof.events`
	MetricEventDuration = `loopprof.event.duration_ms`
)

// Metrics counts terminal events, by kind and status, and records their
// durations, by kind.
type Metrics struct {
	events   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the instruments.
func NewMetrics(opts ...Option) (*Metrics, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	provider := cfg.meterProvider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	events, err := meter.Int64Counter(MetricEvents,
		metric.WithDescription("Number of recorded loop events"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(MetricEventDuration,
		metric.WithDescription("Recorded loop event duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		events:   events,
		duration: duration,
	}, nil
}

// Attach subscribes to the proxy's terminal notifications, returning a
// function that detaches it.
func (x *Metrics) Attach(p *loopprof.Proxy) (detach func(), err error) {
	return subscribe(p, map[loopprof.Topic]loopprof.Listener{
		loopprof.TopicCompleted: x.record,
		loopprof.TopicFailed:    x.record,
	})
}

func (x *Metrics) record(ev *loopprof.Event) {
	ctx := context.Background()
	kind := attribute.String(`kind`, ev.Kind().String())
	x.events.Add(ctx, 1, metric.WithAttributes(
		kind,
		attribute.String(`status`, ev.Status().String()),
	))
	x.duration.Record(ctx, float64(ev.Duration())/float64(time.Millisecond), metric.WithAttributes(kind))
}
