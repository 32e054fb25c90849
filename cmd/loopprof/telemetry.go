// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeycumines/go-loopprof"
	"github.com/joeycumines/go-loopprof/otelprof"
	"github.com/joeycumines/logiface"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const serviceName = `loopprof`

// telemetry holds the OpenTelemetry subscribers. Metrics are always
// collected, in process, for the summary. Spans are only exported if an
// endpoint is configured.
type telemetry struct {
	reader         *sdkmetric.ManualReader
	meterProvider  *sdkmetric.MeterProvider
	metrics        *otelprof.Metrics
	tracerProvider *sdktrace.TracerProvider
	tracer         *otelprof.Tracer
}

func newTelemetry(ctx context.Context, endpoint string) (*telemetry, error) {
	x := &telemetry{reader: sdkmetric.NewManualReader()}
	x.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(x.reader))

	var err error
	if x.metrics, err = otelprof.NewMetrics(otelprof.WithMeterProvider(x.meterProvider)); err != nil {
		return nil, err
	}

	if endpoint == `` {
		return x, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	x.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	if x.tracer, err = otelprof.NewTracer(otelprof.WithTracerProvider(x.tracerProvider)); err != nil {
		return nil, err
	}

	return x, nil
}

func (x *telemetry) Attach(p *loopprof.Proxy) (detach func(), err error) {
	detachMetrics, err := x.metrics.Attach(p)
	if err != nil {
		return nil, err
	}
	if x.tracer == nil {
		return detachMetrics, nil
	}
	detachTracer, err := x.tracer.Attach(p)
	if err != nil {
		detachMetrics()
		return nil, err
	}
	return func() {
		detachTracer()
		detachMetrics()
	}, nil
}

// EventCounts returns the number of terminal events recorded, by kind then
// status.
func (x *telemetry) EventCounts(ctx context.Context) (map[string]map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := x.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	counts := make(map[string]map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != otelprof.MetricEvents {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				kind, _ := dp.Attributes.Value(`kind`)
				status, _ := dp.Attributes.Value(`status`)
				if counts[kind.AsString()] == nil {
					counts[kind.AsString()] = make(map[string]int64)
				}
				counts[kind.AsString()][status.AsString()] += dp.Value
			}
		}
	}
	return counts, nil
}

// LogSummary logs the event counts, one line per kind and status.
func (x *telemetry) LogSummary(ctx context.Context, logger *logiface.Logger[logiface.Event]) {
	counts, err := x.EventCounts(ctx)
	if err != nil {
		logger.Warning().Err(err).Log(`loopprof: collect metrics failed`)
		return
	}
	for kind, statuses := range counts {
		for status, n := range statuses {
			logger.Info().
				Str(`kind`, kind).
				Str(`status`, status).
				Int64(`count`, n).
				Log(`loopprof: event count`)
		}
	}
}

func (x *telemetry) Shutdown(ctx context.Context) error {
	var err error
	if x.tracerProvider != nil {
		err = x.tracerProvider.Shutdown(ctx)
	}
	return errors.Join(err, x.meterProvider.Shutdown(ctx))
}
