// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package otelprof

import (
	"context"
	"errors"
	"sync"

	"github.com/joeycumines/go-loopprof"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = `github.com/joeycumines/go-loopprof/otelprof`

// Attribute keys set on every span.
const (
	AttrEventID   = attribute.Key(`loopprof.event.id`)
	AttrEventKind = attribute.Key(`loopprof.event.kind`)
	AttrEventArgs = attribute.Key(`loopprof.event.args`)
	AttrSessionID = attribute.Key(`loopprof.session.id`)
)

// Tracer exports recorded events as spans, one per event, named
// "loopprof.<kind>". Spans are parented per the event tree, so e.g. a timer
// callback's span is a child of the addTimer span, even though it starts
// after that span ended.
type Tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[*loopprof.Event]trace.Span
	// parents retains span contexts beyond the end of each span, for as long
	// as the event may still gain children
	parents map[*loopprof.Event]trace.SpanContext
}

// NewTracer returns a Tracer, which must be attached to a proxy, see
// [Tracer.Attach].
func NewTracer(opts ...Option) (*Tracer, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	provider := cfg.tracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer:  provider.Tracer(instrumentationName),
		spans:   make(map[*loopprof.Event]trace.Span),
		parents: make(map[*loopprof.Event]trace.SpanContext),
	}, nil
}

// Attach subscribes the tracer to the proxy's lifecycle notifications,
// returning a function that detaches it.
func (x *Tracer) Attach(p *loopprof.Proxy) (detach func(), err error) {
	sessionID := p.SessionID()
	return subscribe(p, map[loopprof.Topic]loopprof.Listener{
		loopprof.TopicStarted: func(ev *loopprof.Event) {
			x.start(ev, sessionID)
		},
		loopprof.TopicCompleted: func(ev *loopprof.Event) {
			x.end(ev, nil)
		},
		loopprof.TopicFailed: func(ev *loopprof.Event) {
			x.end(ev, ev.Err())
		},
	})
}

// Release drops the retained span context of ev, which will no longer be
// used to parent spans. Intended for long-running processes, which prune
// their event logs.
func (x *Tracer) Release(ev *loopprof.Event) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.parents, ev)
}

func (x *Tracer) start(ev *loopprof.Event, sessionID string) {
	ctx := context.Background()

	x.mu.Lock()
	if sc, ok := x.parents[ev.Parent()]; ok {
		ctx = trace.ContextWithSpanContext(ctx, sc)
	}
	x.mu.Unlock()

	args := ev.Args()
	formatted := make([]string, len(args))
	for i, arg := range args {
		formatted[i] = loopprof.FormatArg(arg)
	}

	_, span := x.tracer.Start(ctx, `loopprof.`+ev.Kind().String(),
		trace.WithTimestamp(ev.StartTime()),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrEventID.Int64(int64(ev.ID())),
			AttrEventKind.String(ev.Kind().String()),
			AttrEventArgs.StringSlice(formatted),
			AttrSessionID.String(sessionID),
		),
	)

	x.mu.Lock()
	x.spans[ev] = span
	x.parents[ev] = span.SpanContext()
	x.mu.Unlock()
}

func (x *Tracer) end(ev *loopprof.Event, err error) {
	x.mu.Lock()
	span, ok := x.spans[ev]
	delete(x.spans, ev)
	x.mu.Unlock()
	if !ok {
		// started before the tracer was attached
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, ``)
	}
	span.End(trace.WithTimestamp(ev.EndTime()))
}

// subscribe subscribes every listener, unwinding on failure.
func subscribe(p *loopprof.Proxy, listeners map[loopprof.Topic]loopprof.Listener) (func(), error) {
	var unsubscribes []func()
	detach := func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
	// deterministic subscription order
	for _, topic := range [...]loopprof.Topic{loopprof.TopicStarted, loopprof.TopicCompleted, loopprof.TopicFailed} {
		listener, ok := listeners[topic]
		if !ok {
			continue
		}
		unsubscribe, err := p.Subscribe(topic, listener)
		if err != nil {
			detach()
			return nil, errors.Join(errors.New("otelprof: failed to subscribe"), err)
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}
	return detach, nil
}
