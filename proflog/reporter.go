// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proflog

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-loopprof"
	"github.com/joeycumines/logiface"
)

// Reporter logs the events of attached proxies.
type Reporter struct {
	logger        *logiface.Logger[logiface.Event]
	limiter       *catrate.Limiter
	slowThreshold time.Duration
	suppressed    atomic.Uint64
}

// limitCategory is the rate limiting category.
type limitCategory struct {
	kind  loopprof.Kind
	level logiface.Level
}

// New returns a Reporter writing to logger, which may be nil.
func New(logger *logiface.Logger[logiface.Event], opts ...Option) (*Reporter, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		logger:        logger,
		limiter:       cfg.limiter,
		slowThreshold: cfg.slowThreshold,
	}, nil
}

// Suppressed returns the number of lines dropped by rate limiting.
func (x *Reporter) Suppressed() uint64 {
	return x.suppressed.Load()
}

// Attach subscribes to every lifecycle topic of the proxy.
func (x *Reporter) Attach(p *loopprof.Proxy) (detach func(), err error) {
	sessionID := p.SessionID()

	listeners := map[loopprof.Topic]loopprof.Listener{
		loopprof.TopicStarted: func(ev *loopprof.Event) {
			x.started(sessionID, ev)
		},
		loopprof.TopicCompleted: func(ev *loopprof.Event) {
			x.completed(sessionID, ev)
		},
		loopprof.TopicFailed: func(ev *loopprof.Event) {
			x.failed(sessionID, ev)
		},
	}

	var unsubscribes []func()
	detach = func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
	for _, topic := range [...]loopprof.Topic{loopprof.TopicStarted, loopprof.TopicCompleted, loopprof.TopicFailed} {
		unsubscribe, err := p.Subscribe(topic, listeners[topic])
		if err != nil {
			detach()
			return nil, err
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}

	return detach, nil
}

func (x *Reporter) started(sessionID string, ev *loopprof.Event) {
	b := x.logger.Debug()
	if b == nil {
		// disabled
		return
	}
	eventFields(b, sessionID, ev).
		Time(`started`, ev.StartTime()).
		Log(`loopprof: event started`)
}

func (x *Reporter) completed(sessionID string, ev *loopprof.Event) {
	duration := ev.Duration()

	level := logiface.LevelInformational
	if x.slowThreshold > 0 && duration >= x.slowThreshold {
		level = logiface.LevelWarning
	}
	if !x.allow(ev.Kind(), level) {
		return
	}

	b := x.logger.Build(level)
	if b == nil {
		return
	}
	b = eventFields(b, sessionID, ev).
		Dur(`duration`, duration)
	if result := ev.Result(); result != nil {
		b = b.Str(`result`, loopprof.FormatArg(result))
	}
	if level == logiface.LevelWarning {
		b.Log(`loopprof: slow event`)
		return
	}
	b.Log(`loopprof: event completed`)
}

func (x *Reporter) failed(sessionID string, ev *loopprof.Event) {
	if !x.allow(ev.Kind(), logiface.LevelError) {
		return
	}
	eventFields(x.logger.Err(), sessionID, ev).
		Dur(`duration`, ev.Duration()).
		Err(ev.Err()).
		Log(`loopprof: event failed`)
}

// allow applies rate limiting to warning and error lines.
func (x *Reporter) allow(kind loopprof.Kind, level logiface.Level) bool {
	if level > logiface.LevelWarning {
		return true
	}
	if _, ok := x.limiter.Allow(limitCategory{kind: kind, level: level}); ok {
		return true
	}
	x.suppressed.Add(1)
	return false
}

func eventFields(b *logiface.Builder[logiface.Event], sessionID string, ev *loopprof.Event) *logiface.Builder[logiface.Event] {
	b = b.Str(`session`, sessionID).
		Uint64(`id`, ev.ID()).
		Str(`kind`, ev.Kind().String())
	if parent := ev.Parent(); parent != nil {
		b = b.Uint64(`parent`, parent.ID())
	}
	if args := ev.Args(); len(args) != 0 {
		s := make([]string, len(args))
		for i, arg := range args {
			s[i] = loopprof.FormatArg(arg)
		}
		b = b.Str(`args`, strings.Join(s, `, `))
	}
	return b
}
