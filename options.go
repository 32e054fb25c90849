// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// proxyOptions holds configuration options for Proxy creation.
type proxyOptions struct {
	logger     *logiface.Logger[logiface.Event]
	dispatcher *Dispatcher
	sessionID  string
}

// Option configures a [Proxy] instance.
type Option interface {
	applyProxy(*proxyOptions) error
}

// proxyOptionImpl implements Option.
type proxyOptionImpl struct {
	applyProxyFunc func(*proxyOptions) error
}

func (o *proxyOptionImpl) applyProxy(opts *proxyOptions) error {
	return o.applyProxyFunc(opts)
}

// WithLogger attaches a structured logger, used to trace recorded events at
// [logiface.LevelTrace]. A nil logger disables logging (the default).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &proxyOptionImpl{func(opts *proxyOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithDispatcher uses the given dispatcher, instead of a new one, e.g. to
// share subscribers between proxies.
func WithDispatcher(dispatcher *Dispatcher) Option {
	return &proxyOptionImpl{func(opts *proxyOptions) error {
		if dispatcher == nil {
			return errors.New("loopprof: nil dispatcher")
		}
		opts.dispatcher = dispatcher
		return nil
	}}
}

// WithSessionID overrides the generated session ID, which identifies the
// events of one proxy, e.g. once persisted.
func WithSessionID(id string) Option {
	return &proxyOptionImpl{func(opts *proxyOptions) error {
		if id == `` {
			return errors.New("loopprof: empty session id")
		}
		opts.sessionID = id
		return nil
	}}
}

// resolveProxyOptions applies Option instances to proxyOptions.
func resolveProxyOptions(opts []Option) (*proxyOptions, error) {
	cfg := &proxyOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyProxy(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
