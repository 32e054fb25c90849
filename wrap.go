// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

// Wrap returns a replacement for fn which, each time it is invoked, records a
// [KindCallbackFired] event (with the argument as its only arg) parented to
// origin, around the call to fn. This is how a callback's execution, which
// may happen long after the operation that registered it, is attributed back
// to that operation.
//
// A nil fn is returned as-is. Each call to Wrap produces an independent
// wrapper.
func Wrap[A any](p *Proxy, origin *Event, fn func(A)) func(A) {
	if fn == nil {
		return nil
	}
	return func(arg A) {
		p.recordCallback(NewEvent(KindCallbackFired, arg), origin, func() { fn(arg) })
	}
}

// WrapFunc is [Wrap] for callbacks without arguments.
func WrapFunc(p *Proxy, origin *Event, fn func()) func() {
	if fn == nil {
		return nil
	}
	return func() {
		p.recordCallback(NewEvent(KindCallbackFired), origin, fn)
	}
}

func (p *Proxy) recordCallback(ev *Event, origin *Event, fn func()) {
	if origin != nil {
		if err := ev.SetParent(origin); err != nil {
			panic(err)
		}
	}
	_, _ = p.record(ev, false, func() (any, error) {
		fn()
		return nil, nil
	})
}
