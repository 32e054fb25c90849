// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build !linux && !darwin

package reactor

type fastPoller struct{}

func (p *fastPoller) Init() error { return ErrUnsupportedPlatform }

func (p *fastPoller) Close() error { return nil }

func (p *fastPoller) RegisterFD(int, IOEvents, ioCallback) error { return ErrUnsupportedPlatform }

func (p *fastPoller) UnregisterFD(int) error { return ErrUnsupportedPlatform }

func (p *fastPoller) ModifyFD(int, IOEvents) error { return ErrUnsupportedPlatform }

func (p *fastPoller) PollIO(int) (int, error) { return 0, ErrUnsupportedPlatform }

func createWakeFd() (int, int, error) { return -1, -1, ErrUnsupportedPlatform }

func signalWakeFd(int) error { return ErrUnsupportedPlatform }

func drainWakeFd(int) {}

func closeFD(int) error { return nil }
