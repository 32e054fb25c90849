// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joeycumines/logiface"
)

// Config is loaded from the environment.
type Config struct {
	LogLevel     LogLevel      `env:"LOOPPROF_LOG_LEVEL"     envDefault:"info"`
	DBPath       string        `env:"LOOPPROF_DB_PATH"`
	OTLPEndpoint string        `env:"LOOPPROF_OTLP_ENDPOINT"`
	Timers       int           `env:"LOOPPROF_TIMERS"        envDefault:"3"`
	Interval     time.Duration `env:"LOOPPROF_INTERVAL"      envDefault:"10ms"`
	Slow         time.Duration `env:"LOOPPROF_SLOW"          envDefault:"5ms"`
}

// LogLevel is a [logiface.Level], parsed from its name.
type LogLevel logiface.Level

var logLevels = map[string]logiface.Level{
	`disabled`: logiface.LevelDisabled,
	`emerg`:    logiface.LevelEmergency,
	`alert`:    logiface.LevelAlert,
	`crit`:     logiface.LevelCritical,
	`err`:      logiface.LevelError,
	`error`:    logiface.LevelError,
	`warning`:  logiface.LevelWarning,
	`warn`:     logiface.LevelWarning,
	`notice`:   logiface.LevelNotice,
	`info`:     logiface.LevelInformational,
	`debug`:    logiface.LevelDebug,
	`trace`:    logiface.LevelTrace,
}

func (x *LogLevel) UnmarshalText(text []byte) error {
	level, ok := logLevels[strings.ToLower(strings.TrimSpace(string(text)))]
	if !ok {
		return fmt.Errorf("unknown log level %q", text)
	}
	*x = LogLevel(level)
	return nil
}

func (x LogLevel) Level() logiface.Level {
	return logiface.Level(x)
}

// LoadConfig parses the configuration from environ, or the process
// environment if environ is nil.
func LoadConfig(environ map[string]string) (*Config, error) {
	var cfg Config
	opts := env.Options{Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (x *Config) validate() error {
	if x.Timers < 0 {
		return errors.New("LOOPPROF_TIMERS must not be negative")
	}
	if x.Interval <= 0 {
		return errors.New("LOOPPROF_INTERVAL must be positive")
	}
	if x.Slow < 0 {
		return errors.New("LOOPPROF_SLOW must not be negative")
	}
	return nil
}
