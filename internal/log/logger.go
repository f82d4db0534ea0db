// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stderr)
	Service string    // optional service name attached to every log entry
	Version string    // optional build version attached to every log entry
	Console bool      // human readable output instead of JSON
}

var (
	mu   sync.RWMutex
	base zerolog.Logger
)

// Configure (re)initialises the global zerolog logger. The CLI calls it once with
// safe defaults and again after configuration has been loaded.
func Configure(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("TOURCAST_LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	if cfg.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}

	service := cfg.Service
	if service == "" {
		service = "tourcast"
	}

	ctx := zerolog.New(writer).With().
		Timestamp().
		Str("service", service)
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}

	mu.Lock()
	base = ctx.Logger()
	mu.Unlock()
}

// L returns the configured base logger instance.
func L() *zerolog.Logger {
	l := Base()
	return &l
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

func init() {
	Configure(Config{})
}
