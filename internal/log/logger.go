// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package log provides the structured logger shared by the reactor packages.
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
	Level   string    // optional level ("debug", "info", ...); falls back to HIOLOAD_EV_LOG_LEVEL
	Output  io.Writer // defaults to os.Stderr
	Service string    // attached to every entry, defaults to "hioload-ev"
}

var (
	mu   sync.RWMutex
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global logger exactly once. Later calls are ignored;
// use SetLevel to adjust verbosity at runtime.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.WarnLevel
		name := cfg.Level
		if name == "" {
			name = os.Getenv("HIOLOAD_EV_LOG_LEVEL")
		}
		if name != "" {
			if parsed, err := zerolog.ParseLevel(name); err == nil {
				level = parsed
			}
		}
		zerolog.TimeFieldFormat = time.RFC3339Nano

		writer := cfg.Output
		if writer == nil {
			writer = os.Stderr
		}
		service := cfg.Service
		if service == "" {
			service = "hioload-ev"
		}

		mu.Lock()
		base = zerolog.New(writer).Level(level).With().
			Timestamp().
			Str("service", service).
			Logger()
		mu.Unlock()
	})
}

// SetLevel changes the level of the base logger. Loggers derived earlier keep
// their level.
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	Configure(Config{})
	mu.Lock()
	base = base.Level(parsed)
	mu.Unlock()
	return nil
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	Configure(Config{})
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}
