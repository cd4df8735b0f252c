// File: event/options.go
// Package event defines functional options for event bases.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-ev/api"
	"github.com/momentics/hioload-ev/control"
	"github.com/momentics/hioload-ev/internal/bridge"
	"github.com/momentics/hioload-ev/reactor"
)

// Option customizes base initialization.
type Option func(*options)

type options struct {
	backend   string
	maxEvents int
	mux       api.Multiplexer
	sink      string
	lock      sync.Locker
	logger    *zerolog.Logger
	metrics   *control.Metrics
	probes    *control.DebugProbes
}

func defaultOptions() options {
	return options{
		maxEvents: reactor.DefaultMaxEvents,
		sink:      bridge.DefaultSink,
	}
}

// WithBackend selects a registered multiplexer by name; "" picks the preferred one.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithMaxEvents sets the initial readiness buffer size.
func WithMaxEvents(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEvents = n
		}
	}
}

// WithMultiplexer injects a multiplexer instead of allocating one. The base
// takes ownership and closes it on Free.
func WithMultiplexer(m api.Multiplexer) Option {
	return func(o *options) {
		o.mux = m
	}
}

// WithSink names the callback sink to resolve.
func WithSink(name string) Option {
	return func(o *options) {
		o.sink = name
	}
}

// WithRuntimeLock sets the lock released while the loop blocks in the
// multiplexer. Goroutines other than the dispatcher must hold it to touch
// the base or its events.
func WithRuntimeLock(l sync.Locker) Option {
	return func(o *options) {
		o.lock = l
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *control.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithProbes registers the base's Stats as a debug probe.
func WithProbes(p *control.DebugProbes) Option {
	return func(o *options) {
		o.probes = p
	}
}

// WithConfig applies the backend and buffer size of cfg.
func WithConfig(cfg control.Config) Option {
	return func(o *options) {
		o.backend = cfg.Backend
		if cfg.MaxEvents > 0 {
			o.maxEvents = cfg.MaxEvents
		}
	}
}
