// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral multiplexer registry and factory.

package reactor

import (
	"sort"
	"sync"
	"time"

	"github.com/momentics/hioload-ev/api"
)

// DefaultMaxEvents is the initial size of the per-poll event buffer.
const DefaultMaxEvents = 128

// Config carries backend construction parameters.
type Config struct {
	// MaxEvents sizes the initial readiness buffer. Backends may grow it.
	MaxEvents int
}

func (c Config) maxEvents() int {
	if c.MaxEvents <= 0 {
		return DefaultMaxEvents
	}
	return c.MaxEvents
}

// Factory constructs a multiplexer instance.
type Factory func(cfg Config) (api.Multiplexer, error)

type backend struct {
	name     string
	priority int
	factory  Factory
}

var (
	mu       sync.RWMutex
	backends []backend
)

// Register makes a backend available under name. Higher priority backends are
// preferred when no name is requested. Registering a name twice replaces it.
func Register(name string, priority int, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	for i := range backends {
		if backends[i].name == name {
			backends[i] = backend{name: name, priority: priority, factory: f}
			sortBackends()
			return
		}
	}
	backends = append(backends, backend{name: name, priority: priority, factory: f})
	sortBackends()
}

func sortBackends() {
	sort.SliceStable(backends, func(i, j int) bool {
		return backends[i].priority > backends[j].priority
	})
}

// Methods lists registered backend names, preferred first.
func Methods() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.name)
	}
	return names
}

// New constructs the named backend, or the preferred one when name is empty.
func New(name string, cfg Config) (api.Multiplexer, error) {
	mu.RLock()
	defer mu.RUnlock()
	if len(backends) == 0 {
		return nil, api.NewError(api.ErrCodeNotSupported, "reactor: no multiplexer available on this platform")
	}
	if name == "" {
		return backends[0].factory(cfg)
	}
	for _, b := range backends {
		if b.name == name {
			return b.factory(cfg)
		}
	}
	return nil, api.NewError(api.ErrCodeNotSupported, "reactor: unknown multiplexer").WithContext("method", name)
}

// timeoutMillis converts a poll timeout to the millisecond argument of
// epoll_wait/poll, rounding up so sub-millisecond timers do not spin.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	v := (d + time.Millisecond - 1) / time.Millisecond
	if v > 1<<31-1 {
		v = 1<<31 - 1
	}
	return int(v)
}
