// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bridge

import (
	"sync"

	"github.com/momentics/hioload-ev/api"
)

// DefaultSink is the name the event package registers its dispatcher under.
const DefaultSink = "event_cb"

// Sink receives (event identity, fd or signal number, fired conditions).
type Sink func(id uint64, fd int, what api.Condition) error

var (
	sinkMu     sync.Mutex
	registered = make(map[string]Sink)
	resolved   = make(map[string]Sink)
)

// Register publishes s under name. A nil sink withdraws the registration.
// Names that were already resolved keep their cached sink.
func Register(name string, s Sink) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if s == nil {
		delete(registered, name)
		return
	}
	registered[name] = s
}

// Resolve looks name up once; the first successful result is cached for the
// life of the process.
func Resolve(name string) (Sink, error) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if s, ok := resolved[name]; ok {
		return s, nil
	}
	s, ok := registered[name]
	if !ok {
		return nil, &api.Error{
			Code:    api.ErrCodeConfiguration,
			Op:      "event_base_init",
			Message: "callback sink " + name + " not registered",
			Err:     api.ErrSinkUnresolved,
		}
	}
	resolved[name] = s
	return s, nil
}

// Resolved reports whether name has been resolved.
func Resolved(name string) bool {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	_, ok := resolved[name]
	return ok
}
