// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bridge

import (
	"sync"

	"github.com/momentics/hioload-ev/api"
)

// Bridge is the per-base view of the process sink plus its blocking section.
type Bridge struct {
	sink    Sink
	section *Section
}

// New resolves sinkName and wraps lock. Resolution failure is a configuration error.
func New(sinkName string, lock sync.Locker) (*Bridge, error) {
	s, err := Resolve(sinkName)
	if err != nil {
		return nil, err
	}
	return &Bridge{sink: s, section: NewSection(lock)}, nil
}

// Blocking releases the runtime lock around fn.
func (b *Bridge) Blocking(fn func() error) error {
	return b.section.Blocking(fn)
}

// Blocked reports whether the dispatch goroutine is parked in the multiplexer.
func (b *Bridge) Blocked() bool {
	return b.section.Blocked()
}

// Call delivers one ready event. It runs with the runtime lock held and does
// not recover panics.
func (b *Bridge) Call(id uint64, fd int, what api.Condition) error {
	return b.sink(id, fd, what)
}
