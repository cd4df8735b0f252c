// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract contract for OS readiness multiplexers
// (epoll, poll, kqueue, ...) consumed by the event base.

package api

import "time"

// Ready is one readiness notification reported by a multiplexer.
type Ready struct {
	Fd   int
	What Condition // EvRead and/or EvWrite
}

// Multiplexer is an opaque readiness poller. An event base owns exactly one
// instance. Wakeup is called from any goroutine, and Update may run while
// another goroutine is blocked in Poll.
type Multiplexer interface {
	// Name returns the backend method name, e.g. "epoll".
	Name() string

	// Update changes the interest set for fd from old to new. old == 0 adds
	// the fd, new == 0 removes it. Only EvRead and EvWrite are meaningful.
	Update(fd int, old, new Condition) error

	// Poll blocks for at most timeout (negative blocks indefinitely) and
	// appends ready fds to ready. Interrupted waits return no events and no error.
	Poll(timeout time.Duration, ready []Ready) ([]Ready, error)

	// Wakeup interrupts a blocked Poll. Safe to call from any goroutine.
	Wakeup() error

	// Reinit discards kernel state and starts with an empty interest set.
	Reinit() error

	// Close releases the backend. Subsequent calls fail with ErrClosed.
	Close() error
}
