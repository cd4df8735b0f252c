// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package fake provides scriptable test doubles for the event package.
package fake

import (
	"sort"
	"sync"
	"time"

	"github.com/momentics/hioload-ev/api"
)

var _ api.Multiplexer = (*Multiplexer)(nil)

// Multiplexer is an in-memory api.Multiplexer. Readiness is set by the test
// and stays until cleared; only fds with matching interest are reported.
type Multiplexer struct {
	mu        sync.Mutex
	interest  map[int]api.Condition
	ready     map[int]api.Condition
	script    [][]api.Ready
	pollErr   error
	updateErr error
	timeouts  []time.Duration
	wakeups   int
	reinits   int
	closed    bool
	wake      chan struct{}
}

// NewMultiplexer returns an empty fake.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{
		interest: make(map[int]api.Condition),
		ready:    make(map[int]api.Condition),
		wake:     make(chan struct{}, 1),
	}
}

func (m *Multiplexer) Name() string { return "fake" }

func (m *Multiplexer) Update(fd int, old, new api.Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return api.ErrClosed
	}
	if err := m.updateErr; err != nil {
		m.updateErr = nil
		return err
	}
	if new == 0 {
		delete(m.interest, fd)
	} else {
		m.interest[fd] = new
	}
	return nil
}

func (m *Multiplexer) Poll(timeout time.Duration, ready []api.Ready) ([]api.Ready, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ready, api.ErrClosed
	}
	m.timeouts = append(m.timeouts, timeout)
	if err := m.pollErr; err != nil {
		m.pollErr = nil
		m.mu.Unlock()
		return ready, err
	}
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		m.mu.Unlock()
		return append(ready, next...), nil
	}
	if out := m.collectLocked(ready); len(out) > len(ready) || timeout == 0 {
		m.mu.Unlock()
		return out, nil
	}
	m.mu.Unlock()

	if timeout < 0 {
		<-m.wake
	} else {
		t := time.NewTimer(timeout)
		select {
		case <-m.wake:
		case <-t.C:
		}
		t.Stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectLocked(ready), nil
}

func (m *Multiplexer) collectLocked(ready []api.Ready) []api.Ready {
	fds := make([]int, 0, len(m.ready))
	for fd := range m.ready {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	for _, fd := range fds {
		if what := m.ready[fd] & m.interest[fd]; what != 0 {
			ready = append(ready, api.Ready{Fd: fd, What: what})
		}
	}
	return ready
}

func (m *Multiplexer) Wakeup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return api.ErrClosed
	}
	m.wakeups++
	m.signal()
	return nil
}

func (m *Multiplexer) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Multiplexer) Reinit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return api.ErrClosed
	}
	m.reinits++
	clear(m.interest)
	return nil
}

func (m *Multiplexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return api.ErrClosed
	}
	m.closed = true
	m.signal()
	return nil
}

// SetReady marks fd ready for what and wakes a blocked Poll.
func (m *Multiplexer) SetReady(fd int, what api.Condition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready[fd] |= what
	m.signal()
}

// ClearReady drops the readiness of fd.
func (m *Multiplexer) ClearReady(fd int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ready, fd)
}

// Script queues results returned verbatim by the next Poll calls, ahead of
// sticky readiness.
func (m *Multiplexer) Script(results ...[]api.Ready) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, results...)
}

// FailPoll makes the next Poll return err.
func (m *Multiplexer) FailPoll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollErr = err
}

// FailUpdate makes the next Update return err.
func (m *Multiplexer) FailUpdate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = err
}

// Interest returns the registered conditions of fd.
func (m *Multiplexer) Interest(fd int) api.Condition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interest[fd]
}

// Timeouts returns the timeouts passed to Poll so far.
func (m *Multiplexer) Timeouts() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.timeouts...)
}

func (m *Multiplexer) Wakeups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wakeups
}

func (m *Multiplexer) Reinits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reinits
}

func (m *Multiplexer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
