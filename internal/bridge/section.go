// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bridge

import (
	"sync"

	"go.uber.org/atomic"
)

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// Section pairs the release and reacquisition of the host runtime lock around
// a single blocking call. The dispatching goroutine must hold the lock
// whenever it is outside Blocking.
type Section struct {
	lock    sync.Locker
	blocked atomic.Bool
}

// NewSection wraps lock; nil means no host lock.
func NewSection(lock sync.Locker) *Section {
	if lock == nil {
		lock = noopLocker{}
	}
	return &Section{lock: lock}
}

// Blocking runs fn with the runtime lock released. The lock is held again
// when Blocking returns, including when fn panics.
func (s *Section) Blocking(fn func() error) error {
	s.blocked.Store(true)
	s.lock.Unlock()
	defer func() {
		s.lock.Lock()
		s.blocked.Store(false)
	}()
	return fn()
}

// Blocked reports whether the owner is currently parked inside Blocking.
func (s *Section) Blocked() bool {
	return s.blocked.Load()
}
