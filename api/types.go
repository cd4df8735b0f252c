// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants: condition masks,
// loop modes and dispatch phases.

package api

import (
	"strconv"
	"strings"
)

// Condition is a bitwise-combinable set of readiness conditions.
// Values match the classic libevent flag layout.
type Condition uint16

const (
	EvTimeout Condition = 0x01
	EvRead    Condition = 0x02
	EvWrite   Condition = 0x04
	EvSignal  Condition = 0x08
	// EvPersist keeps an event registered after it fires.
	EvPersist Condition = 0x10
)

// NoFd marks events that are not bound to a file descriptor (pure timers).
const NoFd = -1

// IO reports whether c asks for fd readiness.
func (c Condition) IO() bool {
	return c&(EvRead|EvWrite) != 0
}

// Has reports whether every bit of other is set in c.
func (c Condition) Has(other Condition) bool {
	return c&other == other
}

func (c Condition) String() string {
	if c == 0 {
		return "NONE"
	}
	var parts []string
	names := []struct {
		bit  Condition
		name string
	}{
		{EvTimeout, "TIMEOUT"},
		{EvRead, "READ"},
		{EvWrite, "WRITE"},
		{EvSignal, "SIGNAL"},
		{EvPersist, "PERSIST"},
	}
	for _, n := range names {
		if c&n.bit != 0 {
			parts = append(parts, n.name)
			c &^= n.bit
		}
	}
	if c != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(c), 16))
	}
	return strings.Join(parts, "|")
}

// LoopMode selects how long a dispatch loop runs.
type LoopMode int

const (
	// LoopForever runs until no events remain, LoopBreak/LoopExit, or an error.
	LoopForever LoopMode = iota
	// LoopOnce blocks until at least one callback has run, then returns.
	LoopOnce
	// LoopNonblock runs a single zero-timeout cycle.
	LoopNonblock
)

func (m LoopMode) String() string {
	switch m {
	case LoopForever:
		return "forever"
	case LoopOnce:
		return "once"
	case LoopNonblock:
		return "nonblock"
	default:
		return "unknown"
	}
}

// ParseLoopMode maps symbolic names to loop modes. "dispatch" aliases forever.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(s) {
	case "", "forever", "dispatch":
		return LoopForever, nil
	case "once":
		return LoopOnce, nil
	case "nonblock":
		return LoopNonblock, nil
	}
	return 0, NewError(ErrCodeInvalidArgument, "unknown loop mode").WithContext("mode", s)
}

// Phase is the dispatch state of an event base.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePolling
	PhaseDispatching
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePolling:
		return "polling"
	case PhaseDispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}
