// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

import (
	"runtime"
	"sync"
	"time"
	"weak"

	"go.uber.org/atomic"

	"github.com/momentics/hioload-ev/api"
	"github.com/momentics/hioload-ev/internal/bridge"
	"github.com/momentics/hioload-ev/internal/timerq"
)

// Callback runs on the dispatch goroutine with the fd (or signal number) and
// the conditions that fired. A returned error stops the loop and is reported
// to the Loop caller as a *CallbackError.
type Callback func(ev *Event, fd int, what api.Condition) error

type evFlags uint8

const (
	flagInserted evFlags = 1 << iota // fd or signal interest registered
	flagTimeout                      // deadline queued
	flagActive                       // queued for callback
	flagInternal                     // owned by the base
	flagFreed
)

const pendingFlags = flagInserted | flagTimeout | flagActive

var (
	nextID atomic.Uint64
	// live maps identities handed to the callback sink back to events. It
	// holds weak pointers; an event dropped without Free leaves the map
	// once collected. Pending events stay reachable through their base.
	live sync.Map // uint64 -> weak.Pointer[Event]
)

func init() {
	bridge.Register(bridge.DefaultSink, dispatch)
}

func forget(id uint64) { live.Delete(id) }

// dispatch is the process-wide callback sink.
func dispatch(id uint64, fd int, what api.Condition) error {
	v, ok := live.Load(id)
	if !ok {
		return nil
	}
	ev := v.(weak.Pointer[Event]).Value()
	if ev == nil || ev.cb == nil {
		return nil
	}
	return ev.cb(ev, fd, what)
}

// Event is a registration of interest. Events are compared by identity.
// The zero value is usable and gets its identity on Set.
type Event struct {
	id     uint64
	fd     int
	events api.Condition
	cb     Callback
	base   *Base

	flags     evFlags
	res       api.Condition // conditions collected while active
	activeGen uint64

	timeout    time.Duration // re-armed on persistent events
	hasTimeout bool
	timer      *timerq.Entry[*Event]
}

// New returns an unbound, inactive event.
func New() *Event {
	return &Event{id: nextID.Inc(), fd: api.NoFd}
}

// ID returns the stable identity passed through the callback bridge.
func (ev *Event) ID() uint64 { return ev.id }

// Fd returns the bound fd, the signal number for signal events, or api.NoFd.
func (ev *Event) Fd() int { return ev.fd }

// Conditions returns the requested condition mask.
func (ev *Event) Conditions() api.Condition { return ev.events }

// Base returns the owning base, or nil when unbound.
func (ev *Event) Base() *Base { return ev.base }

// Set binds the event to base with fd and the requested conditions. Use fd
// api.NoFd for pure timers and the signal number for EvSignal.
func (ev *Event) Set(base *Base, fd int, what api.Condition, cb Callback) error {
	const op = "event_set"
	if ev.flags&flagFreed != 0 {
		return opError(op, api.ErrCodeUseAfterRelease, api.ErrEventFreed)
	}
	if base == nil {
		return invalidArgument(op, "nil event base")
	}
	if err := base.check(op); err != nil {
		return err
	}
	if ev.flags&pendingFlags != 0 {
		return opError(op, api.ErrCodeState, api.ErrEventPending)
	}
	switch {
	case what&api.EvSignal != 0 && what.IO():
		return invalidArgument(op, "signal events cannot wait for fd readiness")
	case what&api.EvSignal != 0 && !validSignal(fd):
		return invalidArgument(op, "invalid signal number")
	case what.IO() && fd < 0:
		return invalidArgument(op, "invalid file descriptor")
	}
	if ev.id == 0 {
		ev.id = nextID.Inc()
		live.Store(ev.id, weak.Make(ev))
		runtime.AddCleanup(ev, forget, ev.id)
	}
	ev.base = base
	ev.fd = fd
	ev.events = what
	ev.cb = cb
	ev.res = 0
	ev.hasTimeout = false
	return nil
}

func (ev *Event) usable(op string) error {
	if ev.flags&flagFreed != 0 {
		return opError(op, api.ErrCodeUseAfterRelease, api.ErrEventFreed)
	}
	if ev.base == nil {
		return opError(op, api.ErrCodeRegistration, api.ErrNotBound)
	}
	return ev.base.check(op)
}

// Add makes the event pending without a timeout. An existing timeout is kept.
// A pure timer added without a timeout stays non-pending.
func (ev *Event) Add() error {
	if err := ev.usable("event_add"); err != nil {
		return err
	}
	return ev.base.add(ev, 0, false)
}

// AddTimeout makes the event pending and (re)schedules its timeout.
func (ev *Event) AddTimeout(d time.Duration) error {
	const op = "event_add"
	if err := ev.usable(op); err != nil {
		return err
	}
	if d < 0 {
		return invalidArgument(op, "negative timeout")
	}
	return ev.base.add(ev, d, true)
}

// AddSeconds is AddTimeout with a fractional number of seconds, truncated to
// microsecond precision.
func (ev *Event) AddSeconds(sec float64) error {
	tv, err := api.TimevalFromSeconds(sec)
	if err != nil {
		return err
	}
	return ev.AddTimeout(tv.Duration())
}

// Del cancels the event. Deleting an inactive or unbound event is a no-op.
func (ev *Event) Del() error {
	const op = "event_del"
	if ev.flags&flagFreed != 0 {
		return opError(op, api.ErrCodeUseAfterRelease, api.ErrEventFreed)
	}
	if ev.base == nil || ev.flags&pendingFlags == 0 {
		return nil
	}
	if err := ev.base.check(op); err != nil {
		return err
	}
	return ev.base.del(ev, op)
}

// Active queues the event for its callback on the next dispatch pass with
// what as the fired conditions, bypassing the multiplexer.
func (ev *Event) Active(what api.Condition) error {
	if err := ev.usable("event_active"); err != nil {
		return err
	}
	ev.base.activate(ev, what)
	ev.base.notify()
	return nil
}

// PendingMask returns the conditions the event is pending or active on.
func (ev *Event) PendingMask() api.Condition {
	var m api.Condition
	if ev.flags&flagInserted != 0 {
		m |= ev.events & (api.EvRead | api.EvWrite | api.EvSignal)
	}
	if ev.flags&flagTimeout != 0 {
		m |= api.EvTimeout
	}
	if ev.flags&flagActive != 0 {
		m |= ev.res
	}
	return m
}

// Pending reports whether the event is pending or active on every condition
// in what. Pending(0) reports whether it is pending at all.
func (ev *Event) Pending(what api.Condition) bool {
	if ev.flags&pendingFlags == 0 {
		return false
	}
	return ev.PendingMask()&what == what
}

// Deadline returns when the scheduled timeout expires.
func (ev *Event) Deadline() (time.Time, bool) {
	if ev.flags&flagTimeout == 0 || ev.timer == nil {
		return time.Time{}, false
	}
	return ev.timer.Deadline, true
}

// Free deactivates the event and releases its identity. It is idempotent;
// every other operation on a freed event fails with api.ErrEventFreed.
func (ev *Event) Free() error {
	if ev.flags&flagFreed != 0 {
		return nil
	}
	var err error
	if ev.base != nil && ev.flags&pendingFlags != 0 && ev.base.check("event_free") == nil {
		err = ev.base.del(ev, "event_free")
	}
	live.Delete(ev.id)
	ev.flags = flagFreed
	ev.cb = nil
	ev.base = nil
	ev.timer = nil
	return err
}
