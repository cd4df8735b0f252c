// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

import (
	"strconv"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/momentics/hioload-ev/api"
	"github.com/momentics/hioload-ev/control"
	"github.com/momentics/hioload-ev/internal/bridge"
	"github.com/momentics/hioload-ev/internal/log"
	"github.com/momentics/hioload-ev/internal/timerq"
	"github.com/momentics/hioload-ev/reactor"
)

// Handle states. The zero value of Base is uninitialized.
const (
	stateUninitialized int32 = iota
	stateValid
	stateReleased
)

var nextBaseID atomic.Uint64

type fdEntry struct {
	events []*Event // registration order
	mask   api.Condition
}

// activation is one entry of the active queue; stale entries (event deleted
// or re-activated since) are skipped by comparing generations.
type activation struct {
	ev  *Event
	gen uint64
}

// Base owns one multiplexer and the events registered with it.
type Base struct {
	id     uint64
	label  string
	state  atomic.Int32
	phase  atomic.Int32
	mux    api.Multiplexer
	method string
	bridge *bridge.Bridge

	log     zerolog.Logger
	metrics *control.Metrics
	probes  *control.DebugProbes

	fds       map[int]*fdEntry
	nInserted int
	timers    timerq.Queue[*Event]
	active    *queue.Queue // of activation
	nActive   int
	ready     []api.Ready
	signals   *signalSet

	running  bool
	gotBreak atomic.Bool
	gotExit  atomic.Bool
	exitEv   *Event
	cycles   uint64
}

// NewBase allocates a multiplexer and resolves the callback sink. Both
// failures are configuration errors. A multiplexer passed with
// WithMultiplexer is closed when NewBase fails.
func NewBase(opts ...Option) (*Base, error) {
	const op = "event_base_init"
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	br, err := bridge.New(o.sink, o.lock)
	if err != nil {
		if o.mux != nil {
			_ = o.mux.Close()
		}
		return nil, err
	}

	mux := o.mux
	if mux == nil {
		mux, err = reactor.New(o.backend, reactor.Config{MaxEvents: o.maxEvents})
		if err != nil {
			return nil, &api.Error{
				Code:    api.ErrCodeConfiguration,
				Op:      op,
				Message: "multiplexer allocation failed",
				Err:     err,
			}
		}
	}

	id := nextBaseID.Inc()
	b := &Base{
		id:      id,
		label:   strconv.FormatUint(id, 10),
		mux:     mux,
		method:  mux.Name(),
		bridge:  br,
		metrics: o.metrics,
		probes:  o.probes,
		fds:     make(map[int]*fdEntry),
		active:  queue.New(),
	}
	logger := log.WithComponent("event")
	if o.logger != nil {
		logger = *o.logger
	}
	b.log = logger.With().Uint64("base", id).Str("method", b.method).Logger()
	b.state.Store(stateValid)

	if b.probes != nil {
		b.probes.RegisterProbe(b.probeName(), func() any { return b.Stats() })
	}
	b.metrics.SetPending(b.label, 0)
	b.log.Debug().Msg("event base initialized")
	return b, nil
}

func (b *Base) probeName() string {
	return "event_base." + b.label
}

// check fails fast on a nil, zero-value or released base.
func (b *Base) check(op string) error {
	if b == nil {
		return opError(op, api.ErrCodeUseAfterRelease, api.ErrBaseUninitialized)
	}
	switch b.state.Load() {
	case stateValid:
		return nil
	case stateReleased:
		return opError(op, api.ErrCodeUseAfterRelease, api.ErrBaseReleased)
	default:
		return opError(op, api.ErrCodeUseAfterRelease, api.ErrBaseUninitialized)
	}
}

// Method returns the multiplexer backend name.
func (b *Base) Method() string { return b.method }

// Phase returns the current dispatch phase. Safe from any goroutine.
func (b *Base) Phase() api.Phase { return api.Phase(b.phase.Load()) }

func (b *Base) setPhase(p api.Phase) { b.phase.Store(int32(p)) }

func (b *Base) now() time.Time { return time.Now() }

// notify wakes the loop when it is parked in the multiplexer; the caller is
// then another goroutine holding the runtime lock.
func (b *Base) notify() {
	if !b.bridge.Blocked() {
		return
	}
	if err := b.mux.Wakeup(); err != nil {
		b.log.Warn().Err(err).Msg("wakeup failed")
	}
}

func (b *Base) add(ev *Event, d time.Duration, withTimeout bool) error {
	const op = "event_add"
	if ev.events&(api.EvRead|api.EvWrite|api.EvSignal) != 0 && ev.flags&flagInserted == 0 {
		var err error
		if ev.events&api.EvSignal != 0 {
			err = b.addSignal(ev)
		} else {
			err = b.addIO(ev)
		}
		if err != nil {
			b.log.Debug().Err(err).Int("fd", ev.fd).Msg("registration rejected")
			return opError(op, api.ErrCodeRegistration, err)
		}
		ev.flags |= flagInserted
		b.nInserted++
	}

	if withTimeout {
		if ev.flags&flagTimeout != 0 {
			b.timers.Remove(ev.timer)
		}
		// a fired-but-undelivered timeout is superseded by the new deadline
		if ev.flags&flagActive != 0 && ev.res == api.EvTimeout {
			b.deactivate(ev)
		}
		ev.timeout = d
		ev.hasTimeout = true
		ev.timer = b.timers.Push(b.now().Add(d), ev)
		ev.flags |= flagTimeout
	}

	b.notify()
	b.metrics.SetPending(b.label, b.pendingCount())
	return nil
}

func (b *Base) addIO(ev *Event) error {
	ent := b.fds[ev.fd]
	var old api.Condition
	if ent != nil {
		old = ent.mask
	}
	mask := old | ev.events&(api.EvRead|api.EvWrite)
	if mask != old {
		if err := b.mux.Update(ev.fd, old, mask); err != nil {
			return err
		}
	}
	if ent == nil {
		ent = &fdEntry{}
		b.fds[ev.fd] = ent
	}
	ent.events = append(ent.events, ev)
	ent.mask = mask
	return nil
}

func (b *Base) delIO(ev *Event) error {
	ent := b.fds[ev.fd]
	if ent == nil {
		return nil
	}
	var mask api.Condition
	kept := ent.events[:0]
	for _, other := range ent.events {
		if other == ev {
			continue
		}
		kept = append(kept, other)
		mask |= other.events & (api.EvRead | api.EvWrite)
	}
	for i := len(kept); i < len(ent.events); i++ {
		ent.events[i] = nil
	}
	ent.events = kept
	old := ent.mask
	ent.mask = mask
	if len(kept) == 0 {
		delete(b.fds, ev.fd)
	}
	if mask == old {
		return nil
	}
	return b.mux.Update(ev.fd, old, mask)
}

func (b *Base) deactivate(ev *Event) {
	if ev.flags&flagActive == 0 {
		return
	}
	ev.flags &^= flagActive
	ev.res = 0
	b.nActive--
}

// compactThreshold bounds how many stale activations may pile up in the
// active queue beyond the live ones.
const compactThreshold = 64

// compactActive drops stale activations once they dominate the queue, so
// repeated activate/delete outside the loop does not grow it without bound.
// A running loop drains the queue itself and owns its length.
func (b *Base) compactActive() {
	n := b.active.Length()
	if b.running || n <= 2*b.nActive+compactThreshold {
		return
	}
	fresh := queue.New()
	for i := 0; i < n; i++ {
		a := b.active.Remove().(activation)
		if a.ev.flags&flagActive != 0 && a.ev.activeGen == a.gen {
			fresh.Add(a)
		}
	}
	b.active = fresh
}

// del removes every trace of ev from the base. Multiplexer failures are
// reported, but the event is inactive afterwards regardless.
func (b *Base) del(ev *Event, op string) error {
	if ev.flags&flagTimeout != 0 {
		b.timers.Remove(ev.timer)
		ev.timer = nil
		ev.flags &^= flagTimeout
	}
	b.deactivate(ev)
	b.compactActive()
	ev.hasTimeout = false

	var err error
	if ev.flags&flagInserted != 0 {
		ev.flags &^= flagInserted
		b.nInserted--
		if ev.events&api.EvSignal != 0 {
			b.delSignal(ev)
		} else if uerr := b.delIO(ev); uerr != nil {
			err = opError(op, api.ErrCodeRegistration, uerr)
		}
	}
	b.metrics.SetPending(b.label, b.pendingCount())
	return err
}

func (b *Base) activate(ev *Event, what api.Condition) {
	if ev.flags&flagActive != 0 {
		ev.res |= what
		return
	}
	ev.flags |= flagActive
	ev.res = what
	ev.activeGen++
	b.nActive++
	b.active.Add(activation{ev: ev, gen: ev.activeGen})
}

func (b *Base) pendingCount() int {
	return b.nInserted + b.timers.Len() + b.nActive
}

func (b *Base) haveEvents() bool {
	return b.pendingCount() > 0
}

// userPending excludes the base's own loop-exit timer.
func (b *Base) userPending() int {
	n := b.pendingCount()
	if ev := b.exitEv; ev != nil {
		if ev.flags&flagTimeout != 0 {
			n--
		}
		if ev.flags&flagActive != 0 {
			n--
		}
	}
	return n
}

// Reinit recreates the multiplexer state in place, e.g. in a forked child.
// Events waiting on fds or signals are deactivated and must be re-added;
// pure timers and already-active events are kept.
func (b *Base) Reinit() error {
	const op = "event_reinit"
	if err := b.check(op); err != nil {
		return err
	}
	if err := b.mux.Reinit(); err != nil {
		return opError(op, api.ErrCodeInternal, err)
	}

	var dropped []*Event
	for _, ent := range b.fds {
		dropped = append(dropped, ent.events...)
	}
	b.fds = make(map[int]*fdEntry)
	dropped = append(dropped, b.signalEvents()...)
	for _, ev := range dropped {
		_ = b.del(ev, op)
	}
	b.log.Info().Int("dropped", len(dropped)).Msg("event base reinitialized")
	return nil
}

// Free releases the multiplexer. Events still pending or active make Free
// fail with api.ErrEventsPending; bound but inactive events are fine and
// fail with api.ErrBaseReleased afterwards.
func (b *Base) Free() error {
	const op = "event_base_free"
	if err := b.check(op); err != nil {
		return err
	}
	if b.running {
		return opError(op, api.ErrCodeState, api.ErrLoopRunning)
	}
	if n := b.userPending(); n > 0 {
		return api.OpError(op, api.ErrCodeState, api.ErrEventsPending).WithContext("pending", n)
	}
	if b.exitEv != nil {
		_ = b.exitEv.Free()
		b.exitEv = nil
	}
	b.stopSignals()
	b.state.Store(stateReleased)

	if b.probes != nil {
		b.probes.UnregisterProbe(b.probeName())
	}
	b.metrics.ForgetBase(b.label)
	if err := b.mux.Close(); err != nil {
		return opError(op, api.ErrCodeInternal, err)
	}
	b.log.Debug().Msg("event base released")
	return nil
}

// Stats is a point-in-time view of a base.
type Stats struct {
	ID       uint64 `json:"id"`
	Method   string `json:"method"`
	Phase    string `json:"phase"`
	Inserted int    `json:"inserted"`
	Timers   int    `json:"timers"`
	Active   int    `json:"active"`
	Queued   int    `json:"queued"`
	Signals  int    `json:"signals"`
	Cycles   uint64 `json:"cycles"`
	Released bool   `json:"released"`
}

// Stats reads loop state; call it from the dispatch goroutine or with the
// runtime lock held.
func (b *Base) Stats() Stats {
	return Stats{
		ID:       b.id,
		Method:   b.method,
		Phase:    b.Phase().String(),
		Inserted: b.nInserted,
		Timers:   b.timers.Len(),
		Active:   b.nActive,
		Queued:   b.active.Length(),
		Signals:  b.watchedSignals(),
		Cycles:   b.cycles,
		Released: b.state.Load() == stateReleased,
	}
}
