// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

import (
	"context"
	"time"

	"github.com/momentics/hioload-ev/api"
)

// Loop runs dispatch cycles in the given mode. It returns nil when no events
// remain, on LoopBreak or LoopExit, after the first callback in LoopOnce and
// after one cycle in LoopNonblock. A callback error stops the loop and is
// returned as a *CallbackError; entries not yet processed stay queued.
func (b *Base) Loop(mode api.LoopMode) error {
	return b.loop(mode, nil)
}

// Dispatch is Loop(api.LoopForever).
func (b *Base) Dispatch() error {
	return b.Loop(api.LoopForever)
}

// LoopContext is Loop bounded by ctx. Cancellation interrupts a blocked poll
// and is reported as ctx.Err().
func (b *Base) LoopContext(ctx context.Context, mode api.LoopMode) error {
	if err := b.check("event_loop"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = b.mux.Wakeup()
	})
	defer stop()

	err := b.loop(mode, func() bool { return ctx.Err() != nil })
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (b *Base) loop(mode api.LoopMode, stop func() bool) error {
	const op = "event_loop"
	if err := b.check(op); err != nil {
		return err
	}
	switch mode {
	case api.LoopForever, api.LoopOnce, api.LoopNonblock:
	default:
		return invalidArgument(op, "unknown loop mode")
	}
	if b.running {
		return opError(op, api.ErrCodeState, api.ErrLoopRunning)
	}
	b.running = true
	b.gotBreak.Store(false)
	b.gotExit.Store(false)
	defer func() {
		b.running = false
		b.setPhase(api.PhaseIdle)
	}()

	fired := 0
	for {
		if b.gotBreak.Load() || b.gotExit.Load() || (stop != nil && stop()) {
			return nil
		}
		if !b.haveEvents() {
			b.log.Debug().Msg("no events registered, leaving loop")
			return nil
		}

		timeout := time.Duration(-1)
		if mode == api.LoopNonblock || b.nActive > 0 {
			timeout = 0
		} else if d, ok := b.timers.Until(b.now()); ok {
			timeout = d
		}

		if err := b.poll(timeout); err != nil {
			return err
		}
		b.collect()
		n, err := b.processActive()
		fired += n
		b.cycles++
		if err != nil {
			return err
		}

		switch {
		case mode == api.LoopNonblock:
			return nil
		case mode == api.LoopOnce && fired > 0:
			return nil
		}
	}
}

// poll waits in the multiplexer with the runtime lock released.
func (b *Base) poll(timeout time.Duration) error {
	b.setPhase(api.PhasePolling)
	buf := b.ready[:0]
	var ready []api.Ready
	start := time.Now()
	err := b.bridge.Blocking(func() error {
		var perr error
		ready, perr = b.mux.Poll(timeout, buf)
		return perr
	})
	b.metrics.ObservePoll(b.method, time.Since(start), err)
	b.setPhase(api.PhaseDispatching)
	if err != nil {
		b.log.Error().Err(err).Msg("poll failed")
		return opError("event_loop", api.ErrCodePoll, err)
	}
	b.ready = ready
	return nil
}

// collect activates fd-ready events in readiness order, then caught signals,
// then expired timers.
func (b *Base) collect() {
	for _, r := range b.ready {
		ent := b.fds[r.Fd]
		if ent == nil {
			continue
		}
		for _, ev := range ent.events {
			if what := ev.events & r.What & (api.EvRead | api.EvWrite); what != 0 {
				b.activate(ev, what)
			}
		}
	}

	b.collectSignals()

	now := b.now()
	for {
		e, ok := b.timers.PopExpired(now)
		if !ok {
			break
		}
		ev := e.Value
		ev.timer = nil
		ev.flags &^= flagTimeout
		b.activate(ev, api.EvTimeout)
	}
}

// processActive runs the callbacks of the entries queued when it starts.
// Activations made by those callbacks wait for the next pass.
func (b *Base) processActive() (int, error) {
	const op = "event_loop"
	n := b.active.Length()
	fired := 0
	for i := 0; i < n; i++ {
		if b.gotBreak.Load() {
			break
		}
		a := b.active.Remove().(activation)
		ev := a.ev
		if ev.flags&flagActive == 0 || ev.activeGen != a.gen {
			continue
		}
		what := ev.res
		b.deactivate(ev)

		if ev.events&api.EvPersist == 0 {
			if err := b.del(ev, op); err != nil {
				b.log.Warn().Err(err).Uint64("event", ev.id).Msg("deactivation failed")
			}
		} else if ev.hasTimeout {
			if ev.flags&flagTimeout != 0 {
				b.timers.Remove(ev.timer)
			}
			ev.timer = b.timers.Push(b.now().Add(ev.timeout), ev)
			ev.flags |= flagTimeout
		}
		b.metrics.SetPending(b.label, b.pendingCount())

		id, fd := ev.id, ev.fd
		fired++
		b.metrics.IncCallback(b.method)
		if err := b.bridge.Call(id, fd, what); err != nil {
			b.log.Warn().Err(err).Uint64("event", id).Int("fd", fd).Msg("callback failed")
			return fired, &CallbackError{ID: id, Fd: fd, What: what, Err: err}
		}
	}
	return fired, nil
}

// LoopExit makes the running (or next) loop return after d, once the
// callbacks of that cycle have run.
func (b *Base) LoopExit(d time.Duration) error {
	const op = "event_base_loopexit"
	if err := b.check(op); err != nil {
		return err
	}
	if d < 0 {
		return invalidArgument(op, "negative timeout")
	}
	if b.exitEv == nil {
		ev := New()
		err := ev.Set(b, api.NoFd, 0, func(*Event, int, api.Condition) error {
			b.gotExit.Store(true)
			return nil
		})
		if err != nil {
			return err
		}
		ev.flags |= flagInternal
		b.exitEv = ev
	}
	return b.exitEv.AddTimeout(d)
}

// LoopBreak makes the loop return after the callback in progress. It may be
// called from any goroutine without the runtime lock.
func (b *Base) LoopBreak() error {
	if err := b.check("event_base_loopbreak"); err != nil {
		return err
	}
	b.gotBreak.Store(true)
	if err := b.mux.Wakeup(); err != nil {
		return opError("event_base_loopbreak", api.ErrCodeInternal, err)
	}
	return nil
}

// GotExit reports whether the last loop ended through LoopExit.
func (b *Base) GotExit() bool { return b.gotExit.Load() }

// GotBreak reports whether the last loop ended through LoopBreak.
func (b *Base) GotBreak() bool { return b.gotBreak.Load() }
