package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/momentics/hioload-ev/api"
	"github.com/momentics/hioload-ev/control"
	"github.com/momentics/hioload-ev/event"
	"github.com/momentics/hioload-ev/fake"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("os/signal.loop"))
}

type call struct {
	fd   int
	what api.Condition
}

// recorder collects callback invocations.
type recorder struct {
	calls []call
}

func (r *recorder) cb(_ *event.Event, fd int, what api.Condition) error {
	r.calls = append(r.calls, call{fd, what})
	return nil
}

func newBase(t *testing.T, opts ...event.Option) (*event.Base, *fake.Multiplexer) {
	t.Helper()
	mux := fake.NewMultiplexer()
	b, err := event.NewBase(append([]event.Option{event.WithMultiplexer(mux)}, opts...)...)
	require.NoError(t, err)
	assert.Equal(t, "fake", b.Method())
	return b, mux
}

func bind(t *testing.T, b *event.Base, fd int, what api.Condition, cb event.Callback) *event.Event {
	t.Helper()
	ev := event.New()
	require.NoError(t, ev.Set(b, fd, what, cb))
	return ev
}

func TestZeroValueBase(t *testing.T) {
	b := new(event.Base)

	require.ErrorIs(t, b.Loop(api.LoopOnce), api.ErrBaseUninitialized)
	require.ErrorIs(t, b.Free(), api.ErrBaseUninitialized)
	require.ErrorIs(t, b.Reinit(), api.ErrBaseUninitialized)
	require.ErrorIs(t, event.New().Set(b, 0, api.EvRead, nil), api.ErrBaseUninitialized)

	var nilBase *event.Base
	require.ErrorIs(t, nilBase.Dispatch(), api.ErrBaseUninitialized)
}

func TestSetValidation(t *testing.T) {
	b, _ := newBase(t)
	ev := event.New()

	require.ErrorIs(t, ev.Set(nil, 0, api.EvRead, nil), api.ErrInvalidArgument)
	require.ErrorIs(t, ev.Set(b, 2, api.EvSignal|api.EvRead, nil), api.ErrInvalidArgument)
	require.ErrorIs(t, ev.Set(b, 0, api.EvSignal, nil), api.ErrInvalidArgument)
	require.ErrorIs(t, ev.Set(b, 65, api.EvSignal, nil), api.ErrInvalidArgument)
	require.ErrorIs(t, ev.Set(b, 1000, api.EvSignal|api.EvPersist, nil), api.ErrInvalidArgument)
	require.ErrorIs(t, ev.Set(b, -1, api.EvWrite, nil), api.ErrInvalidArgument)
	require.NoError(t, ev.Set(b, api.NoFd, 0, nil))

	assert.Equal(t, api.NoFd, ev.Fd())
	assert.Same(t, b, ev.Base())
	assert.NotZero(t, ev.ID())
	require.NoError(t, b.Free())
}

func TestUnboundEvent(t *testing.T) {
	ev := event.New()
	assert.Equal(t, api.NoFd, ev.Fd())
	assert.Nil(t, ev.Base())
	assert.False(t, ev.Pending(0))
	require.NoError(t, ev.Del())
	require.ErrorIs(t, ev.Add(), api.ErrNotBound)
	require.ErrorIs(t, ev.Active(api.EvRead), api.ErrNotBound)
}

func TestAddDelUpdatesInterest(t *testing.T) {
	b, mux := newBase(t)
	ev := bind(t, b, 5, api.EvRead, nil)

	require.NoError(t, ev.Add())
	assert.Equal(t, api.EvRead, mux.Interest(5))
	assert.True(t, ev.Pending(api.EvRead))
	assert.True(t, ev.Pending(0))
	assert.False(t, ev.Pending(api.EvWrite))
	assert.False(t, ev.Pending(api.EvRead|api.EvTimeout))

	require.ErrorIs(t, ev.Set(b, 6, api.EvRead, nil), api.ErrEventPending)

	require.NoError(t, ev.Del())
	assert.Zero(t, mux.Interest(5))
	assert.False(t, ev.Pending(0))
	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestSharedFdInterest(t *testing.T) {
	b, mux := newBase(t)
	var order []string
	rd := bind(t, b, 5, api.EvRead, func(_ *event.Event, _ int, what api.Condition) error {
		order = append(order, "read:"+what.String())
		return nil
	})
	wr := bind(t, b, 5, api.EvWrite, func(_ *event.Event, _ int, what api.Condition) error {
		order = append(order, "write:"+what.String())
		return nil
	})
	require.NoError(t, rd.Add())
	require.NoError(t, wr.Add())
	assert.Equal(t, api.EvRead|api.EvWrite, mux.Interest(5))

	mux.SetReady(5, api.EvRead|api.EvWrite)
	require.NoError(t, b.Loop(api.LoopOnce))
	assert.Equal(t, []string{"read:READ", "write:WRITE"}, order)
	assert.Zero(t, mux.Interest(5))
	require.NoError(t, b.Free())
}

func TestOneShotReadFiresOnce(t *testing.T) {
	b, mux := newBase(t)
	rec := &recorder{}
	ev := bind(t, b, 5, api.EvRead, rec.cb)
	require.NoError(t, ev.Add())

	mux.SetReady(5, api.EvRead)
	require.NoError(t, b.Loop(api.LoopOnce))
	require.Equal(t, []call{{5, api.EvRead}}, rec.calls)
	assert.False(t, ev.Pending(0))

	// nothing registered: every mode returns at once
	require.NoError(t, b.Loop(api.LoopOnce))
	require.NoError(t, b.Dispatch())
	assert.Len(t, rec.calls, 1)
	require.NoError(t, b.Free())
}

func TestTimerForever(t *testing.T) {
	b, mux := newBase(t)
	rec := &recorder{}
	ev := bind(t, b, api.NoFd, 0, rec.cb)

	start := time.Now()
	require.NoError(t, ev.AddSeconds(0.05))
	assert.True(t, ev.Pending(api.EvTimeout))
	deadline, ok := ev.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, start.Add(50*time.Millisecond), deadline, 20*time.Millisecond)

	require.NoError(t, b.Dispatch())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, []call{{api.NoFd, api.EvTimeout}}, rec.calls)
	assert.False(t, ev.Pending(0))

	timeouts := mux.Timeouts()
	require.NotEmpty(t, timeouts)
	assert.Greater(t, timeouts[0], time.Duration(0))
	assert.LessOrEqual(t, timeouts[0], 50*time.Millisecond)
	require.NoError(t, b.Free())
}

func TestTimerWithoutTimeoutStaysIdle(t *testing.T) {
	b, mux := newBase(t)
	ev := bind(t, b, api.NoFd, 0, nil)

	require.NoError(t, ev.Add())
	assert.False(t, ev.Pending(0))
	require.NoError(t, b.Loop(api.LoopNonblock))
	assert.Empty(t, mux.Timeouts())
	require.NoError(t, b.Free())
}

func TestAddTimeoutReplacesDeadline(t *testing.T) {
	b, _ := newBase(t)
	ev := bind(t, b, api.NoFd, 0, nil)

	require.NoError(t, ev.AddTimeout(time.Hour))
	first, ok := ev.Deadline()
	require.True(t, ok)
	require.NoError(t, ev.AddTimeout(time.Millisecond))
	second, ok := ev.Deadline()
	require.True(t, ok)
	assert.True(t, second.Before(first))
	assert.Equal(t, 1, b.Stats().Timers)

	require.ErrorIs(t, ev.AddTimeout(-time.Second), api.ErrInvalidArgument)
	require.ErrorIs(t, ev.AddSeconds(-1), api.ErrInvalidArgument)
	require.ErrorIs(t, ev.AddSeconds(18446744074), api.ErrInvalidArgument)
	third, ok := ev.Deadline()
	require.True(t, ok)
	assert.Equal(t, second, third)

	require.NoError(t, ev.Del())
	_, ok = ev.Deadline()
	assert.False(t, ok)
	require.NoError(t, b.Free())
}

func TestPersistentEventStaysPending(t *testing.T) {
	b, mux := newBase(t)
	rec := &recorder{}
	ev := bind(t, b, 5, api.EvRead|api.EvPersist, rec.cb)
	require.NoError(t, ev.Add())

	mux.SetReady(5, api.EvRead)
	require.NoError(t, b.Loop(api.LoopOnce))
	require.NoError(t, b.Loop(api.LoopOnce))
	assert.Len(t, rec.calls, 2)
	assert.True(t, ev.Pending(api.EvRead))

	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestPersistentTimeoutRearms(t *testing.T) {
	b, _ := newBase(t)
	n := 0
	ev := event.New()
	require.NoError(t, ev.Set(b, api.NoFd, api.EvPersist, func(ev *event.Event, _ int, what api.Condition) error {
		assert.Equal(t, api.EvTimeout, what)
		n++
		if n == 3 {
			return ev.Del()
		}
		assert.True(t, ev.Pending(api.EvTimeout))
		return nil
	}))
	require.NoError(t, ev.AddTimeout(5*time.Millisecond))

	require.NoError(t, b.Dispatch())
	assert.Equal(t, 3, n)
	require.NoError(t, b.Free())
}

func TestActiveBypassesMultiplexer(t *testing.T) {
	b, mux := newBase(t)
	rec := &recorder{}
	ev := bind(t, b, 7, api.EvRead, rec.cb)

	require.NoError(t, ev.Active(api.EvWrite))
	assert.True(t, ev.Pending(api.EvWrite))
	require.NoError(t, b.Loop(api.LoopOnce))
	require.Equal(t, []call{{7, api.EvWrite}}, rec.calls)
	assert.Equal(t, []time.Duration{0}, mux.Timeouts())
	assert.False(t, ev.Pending(0))
	require.NoError(t, b.Free())
}

func TestNonblockWithNothingReady(t *testing.T) {
	b, mux := newBase(t)
	rec := &recorder{}
	ev := bind(t, b, 5, api.EvRead, rec.cb)
	require.NoError(t, ev.Add())

	require.NoError(t, b.Loop(api.LoopNonblock))
	assert.Empty(t, rec.calls)
	assert.Equal(t, []time.Duration{0}, mux.Timeouts())
	assert.True(t, ev.Pending(api.EvRead))

	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestActivationFromCallbackWaitsForNextPass(t *testing.T) {
	b, _ := newBase(t)
	n := 0
	ev := event.New()
	require.NoError(t, ev.Set(b, api.NoFd, 0, func(ev *event.Event, _ int, _ api.Condition) error {
		n++
		if n == 1 {
			return ev.Active(api.EvRead)
		}
		return nil
	}))

	require.NoError(t, ev.Active(api.EvRead))
	require.NoError(t, b.Loop(api.LoopNonblock))
	assert.Equal(t, 1, n)
	assert.True(t, ev.Pending(api.EvRead))

	require.NoError(t, b.Loop(api.LoopNonblock))
	assert.Equal(t, 2, n)
	assert.False(t, ev.Pending(0))
	require.NoError(t, b.Free())
}

func TestReAddFromCallbackWaitsForNextCycle(t *testing.T) {
	b, mux := newBase(t)
	n := 0
	ev := event.New()
	require.NoError(t, ev.Set(b, 5, api.EvRead, func(ev *event.Event, _ int, _ api.Condition) error {
		n++
		return ev.Add()
	}))
	require.NoError(t, ev.Add())
	mux.SetReady(5, api.EvRead)

	require.NoError(t, b.Loop(api.LoopNonblock))
	assert.Equal(t, 1, n)
	assert.True(t, ev.Pending(api.EvRead))

	require.NoError(t, b.Loop(api.LoopNonblock))
	assert.Equal(t, 2, n)

	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestDeleteOtherEventInSameCycle(t *testing.T) {
	b, mux := newBase(t)
	var second *event.Event
	secondRan := false
	first := bind(t, b, 5, api.EvRead, func(*event.Event, int, api.Condition) error {
		return second.Del()
	})
	second = bind(t, b, 6, api.EvRead, func(*event.Event, int, api.Condition) error {
		secondRan = true
		return nil
	})
	require.NoError(t, first.Add())
	require.NoError(t, second.Add())

	mux.SetReady(5, api.EvRead)
	mux.SetReady(6, api.EvRead)
	require.NoError(t, b.Loop(api.LoopOnce))
	assert.False(t, secondRan)
	assert.False(t, second.Pending(0))
	require.NoError(t, b.Free())
}

func TestDispatchOrder(t *testing.T) {
	b, mux := newBase(t)
	var order []string
	timer := bind(t, b, api.NoFd, 0, func(*event.Event, int, api.Condition) error {
		order = append(order, "timer")
		return nil
	})
	rd := bind(t, b, 5, api.EvRead, func(*event.Event, int, api.Condition) error {
		order = append(order, "read")
		return nil
	})
	require.NoError(t, timer.AddTimeout(0))
	require.NoError(t, rd.Add())

	mux.SetReady(5, api.EvRead)
	require.NoError(t, b.Loop(api.LoopNonblock))
	assert.Equal(t, []string{"read", "timer"}, order)
	require.NoError(t, b.Free())
}

func TestCallbackErrorPropagates(t *testing.T) {
	b, mux := newBase(t)
	boom := errors.New("boom")
	failing := bind(t, b, 5, api.EvRead, func(*event.Event, int, api.Condition) error {
		return boom
	})
	rec := &recorder{}
	next := bind(t, b, 6, api.EvRead, rec.cb)
	require.NoError(t, failing.Add())
	require.NoError(t, next.Add())

	mux.SetReady(5, api.EvRead)
	mux.SetReady(6, api.EvRead)
	err := b.Loop(api.LoopOnce)
	require.ErrorIs(t, err, boom)
	var cbErr *event.CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, failing.ID(), cbErr.ID)
	assert.Equal(t, 5, cbErr.Fd)
	assert.False(t, failing.Pending(0))

	// the remaining entry stays queued for the next call
	assert.Empty(t, rec.calls)
	assert.True(t, next.Pending(api.EvRead))
	require.NoError(t, b.Loop(api.LoopNonblock))
	assert.Equal(t, []call{{6, api.EvRead}}, rec.calls)
	require.NoError(t, b.Free())
}

func TestRegistrationFailureLeavesEventInactive(t *testing.T) {
	b, mux := newBase(t)
	rejected := errors.New("rejected")
	ev := bind(t, b, 5, api.EvRead, nil)

	mux.FailUpdate(rejected)
	err := ev.AddTimeout(time.Second)
	require.ErrorIs(t, err, rejected)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "event_add", apiErr.Op)
	assert.Equal(t, api.ErrCodeRegistration, apiErr.Code)

	assert.False(t, ev.Pending(0))
	assert.Zero(t, b.Stats().Timers)
	require.NoError(t, b.Free())
}

func TestPollErrorIsWrapped(t *testing.T) {
	b, mux := newBase(t)
	ev := bind(t, b, 5, api.EvRead, nil)
	require.NoError(t, ev.Add())

	failure := errors.New("poll broke")
	mux.FailPoll(failure)
	err := b.Loop(api.LoopOnce)
	require.ErrorIs(t, err, failure)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "event_loop", apiErr.Op)
	assert.Equal(t, api.ErrCodePoll, apiErr.Code)

	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestEventUseAfterFree(t *testing.T) {
	b, _ := newBase(t)
	ev := bind(t, b, 5, api.EvRead, nil)
	require.NoError(t, ev.Add())

	require.NoError(t, ev.Free())
	require.NoError(t, ev.Free())
	require.ErrorIs(t, ev.Add(), api.ErrEventFreed)
	require.ErrorIs(t, ev.Del(), api.ErrEventFreed)
	require.ErrorIs(t, ev.Active(api.EvRead), api.ErrEventFreed)
	require.ErrorIs(t, ev.Set(b, 5, api.EvRead, nil), api.ErrEventFreed)

	// freeing deactivated the event, so the base can go
	require.NoError(t, b.Free())
}

func TestBaseFreeWithBoundInactiveEvents(t *testing.T) {
	b, mux := newBase(t)
	ev := bind(t, b, 5, api.EvRead, nil)

	require.NoError(t, b.Free())
	assert.True(t, mux.Closed())
	assert.True(t, b.Stats().Released)

	require.ErrorIs(t, ev.Add(), api.ErrBaseReleased)
	require.ErrorIs(t, b.Loop(api.LoopNonblock), api.ErrBaseReleased)
	require.ErrorIs(t, b.Free(), api.ErrBaseReleased)
	require.ErrorIs(t, b.LoopBreak(), api.ErrBaseReleased)
	require.NoError(t, ev.Free())
}

func TestBaseFreeWithPendingEvent(t *testing.T) {
	b, mux := newBase(t)
	ev := bind(t, b, 5, api.EvRead, nil)
	require.NoError(t, ev.Add())

	err := b.Free()
	require.ErrorIs(t, err, api.ErrEventsPending)
	assert.False(t, mux.Closed())

	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestLoopIsNotReentrant(t *testing.T) {
	b, _ := newBase(t)
	var loopErr, freeErr error
	ev := bind(t, b, api.NoFd, 0, func(*event.Event, int, api.Condition) error {
		loopErr = b.Loop(api.LoopNonblock)
		freeErr = b.Free()
		return nil
	})
	require.NoError(t, ev.Active(api.EvTimeout))
	require.NoError(t, b.Dispatch())

	require.ErrorIs(t, loopErr, api.ErrLoopRunning)
	require.ErrorIs(t, freeErr, api.ErrLoopRunning)
	require.NoError(t, b.Free())
}

func TestInvalidLoopMode(t *testing.T) {
	b, _ := newBase(t)
	require.ErrorIs(t, b.Loop(api.LoopMode(42)), api.ErrInvalidArgument)
	require.NoError(t, b.Free())
}

func TestLoopExit(t *testing.T) {
	b, _ := newBase(t)
	ev := bind(t, b, 5, api.EvRead|api.EvPersist, nil)
	require.NoError(t, ev.Add())

	require.NoError(t, b.LoopExit(10*time.Millisecond))
	require.NoError(t, b.Dispatch())
	assert.True(t, b.GotExit())
	assert.False(t, b.GotBreak())

	require.ErrorIs(t, b.LoopExit(-time.Second), api.ErrInvalidArgument)
	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestLoopExitDoesNotBlockFree(t *testing.T) {
	b, _ := newBase(t)
	require.NoError(t, b.LoopExit(time.Hour))
	require.NoError(t, b.Free())
}

func TestLoopBreakFromAnotherGoroutine(t *testing.T) {
	b, mux := newBase(t)
	ev := bind(t, b, 5, api.EvRead|api.EvPersist, nil)
	require.NoError(t, ev.Add())

	done := make(chan error, 1)
	go func() {
		for b.Phase() != api.PhasePolling {
			time.Sleep(time.Millisecond)
		}
		done <- b.LoopBreak()
	}()

	require.NoError(t, b.Dispatch())
	require.NoError(t, <-done)
	assert.True(t, b.GotBreak())
	assert.GreaterOrEqual(t, mux.Wakeups(), 1)
	assert.Equal(t, api.PhaseIdle, b.Phase())

	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestLoopContextCancellation(t *testing.T) {
	b, _ := newBase(t)
	ev := bind(t, b, 5, api.EvRead|api.EvPersist, nil)
	require.NoError(t, ev.Add())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.LoopContext(ctx, api.LoopForever)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestRuntimeLockCrossGoroutineActivation(t *testing.T) {
	var mu sync.Mutex
	mu.Lock()
	b, mux := newBase(t, event.WithRuntimeLock(&mu))
	keepalive := bind(t, b, 5, api.EvRead|api.EvPersist, nil)
	require.NoError(t, keepalive.Add())

	fired := false
	done := make(chan error, 1)
	go func() {
		for b.Phase() != api.PhasePolling {
			time.Sleep(time.Millisecond)
		}
		mu.Lock()
		defer mu.Unlock()
		ev := event.New()
		err := ev.Set(b, api.NoFd, 0, func(*event.Event, int, api.Condition) error {
			fired = true
			return b.LoopBreak()
		})
		if err == nil {
			err = ev.Active(api.EvTimeout)
		}
		done <- err
	}()

	require.NoError(t, b.Dispatch())
	require.NoError(t, <-done)
	assert.True(t, fired)
	assert.GreaterOrEqual(t, mux.Wakeups(), 1)

	require.NoError(t, keepalive.Del())
	require.NoError(t, b.Free())
	mu.Unlock()
}

func TestReinitDropsIOInterest(t *testing.T) {
	b, mux := newBase(t)
	rd := bind(t, b, 5, api.EvRead, nil)
	timer := bind(t, b, api.NoFd, 0, nil)
	require.NoError(t, rd.Add())
	require.NoError(t, timer.AddTimeout(time.Hour))

	require.NoError(t, b.Reinit())
	assert.Equal(t, 1, mux.Reinits())
	assert.False(t, rd.Pending(0))
	assert.True(t, timer.Pending(api.EvTimeout))
	assert.Zero(t, mux.Interest(5))

	require.NoError(t, rd.Add())
	assert.Equal(t, api.EvRead, mux.Interest(5))

	require.NoError(t, rd.Del())
	require.NoError(t, timer.Del())
	require.NoError(t, b.Free())
}

func TestMetricsAndProbes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := control.NewMetrics(reg)
	probes := control.NewDebugProbes()
	b, _ := newBase(t, event.WithMetrics(metrics), event.WithProbes(probes))

	ev := bind(t, b, api.NoFd, 0, nil)
	require.NoError(t, ev.Active(api.EvTimeout))
	require.NoError(t, b.Loop(api.LoopOnce))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Callbacks.WithLabelValues("fake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Cycles.WithLabelValues("fake")))

	state := probes.DumpState()
	require.Len(t, state, 1)
	for _, v := range state {
		stats, ok := v.(event.Stats)
		require.True(t, ok)
		assert.Equal(t, "fake", stats.Method)
		assert.Equal(t, uint64(1), stats.Cycles)
		assert.Equal(t, api.PhaseIdle.String(), stats.Phase)
	}

	require.NoError(t, b.Free())
	assert.Empty(t, probes.DumpState())
}

func TestNewBaseConfigurationErrors(t *testing.T) {
	mux := fake.NewMultiplexer()
	_, err := event.NewBase(event.WithMultiplexer(mux), event.WithSink("missing_sink"))
	require.ErrorIs(t, err, api.ErrSinkUnresolved)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrCodeConfiguration, apiErr.Code)
	assert.True(t, mux.Closed(), "multiplexer handed to a failed base is closed")

	_, err = event.NewBase(event.WithBackend("no_such_backend"))
	require.ErrorIs(t, err, api.ErrNotSupported)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrCodeConfiguration, apiErr.Code)
	assert.Equal(t, "event_base_init", apiErr.Op)
}

func TestLongestTimeoutIsAccepted(t *testing.T) {
	b, _ := newBase(t)
	ev := bind(t, b, api.NoFd, 0, nil)

	require.NoError(t, ev.AddSeconds(api.MaxTimeoutSeconds))
	deadline, ok := ev.Deadline()
	require.True(t, ok)
	assert.True(t, deadline.After(time.Now().Add(100*365*24*time.Hour)))
	require.NoError(t, ev.Del())
	require.NoError(t, b.Free())
}

func TestActiveDelDoesNotGrowQueue(t *testing.T) {
	b, _ := newBase(t)
	rec := &recorder{}
	ev := bind(t, b, api.NoFd, 0, nil)
	keep := bind(t, b, api.NoFd, 0, rec.cb)
	require.NoError(t, keep.Active(api.EvTimeout))

	for i := 0; i < 1000; i++ {
		require.NoError(t, ev.Active(api.EvRead))
		require.NoError(t, ev.Del())
	}
	st := b.Stats()
	assert.Equal(t, 1, st.Active)
	assert.LessOrEqual(t, st.Queued, 2*st.Active+64)

	require.NoError(t, b.Loop(api.LoopNonblock))
	assert.Equal(t, []call{{api.NoFd, api.EvTimeout}}, rec.calls)
	assert.Zero(t, b.Stats().Queued)
	require.NoError(t, b.Free())
}
