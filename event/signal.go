// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

import (
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/momentics/hioload-ev/api"
)

// signalSet forwards OS signals for one base. Each watched signal has its own
// os/signal channel and forwarder goroutine, so one signal can be dropped
// without touching the subscriptions of the others. Forwarders count
// deliveries and wake the multiplexer; the loop turns the counts into
// activations.
type signalSet struct {
	events  map[int][]*Event // by signal number, registration order
	watches map[int]*signalWatch

	mu     sync.Mutex
	caught map[int]int
}

type signalWatch struct {
	ch   chan os.Signal
	done chan struct{}
	wg   sync.WaitGroup
}

func (b *Base) addSignal(ev *Event) error {
	signum := ev.fd
	if !catchable(signum) {
		return api.NewError(api.ErrCodeNotSupported, "signal cannot be caught").WithContext("signal", signum)
	}
	s := b.signals
	if s == nil {
		s = &signalSet{
			events:  make(map[int][]*Event),
			watches: make(map[int]*signalWatch),
			caught:  make(map[int]int),
		}
		b.signals = s
	}
	if s.watches[signum] == nil {
		w := &signalWatch{
			ch:   make(chan os.Signal, 4),
			done: make(chan struct{}),
		}
		w.wg.Add(1)
		go b.forwardSignal(s, signum, w)
		signal.Notify(w.ch, syscall.Signal(signum))
		s.watches[signum] = w
		b.log.Debug().Int("signal", signum).Msg("signal watch started")
	}
	s.events[signum] = append(s.events[signum], ev)
	return nil
}

func (b *Base) forwardSignal(s *signalSet, signum int, w *signalWatch) {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case <-w.ch:
			s.mu.Lock()
			s.caught[signum]++
			s.mu.Unlock()
			if err := b.mux.Wakeup(); err != nil {
				b.log.Warn().Err(err).Int("signal", signum).Msg("signal wakeup failed")
			}
		}
	}
}

func (b *Base) delSignal(ev *Event) {
	s := b.signals
	if s == nil {
		return
	}
	signum := ev.fd
	list := s.events[signum]
	for i, other := range list {
		if other == ev {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) > 0 {
		s.events[signum] = list
		return
	}
	delete(s.events, signum)
	s.stopWatch(signum)
	b.log.Debug().Int("signal", signum).Msg("signal watch stopped")
}

// stopWatch unsubscribes signum and waits for its forwarder.
func (s *signalSet) stopWatch(signum int) {
	w := s.watches[signum]
	if w == nil {
		return
	}
	delete(s.watches, signum)
	signal.Stop(w.ch)
	close(w.done)
	w.wg.Wait()
	s.mu.Lock()
	delete(s.caught, signum)
	s.mu.Unlock()
}

// stopSignals ends forwarding for every watched signal.
func (b *Base) stopSignals() {
	s := b.signals
	if s == nil {
		return
	}
	for signum := range s.watches {
		s.stopWatch(signum)
	}
}

// signalEvents lists events with signal interest.
func (b *Base) signalEvents() []*Event {
	if b.signals == nil {
		return nil
	}
	var out []*Event
	for _, list := range b.signals.events {
		out = append(out, list...)
	}
	return out
}

func (b *Base) watchedSignals() int {
	if b.signals == nil {
		return 0
	}
	return len(b.signals.watches)
}

// collectSignals activates the events of every signal caught since the
// previous cycle, once per cycle, in ascending signal order.
func (b *Base) collectSignals() {
	s := b.signals
	if s == nil {
		return
	}
	s.mu.Lock()
	if len(s.caught) == 0 {
		s.mu.Unlock()
		return
	}
	caught := s.caught
	s.caught = make(map[int]int)
	s.mu.Unlock()

	nums := make([]int, 0, len(caught))
	for n := range caught {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		for _, ev := range s.events[n] {
			b.activate(ev, api.EvSignal)
		}
	}
}
