// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package event implements a libevent-style reactor: Events bind a file
// descriptor, signal or pure timeout to a callback, and a Base drives the
// poll/dispatch cycle over one multiplexer.
//
// A Base and its Events belong to the goroutine running the loop. Other
// goroutines may register or activate events only while holding the runtime
// lock passed with WithRuntimeLock; the loop releases that lock only while it
// is parked in the multiplexer, and wakes up when an Event is added or
// activated from outside.
//
//	base, err := event.NewBase()
//	if err != nil {
//		return err
//	}
//	defer base.Free()
//
//	ev := event.New()
//	defer ev.Free()
//	_ = ev.Set(base, fd, api.EvRead, func(ev *event.Event, fd int, what api.Condition) error {
//		// fd is readable
//		return nil
//	})
//	_ = ev.Add()
//	err = base.Dispatch()
package event
