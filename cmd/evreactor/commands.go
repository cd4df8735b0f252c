// File: cmd/evreactor/commands.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ev/api"
	"github.com/momentics/hioload-ev/event"
	"github.com/momentics/hioload-ev/reactor"
)

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List multiplexer backends in preference order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for i, name := range reactor.Methods() {
				suffix := ""
				if i == 0 {
					suffix = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", name, suffix)
			}
			return nil
		},
	}
}

func timerCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		count    int
	)
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Fire a persistent timer a number of times",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("count must be positive")
			}
			b, err := a.newBase()
			if err != nil {
				return err
			}
			defer b.Free()

			fired := 0
			ev := event.New()
			defer ev.Free()
			err = ev.Set(b, api.NoFd, api.EvPersist, func(ev *event.Event, _ int, _ api.Condition) error {
				fired++
				fmt.Fprintf(cmd.OutOrStdout(), "tick %d\n", fired)
				if fired == count {
					return ev.Del()
				}
				return nil
			})
			if err != nil {
				return err
			}
			if err := ev.AddTimeout(interval); err != nil {
				return err
			}
			return a.loop(cmd, b)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "time between ticks")
	cmd.Flags().IntVar(&count, "count", 3, "number of ticks")
	return cmd
}

func echoCmd(a *app) *cobra.Command {
	var idle time.Duration
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Copy stdin to stdout as it becomes readable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.newBase()
			if err != nil {
				return err
			}
			defer b.Free()

			buf := make([]byte, 4096)
			out := cmd.OutOrStdout()
			ev := event.New()
			defer ev.Free()
			err = ev.Set(b, 0, api.EvRead|api.EvPersist, func(ev *event.Event, fd int, what api.Condition) error {
				if what&api.EvTimeout != 0 {
					return ev.Del()
				}
				n, err := unix.Read(fd, buf)
				switch {
				case err == unix.EAGAIN || err == unix.EINTR:
					return nil
				case err != nil:
					return err
				case n == 0:
					return ev.Del()
				}
				_, err = out.Write(buf[:n])
				return err
			})
			if err != nil {
				return err
			}
			if idle > 0 {
				err = ev.AddTimeout(idle)
			} else {
				err = ev.Add()
			}
			if err != nil {
				return err
			}
			return a.loop(cmd, b)
		},
	}
	cmd.Flags().DurationVar(&idle, "idle", 0, "stop after stdin stays quiet this long (0 waits for EOF)")
	return cmd
}

func signalCmd(a *app) *cobra.Command {
	var (
		names []string
		count int
	)
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Wait for signals and report them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.newBase()
			if err != nil {
				return err
			}
			defer b.Free()

			seen := 0
			cb := func(_ *event.Event, signum int, _ api.Condition) error {
				seen++
				fmt.Fprintf(cmd.OutOrStdout(), "caught %s\n", unix.SignalName(syscall.Signal(signum)))
				if seen >= count {
					return b.LoopBreak()
				}
				return nil
			}

			var evs []*event.Event
			defer func() {
				for _, ev := range evs {
					_ = ev.Free()
				}
			}()
			for _, name := range names {
				name = strings.ToUpper(name)
				if !strings.HasPrefix(name, "SIG") {
					name = "SIG" + name
				}
				sig := unix.SignalNum(name)
				if sig == 0 {
					return fmt.Errorf("unknown signal %q", name)
				}
				ev := event.New()
				evs = append(evs, ev)
				if err := ev.Set(b, int(sig), api.EvSignal|api.EvPersist, cb); err != nil {
					return err
				}
				if err := ev.Add(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "waiting for %s\n", strings.Join(names, ", "))
			return a.loop(cmd, b)
		},
	}
	cmd.Flags().StringSliceVar(&names, "signals", []string{"INT", "TERM"}, "signals to wait for")
	cmd.Flags().IntVar(&count, "count", 1, "signals to receive before exiting")
	return cmd
}
