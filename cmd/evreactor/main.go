// File: cmd/evreactor/main.go
// Package main
// Command-line driver for the event reactor: lists backends and runs small
// timer, stdin echo and signal-wait loops.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-ev/api"
	"github.com/momentics/hioload-ev/control"
	"github.com/momentics/hioload-ev/event"
	"github.com/momentics/hioload-ev/internal/log"
)

// app carries the state shared by all subcommands.
type app struct {
	configPath  string
	backend     string
	logLevel    string
	metricsAddr string
	dumpProbes  bool

	store   *control.ConfigStore
	watcher *control.Watcher
	metrics *control.Metrics
	probes  *control.DebugProbes
	server  *http.Server
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and always tears down what setup started,
// including when a subcommand fails.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if terr := a.teardown(); terr != nil {
		err = errors.Join(err, terr)
	}
	if err != nil {
		logger := log.Base()
		logger.Error().Err(err).Msg("evreactor failed")
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "evreactor",
		Short:         "Drive the hioload-ev event reactor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file, reloaded on change")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "multiplexer backend (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides config)")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	root.PersistentFlags().BoolVar(&a.dumpProbes, "dump-probes", false, "print debug probes to stderr when the loop ends")

	root.AddCommand(
		backendsCmd(),
		timerCmd(a),
		echoCmd(a),
		signalCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := control.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = a.backend
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})

	a.store = control.NewConfigStore(cfg)
	a.store.OnReload(func(next control.Config) {
		if err := log.SetLevel(next.LogLevel); err != nil {
			logger := log.Base()
			logger.Warn().Err(err).Msg("ignoring reloaded log level")
		}
	})
	if a.configPath != "" {
		if a.watcher, err = control.WatchConfig(a.configPath, a.store); err != nil {
			return err
		}
	}

	a.probes = control.NewDebugProbes()
	control.RegisterPlatformProbes(a.probes)
	if cfg.Metrics || a.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		a.metrics = control.NewMetrics(reg)
		if a.metricsAddr != "" {
			a.serveMetrics(reg)
		}
	}
	return nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger := log.WithComponent("evreactor")
	a.server = &http.Server{
		Addr:              a.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", a.metricsAddr).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", a.metricsAddr).Msg("serving metrics")
}

func (a *app) teardown() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		errs = append(errs, a.server.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// newBase builds an event base from the current config snapshot.
func (a *app) newBase() (*event.Base, error) {
	return event.NewBase(
		event.WithConfig(a.store.Snapshot()),
		event.WithLogger(log.WithComponent("evreactor")),
		event.WithMetrics(a.metrics),
		event.WithProbes(a.probes),
	)
}

// loop dispatches until the command's events are done or its context ends.
func (a *app) loop(cmd *cobra.Command, b *event.Base) error {
	err := b.LoopContext(cmd.Context(), api.LoopForever)
	if a.dumpProbes {
		enc := json.NewEncoder(cmd.ErrOrStderr())
		enc.SetIndent("", "  ")
		if derr := enc.Encode(a.probes.DumpState()); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}
