// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot-reload, runtime metrics and debug introspection for
// event bases.
//
// Provides:
//   - YAML configuration with environment overrides
//   - a snapshot config store with reload listeners, fed by a file watcher
//   - Prometheus collectors for dispatch cycles, callbacks and poll waits
//   - named debug probes for state dumps
package control
