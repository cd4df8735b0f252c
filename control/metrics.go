// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the dispatch loop. A nil *Metrics is valid and
// records nothing.

package control

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the reactor collectors. Labels stay low-cardinality: backend
// method and base id only.
type Metrics struct {
	Cycles     *prometheus.CounterVec
	Callbacks  *prometheus.CounterVec
	PollErrors *prometheus.CounterVec
	PollWait   *prometheus.HistogramVec
	Pending    *prometheus.GaugeVec
}

// NewMetrics registers the collectors with reg. A nil reg uses a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_ev_dispatch_cycles_total",
			Help: "Completed poll/dispatch cycles, by multiplexer method.",
		}, []string{"method"}),
		Callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_ev_callbacks_total",
			Help: "Event callbacks invoked, by multiplexer method.",
		}, []string{"method"}),
		PollErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_ev_poll_errors_total",
			Help: "Multiplexer poll failures, by multiplexer method.",
		}, []string{"method"}),
		PollWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hioload_ev_poll_wait_seconds",
			Help:    "Time spent blocked in the multiplexer.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"method"}),
		Pending: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hioload_ev_pending_events",
			Help: "Events currently pending or active, by event base.",
		}, []string{"base"}),
	}
}

func (m *Metrics) ObservePoll(method string, waited time.Duration, err error) {
	if m == nil {
		return
	}
	m.PollWait.WithLabelValues(method).Observe(waited.Seconds())
	if err != nil {
		m.PollErrors.WithLabelValues(method).Inc()
		return
	}
	m.Cycles.WithLabelValues(method).Inc()
}

func (m *Metrics) IncCallback(method string) {
	if m == nil {
		return
	}
	m.Callbacks.WithLabelValues(method).Inc()
}

func (m *Metrics) SetPending(base string, n int) {
	if m == nil {
		return
	}
	m.Pending.WithLabelValues(base).Set(float64(n))
}

// ForgetBase drops the gauge series of a released base.
func (m *Metrics) ForgetBase(base string) {
	if m == nil {
		return
	}
	m.Pending.DeleteLabelValues(base)
}
