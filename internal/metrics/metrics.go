// File: internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pfgo"

// Metrics exposes Prometheus instruments for the session pool and the
// completion guard. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsCreated  prometheus.Counter
	sessionsReused   prometheus.Counter
	sessionsClosed   prometheus.Counter
	creationAttempts prometheus.Counter
	creationFailures prometheus.Counter
	available        prometheus.Gauge
	active           prometheus.Gauge

	guardWaits    *prometheus.CounterVec
	guardTimeouts *prometheus.CounterVec
	guardWaitTime *prometheus.HistogramVec
}

// New registers every instrument with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "sessions_created_total",
			Help:      "Browser sessions created by the session creator.",
		}),
		sessionsReused: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "sessions_reused_total",
			Help:      "Acquisitions served from the shared available queue.",
		}),
		sessionsClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "sessions_closed_total",
			Help:      "Browser sessions quit during shutdown.",
		}),
		creationAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "creation_attempts_total",
			Help:      "Individual driver creation attempts, including retries.",
		}),
		creationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "creation_failures_total",
			Help:      "Session creations that exhausted the retry budget or failed setup.",
		}),
		available: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "sessions_available",
			Help:      "Idle sessions waiting in the shared queue.",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "sessions_active",
			Help:      "Sessions currently held by workers.",
		}),
		guardWaits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "waits_total",
			Help:      "Guarded actions, by kind.",
		}, []string{"kind"}),
		guardTimeouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "timeouts_total",
			Help:      "Guarded actions whose completion signal never advanced.",
		}, []string{"kind"}),
		guardWaitTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for the completion signal.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"kind"}),
	}
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionReused() {
	if m == nil {
		return
	}
	m.sessionsReused.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsClosed.Inc()
}

func (m *Metrics) CreationAttempt() {
	if m == nil {
		return
	}
	m.creationAttempts.Inc()
}

func (m *Metrics) CreationFailed() {
	if m == nil {
		return
	}
	m.creationFailures.Inc()
}

// SetPoolSize publishes the current queue and active-set sizes.
func (m *Metrics) SetPoolSize(available, active int) {
	if m == nil {
		return
	}
	m.available.Set(float64(available))
	m.active.Set(float64(active))
}

// GuardWait records one completed or timed-out guard wait.
func (m *Metrics) GuardWait(kind string, elapsed time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	m.guardWaits.WithLabelValues(kind).Inc()
	m.guardWaitTime.WithLabelValues(kind).Observe(elapsed.Seconds())
	if timedOut {
		m.guardTimeouts.WithLabelValues(kind).Inc()
	}
}
