package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the presence and delivery collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	evictions      prometheus.Counter
	authFailures   *prometheus.CounterVec
	messages       *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec
	evictionWait   prometheus.Histogram
}

// New creates the collectors and registers them with reg.
// A nil reg falls back to the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ichat_sessions_active",
			Help: "Current number of admitted websocket sessions.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ichat_sessions_total",
			Help: "Total number of sessions admitted since start.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ichat_sessions_evicted_total",
			Help: "Sessions replaced by a newer connection for the same user.",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichat_auth_failures_total",
			Help: "Rejected connection attempts by reason.",
		}, []string{"kind"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichat_messages_total",
			Help: "Persisted messages by delivery path.",
		}, []string{"path"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichat_events_dropped_total",
			Help: "Events not pushed because the target connection was closing or full.",
		}, []string{"event"}),
		evictionWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ichat_eviction_wait_seconds",
			Help:    "Time spent waiting for an evicted session to finish teardown.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
	}

	reg.MustRegister(
		m.sessionsActive,
		m.sessionsTotal,
		m.evictions,
		m.authFailures,
		m.messages,
		m.eventsDropped,
		m.evictionWait,
	)
	return m
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) SessionEvicted(wait time.Duration) {
	if m == nil {
		return
	}
	m.evictions.Inc()
	m.evictionWait.Observe(wait.Seconds())
}

func (m *Metrics) AuthFailed(kind string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(kind).Inc()
}

// MessageRouted counts a persisted message; live reports whether it was pushed
// to an online recipient.
func (m *Metrics) MessageRouted(live bool) {
	if m == nil {
		return
	}
	path := "stored"
	if live {
		path = "live"
	}
	m.messages.WithLabelValues(path).Inc()
}

func (m *Metrics) EventDropped(event string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(event).Inc()
}
