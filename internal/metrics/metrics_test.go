package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gather flattens the registry into "name{label=value}" -> value.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.SessionEvicted(10 * time.Millisecond)
	m.AuthFailed("invalid")
	m.MessageRouted(true)
	m.MessageRouted(false)
	m.MessageRouted(false)
	m.EventDropped("user_typing")

	got := gather(t, reg)
	assert.Equal(t, 1.0, got["ichat_sessions_active"])
	assert.Equal(t, 2.0, got["ichat_sessions_total"])
	assert.Equal(t, 1.0, got["ichat_sessions_evicted_total"])
	assert.Equal(t, 1.0, got["ichat_auth_failures_total{kind=invalid}"])
	assert.Equal(t, 1.0, got["ichat_messages_total{path=live}"])
	assert.Equal(t, 2.0, got["ichat_messages_total{path=stored}"])
	assert.Equal(t, 1.0, got["ichat_events_dropped_total{event=user_typing}"])
	assert.Equal(t, 1.0, got["ichat_eviction_wait_seconds"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionOpened()
		m.SessionClosed()
		m.SessionEvicted(time.Second)
		m.AuthFailed("missing")
		m.MessageRouted(true)
		m.EventDropped("friend_online")
	})
}
