package core

import (
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/metrics"
)

// Broadcaster pushes events to whichever client is currently bound to a user.
// Delivery is best effort: offline targets and full buffers drop the event.
type Broadcaster struct {
	registry *Registry
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewBroadcaster creates a broadcaster over registry.
func NewBroadcaster(registry *Registry, m *metrics.Metrics, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, metrics: m, log: logger}
}

// Emit pushes ev to the target user. It reports whether the event was enqueued.
func (b *Broadcaster) Emit(target int64, ev *Event) bool {
	c, ok := b.registry.Lookup(target)
	if !ok {
		return false
	}
	if !c.Push(ev) {
		b.metrics.EventDropped(ev.Kind.String())
		b.log.Debug().
			Int64("user_id", target).
			Str("client_id", c.ID).
			Str("event", ev.Kind.String()).
			Msg("event dropped")
		return false
	}
	return true
}

// EmitMany pushes ev to each target and returns how many were enqueued.
func (b *Broadcaster) EmitMany(targets []int64, ev *Event) int {
	n := 0
	for _, id := range targets {
		if b.Emit(id, ev) {
			n++
		}
	}
	return n
}
