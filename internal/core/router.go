package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/metrics"
	"github.com/vovakirdan/ichat-server/internal/store"
)

// Router validates, persists and delivers direct messages.
type Router struct {
	store       Store
	broadcaster *Broadcaster
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewRouter creates a message router.
func NewRouter(st Store, b *Broadcaster, m *metrics.Metrics, logger zerolog.Logger) *Router {
	return &Router{store: st, broadcaster: b, metrics: m, log: logger}
}

// Send persists a message from the session's user to a friend and pushes it to
// the recipient if they are online. The returned message is the persisted one.
// Non-friends get ErrNotFriends and nothing is written.
func (r *Router) Send(ctx context.Context, sess *Session, to int64, content, msgType string) (*Message, error) {
	if !sess.Identity.Friends.Contains(to) {
		return nil, ErrNotFriends
	}
	if msgType == "" {
		msgType = string(store.MessageTypeText)
	}

	stored, err := r.store.CreateMessage(ctx, sess.Identity.ID, to, content, store.MessageType(msgType))
	if err != nil {
		r.log.Error().Err(err).
			Int64("from", sess.Identity.ID).
			Int64("to", to).
			Msg("failed to persist message")
		return nil, &StorageError{Op: "create message", Err: err}
	}

	msg := MessageFromStore(stored)
	live := r.broadcaster.Emit(to, &Event{Kind: EventReceiveMessage, Message: msg})
	r.metrics.MessageRouted(live)

	r.log.Debug().
		Int64("message_id", msg.ID).
		Int64("from", msg.From.ID).
		Int64("to", msg.To.ID).
		Bool("live", live).
		Msg("message routed")
	return msg, nil
}

// Typing forwards a typing indicator to the peer. Indicators are never persisted.
func (r *Router) Typing(sess *Session, to int64, started bool) bool {
	kind := EventUserStopTyping
	username := ""
	if started {
		kind = EventUserTyping
		username = sess.Identity.Username
	}
	return r.broadcaster.Emit(to, &Event{Kind: kind, UserID: sess.Identity.ID, Username: username})
}
