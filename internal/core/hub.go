package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/metrics"
)

// Options configures a Hub.
type Options struct {
	Verifier        Verifier
	Store           Store
	EvictionTimeout time.Duration
	// ShutdownTimeout bounds how long Shutdown waits for sessions to tear down.
	ShutdownTimeout time.Duration
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
}

// Hub ties presence, sessions, routing and broadcasting together and is the
// only entry point transports use.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	sessions    *SessionManager
	router      *Router
	log         zerolog.Logger

	shutdownTimeout time.Duration
}

const defaultShutdownTimeout = 5 * time.Second

// NewHub creates a new chat hub instance.
func NewHub(opts Options) *Hub {
	logger := opts.Logger.With().Str("component", "hub").Logger()
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, opts.Metrics, logger)
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &Hub{
		registry:    registry,
		broadcaster: broadcaster,
		sessions: NewSessionManager(
			opts.Verifier,
			opts.Store,
			registry,
			broadcaster,
			opts.EvictionTimeout,
			opts.Metrics,
			logger,
		),
		router: NewRouter(opts.Store, broadcaster, opts.Metrics, logger),
		log:    logger,

		shutdownTimeout: shutdownTimeout,
	}
}

// Run blocks until ctx is cancelled and then shuts the hub down.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Shutdown()
}

// Shutdown kicks every connected client and waits, up to the shutdown
// timeout, for their sessions to finish teardown.
func (h *Hub) Shutdown() {
	clients := h.registry.Clients()
	for _, c := range clients {
		c.Kick(KickShutdown)
	}

	timer := time.NewTimer(h.shutdownTimeout)
	defer timer.Stop()

wait:
	for i, c := range clients {
		select {
		case <-c.Done():
		case <-timer.C:
			h.log.Warn().
				Int("pending", len(clients)-i).
				Dur("timeout", h.shutdownTimeout).
				Msg("sessions did not finish teardown before shutdown timeout")
			break wait
		}
	}
	h.log.Info().Int("clients", len(clients)).Msg("hub shut down")
}

// Connect admits client under the identity proven by credential.
func (h *Hub) Connect(ctx context.Context, credential string, client *Client) (*Session, error) {
	return h.sessions.Admit(ctx, credential, client)
}

// Disconnect tears the session down. Safe to call more than once.
func (h *Hub) Disconnect(ctx context.Context, sess *Session) {
	h.sessions.Close(ctx, sess)
}

// Serve processes the session's commands until ctx is done or the client is kicked.
func (h *Hub) Serve(ctx context.Context, sess *Session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sess.Client.Kicked():
			return nil
		case cmd := <-sess.Client.Commands:
			if cmd != nil {
				h.Handle(ctx, sess, cmd)
			}
		}
	}
}

// Handle executes a single command on behalf of the session.
func (h *Hub) Handle(ctx context.Context, sess *Session, cmd *Command) {
	switch cmd.Kind {
	case CommandSendMessage:
		msg, err := h.router.Send(ctx, sess, cmd.To, cmd.Content, cmd.Type)
		if err != nil {
			sess.Client.Push(errorEvent(err))
			return
		}
		sess.Client.Push(&Event{Kind: EventMessageSent, Message: msg})
	case CommandTyping:
		h.router.Typing(sess, cmd.To, true)
	case CommandStopTyping:
		h.router.Typing(sess, cmd.To, false)
	default:
		sess.Client.Push(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "unknown command")})
	}
}

// Notify pushes an event to a user if they are online.
func (h *Hub) Notify(userID int64, ev *Event) bool {
	return h.broadcaster.Emit(userID, ev)
}

// IsOnline reports whether the user has a live session.
func (h *Hub) IsOnline(userID int64) bool {
	return h.registry.IsOnline(userID)
}

// Online filters ids down to users with a live session.
func (h *Hub) Online(ids []int64) []int64 {
	return h.registry.Online(ids)
}

// OnlineCount returns the number of users with a live session.
func (h *Hub) OnlineCount() int {
	return h.registry.Count()
}
