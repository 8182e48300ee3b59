package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/metrics"
	"github.com/vovakirdan/ichat-server/internal/store"
)

// DefaultEvictionTimeout bounds how long admission waits for a replaced
// session to finish teardown.
const DefaultEvictionTimeout = 2 * time.Second

// Verifier turns a credential into a verified identity.
// Rejections must be returned as *AuthError.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// Store is the durable state the core depends on.
type Store interface {
	CreateMessage(ctx context.Context, fromUserID, toUserID int64, content string, msgType store.MessageType) (*store.Message, error)
	SetUserStatus(ctx context.Context, userID int64, status store.UserStatus) error
	FriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

// SessionState is the lifecycle stage of a session.
type SessionState int

const (
	SessionConnecting SessionState = iota
	SessionAuthenticating
	SessionActive
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionAuthenticating:
		return "authenticating"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is an admitted connection bound to a verified identity.
type Session struct {
	Identity *Identity
	Client   *Client

	mu        sync.Mutex
	state     SessionState
	closeOnce sync.Once
}

// State returns the current lifecycle stage.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the id of the session's user.
func (s *Session) UserID() int64 {
	return s.Identity.ID
}

func (s *Session) setState(next SessionState) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// SessionManager admits and tears down sessions, keeping the registry and the
// persisted status in step with them.
type SessionManager struct {
	verifier        Verifier
	store           Store
	registry        *Registry
	broadcaster     *Broadcaster
	evictionTimeout time.Duration
	metrics         *metrics.Metrics
	log             zerolog.Logger
}

// NewSessionManager creates a session manager.
func NewSessionManager(
	verifier Verifier,
	st Store,
	registry *Registry,
	broadcaster *Broadcaster,
	evictionTimeout time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SessionManager {
	if evictionTimeout <= 0 {
		evictionTimeout = DefaultEvictionTimeout
	}
	return &SessionManager{
		verifier:        verifier,
		store:           st,
		registry:        registry,
		broadcaster:     broadcaster,
		evictionTimeout: evictionTimeout,
		metrics:         m,
		log:             logger,
	}
}

// Admit verifies the credential, binds client to the identity and announces the
// user to online friends. A previous client bound to the same user is kicked and
// Admit waits, bounded by the eviction timeout, for its teardown to finish.
// On error nothing is registered.
func (m *SessionManager) Admit(ctx context.Context, credential string, client *Client) (*Session, error) {
	sess := &Session{Client: client, state: SessionConnecting}

	if credential == "" {
		sess.setState(SessionClosed)
		m.metrics.AuthFailed(AuthMissingCredential.String())
		return nil, NewAuthError(AuthMissingCredential, nil)
	}

	sess.setState(SessionAuthenticating)
	ident, err := m.verifier.Verify(ctx, credential)
	if err != nil {
		sess.setState(SessionClosed)
		var ae *AuthError
		if errors.As(err, &ae) {
			m.metrics.AuthFailed(ae.Kind.String())
			return nil, ae
		}
		return nil, fmt.Errorf("verify credential: %w", err)
	}

	if ident.Friends == nil {
		ids, err := m.store.FriendIDs(ctx, ident.ID)
		if err != nil {
			sess.setState(SessionClosed)
			return nil, &StorageError{Op: "load friends", Err: err}
		}
		ident.Friends = NewFriendSet(ids)
	}

	sess.Identity = ident
	client.UserID = ident.ID
	client.Name = ident.Username

	if evicted := m.registry.Register(ident.ID, client); evicted != nil {
		m.evict(ident.ID, evicted)
	}

	if err := m.store.SetUserStatus(ctx, ident.ID, store.UserStatusOnline); err != nil {
		m.log.Warn().Err(err).Int64("user_id", ident.ID).Msg("failed to persist online status")
	}

	sess.setState(SessionActive)
	m.metrics.SessionOpened()

	// A newer session may have replaced this one while it was being admitted;
	// that session announces presence instead.
	notified := 0
	select {
	case <-client.Kicked():
		m.log.Debug().
			Int64("user_id", ident.ID).
			Str("client_id", client.ID).
			Msg("session replaced during admission, skipping presence announcement")
	default:
		notified = m.broadcaster.EmitMany(ident.Friends.IDs(), &Event{
			Kind:     EventFriendOnline,
			UserID:   ident.ID,
			Username: ident.Username,
		})
	}

	m.log.Info().
		Int64("user_id", ident.ID).
		Str("username", ident.Username).
		Str("client_id", client.ID).
		Int("friends_notified", notified).
		Msg("session admitted")
	return sess, nil
}

func (m *SessionManager) evict(userID int64, old *Client) {
	start := time.Now()
	old.Kick(KickReplaced)

	timer := time.NewTimer(m.evictionTimeout)
	defer timer.Stop()

	select {
	case <-old.Done():
	case <-timer.C:
		m.log.Warn().
			Int64("user_id", userID).
			Str("client_id", old.ID).
			Dur("timeout", m.evictionTimeout).
			Msg("evicted session did not finish teardown in time")
	}

	m.metrics.SessionEvicted(time.Since(start))
	m.log.Info().Int64("user_id", userID).Str("client_id", old.ID).Msg("previous session evicted")
}

// Close tears the session down. Only the call that actually removes the
// registry binding persists the offline status and notifies friends, so an
// evicted session never announces its user offline. Close is idempotent.
func (m *SessionManager) Close(ctx context.Context, sess *Session) {
	sess.closeOnce.Do(func() {
		defer sess.Client.finish()

		sess.Client.Kick(KickClosed)
		sess.setState(SessionClosed)
		m.metrics.SessionClosed()

		ident := sess.Identity
		if !m.registry.Deregister(ident.ID, sess.Client) {
			m.log.Debug().
				Int64("user_id", ident.ID).
				Str("client_id", sess.Client.ID).
				Msg("session closed after replacement")
			return
		}

		if err := m.store.SetUserStatus(context.WithoutCancel(ctx), ident.ID, store.UserStatusOffline); err != nil {
			m.log.Warn().Err(err).Int64("user_id", ident.ID).Msg("failed to persist offline status")
		}

		m.broadcaster.EmitMany(ident.Friends.IDs(), &Event{Kind: EventFriendOffline, UserID: ident.ID})
		m.log.Info().Int64("user_id", ident.ID).Str("client_id", sess.Client.ID).Msg("session closed")
	})
}
