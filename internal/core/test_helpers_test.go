package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/metrics"
	"github.com/vovakirdan/ichat-server/internal/store"
)

var errBoom = errors.New("boom")

// fakeStore keeps friendships, statuses and messages in memory.
type fakeStore struct {
	mu         sync.Mutex
	usernames  map[int64]string
	friends    map[int64][]int64
	statuses   map[int64][]store.UserStatus
	messages   []*store.Message
	nextID     int64
	failCreate error

	// onStatus runs after a status is recorded, outside the lock.
	onStatus func(userID int64, status store.UserStatus)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usernames: make(map[int64]string),
		friends:   make(map[int64][]int64),
		statuses:  make(map[int64][]store.UserStatus),
	}
}

func (s *fakeStore) addUser(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames[id] = name
}

func (s *fakeStore) befriend(a, b int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friends[a] = append(s.friends[a], b)
	s.friends[b] = append(s.friends[b], a)
}

func (s *fakeStore) CreateMessage(_ context.Context, from, to int64, content string, msgType store.MessageType) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return nil, s.failCreate
	}
	s.nextID++
	msg := &store.Message{
		ID:        s.nextID,
		From:      store.UserRef{ID: from, Username: s.usernames[from]},
		To:        store.UserRef{ID: to, Username: s.usernames[to]},
		Content:   content,
		Type:      msgType,
		CreatedAt: time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *fakeStore) SetUserStatus(_ context.Context, userID int64, status store.UserStatus) error {
	s.mu.Lock()
	s.statuses[userID] = append(s.statuses[userID], status)
	hook := s.onStatus
	s.mu.Unlock()

	if hook != nil {
		hook(userID, status)
	}
	return nil
}

func (s *fakeStore) FriendIDs(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.friends[userID]...), nil
}

func (s *fakeStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeStore) statusHistory(userID int64) []store.UserStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.UserStatus(nil), s.statuses[userID]...)
}

// fakeVerifier accepts tokens of the form registered with add.
type fakeVerifier struct {
	mu     sync.Mutex
	tokens map[string]Identity
	err    error
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{tokens: make(map[string]Identity)}
}

func (v *fakeVerifier) add(token string, id int64, username string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = Identity{ID: id, Username: username}
}

func (v *fakeVerifier) Verify(_ context.Context, credential string) (*Identity, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	ident, ok := v.tokens[credential]
	if !ok {
		return nil, NewAuthError(AuthInvalidCredential, errors.New("unknown token"))
	}
	return &ident, nil
}

type testEnv struct {
	hub      *Hub
	store    *fakeStore
	verifier *fakeVerifier
}

// newTestEnv wires a hub with alice(1), bob(2) and carol(3); alice and bob are friends.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := newFakeStore()
	st.addUser(1, "alice")
	st.addUser(2, "bob")
	st.addUser(3, "carol")
	st.befriend(1, 2)

	v := newFakeVerifier()
	v.add("alice-token", 1, "alice")
	v.add("bob-token", 2, "bob")
	v.add("carol-token", 3, "carol")

	hub := NewHub(Options{
		Verifier:        v,
		Store:           st,
		EvictionTimeout: 500 * time.Millisecond,
		Metrics:         metrics.New(prometheus.NewRegistry()),
		Logger:          zerolog.Nop(),
	})
	return &testEnv{hub: hub, store: st, verifier: v}
}

// admit connects a client and mimics a transport: once the client is kicked,
// the session is closed. Safe to call from any goroutine.
func (e *testEnv) admit(token string) (*Session, error) {
	client := NewClient(16)
	sess, err := e.hub.Connect(context.Background(), token, client)
	if err != nil {
		return nil, err
	}
	go func() {
		<-client.Kicked()
		e.hub.Disconnect(context.Background(), sess)
	}()
	return sess, nil
}

func (e *testEnv) connect(t *testing.T, token string) *Session {
	t.Helper()

	sess, err := e.admit(token)
	if err != nil {
		t.Fatalf("connect %s: %v", token, err)
	}
	return sess
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent fails if an event of kind arrives within wait.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected %v event: %+v", kind, ev)
			}
		case <-timer.C:
			return
		}
	}
}
