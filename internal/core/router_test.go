package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendToNonFriendIsRejectedWithoutPersisting(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	alice := env.connect(t, "alice-token")
	carol := env.connect(t, "carol-token")

	msg, err := env.hub.router.Send(context.Background(), alice, 3, "hello", "text")
	req.Nil(msg)
	req.ErrorIs(err, ErrNotFriends)
	req.Equal(0, env.store.messageCount())
	noEvent(t, carol.Client.Events, EventReceiveMessage, 100*time.Millisecond)
}

func TestSendToOfflineFriendIsStored(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	alice := env.connect(t, "alice-token")

	msg, err := env.hub.router.Send(context.Background(), alice, 2, "are you there?", "")
	req.NoError(err)
	req.NotZero(msg.ID)
	req.Equal("text", msg.Type)
	req.Equal("alice", msg.From.Username)
	req.Equal("bob", msg.To.Username)
	req.Equal(1, env.store.messageCount())
}

func TestSendToOnlineFriendDeliversPersistedMessage(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	alice := env.connect(t, "alice-token")
	bob := env.connect(t, "bob-token")

	msg, err := env.hub.router.Send(context.Background(), alice, 2, "hi bob", "image")
	req.NoError(err)

	ev := mustEvent(t, bob.Client.Events, EventReceiveMessage)
	req.Same(msg, ev.Message)
	req.Equal(msg.ID, ev.Message.ID)
	req.Equal("image", ev.Message.Type)
}

func TestSendStorageFailureDeliversNothing(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	env.store.failCreate = errBoom

	alice := env.connect(t, "alice-token")
	bob := env.connect(t, "bob-token")

	_, err := env.hub.router.Send(context.Background(), alice, 2, "lost", "text")

	var se *StorageError
	req.True(errors.As(err, &se))
	req.ErrorIs(err, errBoom)
	req.Equal(ErrCodeStorageError, ErrorFor(err).Code)
	noEvent(t, bob.Client.Events, EventReceiveMessage, 100*time.Millisecond)
}

func TestTypingIndicators(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	alice := env.connect(t, "alice-token")
	bob := env.connect(t, "bob-token")

	req.True(env.hub.router.Typing(alice, 2, true))
	ev := mustEvent(t, bob.Client.Events, EventUserTyping)
	req.Equal(int64(1), ev.UserID)
	req.Equal("alice", ev.Username)

	req.True(env.hub.router.Typing(alice, 2, false))
	ev = mustEvent(t, bob.Client.Events, EventUserStopTyping)
	req.Equal(int64(1), ev.UserID)

	req.False(env.hub.router.Typing(alice, 99, true), "offline target is a no-op")
	req.Equal(0, env.store.messageCount())
}
