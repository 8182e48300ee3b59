package core

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func benchmarkPresenceFanout(b *testing.B, friends int) {
	st := newFakeStore()
	v := newFakeVerifier()
	hub := NewHub(Options{Verifier: v, Store: st, Logger: zerolog.Nop()})

	ids := make([]int64, 0, friends)
	for i := range friends {
		id := int64(i + 2)
		ids = append(ids, id)
		st.befriend(1, id)
		c := NewClient(DefaultClientBuffer)
		hub.registry.Register(id, c)
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	sess := &Session{
		Identity: &Identity{ID: 1, Username: "sender", Friends: NewFriendSet(ids)},
		Client:   NewClient(DefaultClientBuffer),
	}
	ev := &Event{Kind: EventFriendOnline, UserID: 1, Username: "sender"}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		hub.broadcaster.EmitMany(sess.Identity.Friends.IDs(), ev)
	}
}

func BenchmarkPresenceFanout_10(b *testing.B)  { benchmarkPresenceFanout(b, 10) }
func BenchmarkPresenceFanout_100(b *testing.B) { benchmarkPresenceFanout(b, 100) }
func BenchmarkPresenceFanout_500(b *testing.B) { benchmarkPresenceFanout(b, 500) }

func BenchmarkRouterSend(b *testing.B) {
	st := newFakeStore()
	v := newFakeVerifier()
	hub := NewHub(Options{Verifier: v, Store: st, Logger: zerolog.Nop()})

	recipient := NewClient(DefaultClientBuffer)
	hub.registry.Register(2, recipient)
	go func() {
		for range recipient.Events {
		}
	}()

	sess := &Session{
		Identity: &Identity{ID: 1, Username: "sender", Friends: NewFriendSet([]int64{2})},
		Client:   NewClient(DefaultClientBuffer),
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := hub.router.Send(ctx, sess, 2, "payload", "text"); err != nil {
			b.Fatal(err)
		}
	}
}
