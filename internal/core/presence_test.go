package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterReplacesAndDeregisterComparesClient(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	first := NewClient(1)
	second := NewClient(1)

	req.Nil(r.Register(1, first))
	req.Same(first, r.Register(1, second))
	req.Nil(r.Register(1, second), "re-registering the same client evicts nothing")

	req.False(r.Deregister(1, first), "stale client must not remove the newer binding")
	got, ok := r.Lookup(1)
	req.True(ok)
	req.Same(second, got)

	req.True(r.Deregister(1, second))
	req.False(r.IsOnline(1))
	req.Equal(0, r.Count())
}

func TestRegistryOnlineFiltersIDs(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	r.Register(1, NewClient(1))
	r.Register(3, NewClient(1))

	req.Equal([]int64{1, 3}, r.Online([]int64{1, 2, 3, 4}))
	req.Empty(r.Online(nil))
	req.Len(r.Clients(), 2)
}

func TestRegistryConcurrentRegistrationKeepsOneBinding(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	const n = 64
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = NewClient(1)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		evicted = make(map[*Client]int)
	)
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if prev := r.Register(7, c); prev != nil {
				mu.Lock()
				evicted[prev]++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	req.Equal(1, r.Count())
	winner, ok := r.Lookup(7)
	req.True(ok)
	req.Len(evicted, n-1, "every client but the winner is evicted exactly once")
	req.NotContains(evicted, winner)
	for _, times := range evicted {
		req.Equal(1, times)
	}

	var removed int
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if r.Deregister(7, c) {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	req.Equal(1, removed)
	req.Equal(0, r.Count())
}

func TestClientPushAfterKickOrWhenFull(t *testing.T) {
	req := require.New(t)

	c := NewClient(1)
	req.True(c.Push(&Event{Kind: EventFriendOnline}))
	req.False(c.Push(&Event{Kind: EventFriendOnline}), "full buffer drops")

	<-c.Events
	c.Kick("bye")
	c.Kick("ignored")
	req.False(c.Push(&Event{Kind: EventFriendOnline}), "kicked client drops")
	req.Equal("bye", c.KickReason())
}
