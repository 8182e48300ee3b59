package core

import "sync"

// Registry maps each online user to the single client currently bound to them.
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[int64]*Client)}
}

// Register binds userID to c and returns the client it replaced, if any.
func (r *Registry) Register(userID int64, c *Client) *Client {
	r.mu.Lock()
	prev := r.clients[userID]
	r.clients[userID] = c
	r.mu.Unlock()

	if prev == c {
		return nil
	}
	return prev
}

// Lookup returns the client bound to userID.
func (r *Registry) Lookup(userID int64) (*Client, bool) {
	r.mu.RLock()
	c, ok := r.clients[userID]
	r.mu.RUnlock()
	return c, ok
}

// Deregister removes the binding only if it still points at c.
// It reports whether a binding was removed.
func (r *Registry) Deregister(userID int64, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.clients[userID]; !ok || cur != c {
		return false
	}
	delete(r.clients, userID)
	return true
}

// IsOnline reports whether userID has a bound client.
func (r *Registry) IsOnline(userID int64) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Online filters ids down to those currently bound.
func (r *Registry) Online(ids []int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.clients[id]; ok {
			online = append(online, id)
		}
	}
	return online
}

// Clients returns a snapshot of all bound clients.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}
