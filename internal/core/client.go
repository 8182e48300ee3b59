package core

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultClientBuffer is used when NewClient is given a non-positive buffer size.
const DefaultClientBuffer = 32

// Kick reasons.
const (
	KickReplaced = "session replaced"
	KickShutdown = "server shutting down"
	KickClosed   = "session closed"
)

// Client is one live connection as seen by the core layer.
// UserID and Name are set during admission and never change afterwards.
type Client struct {
	ID       string
	UserID   int64
	Name     string
	Commands chan *Command
	Events   chan *Event

	kickOnce   sync.Once
	kicked     chan struct{}
	kickReason string

	doneOnce sync.Once
	done     chan struct{}
}

// NewClient constructs a client with initialized channels and a fresh connection id.
func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		ID:       uuid.NewString(),
		Commands: make(chan *Command, buffer),
		Events:   make(chan *Event, buffer),
		kicked:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Push enqueues an event without blocking. It reports false when the client is
// closing or its buffer is full.
func (c *Client) Push(ev *Event) bool {
	select {
	case <-c.kicked:
		return false
	default:
	}

	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Kick asks the connection to shut down. Only the first reason is kept.
func (c *Client) Kick(reason string) {
	c.kickOnce.Do(func() {
		c.kickReason = reason
		close(c.kicked)
	})
}

// Kicked is closed once Kick has been called.
func (c *Client) Kicked() <-chan struct{} {
	return c.kicked
}

// KickReason returns the reason passed to the first Kick call.
func (c *Client) KickReason() string {
	select {
	case <-c.kicked:
		return c.kickReason
	default:
		return ""
	}
}

// Done is closed when the session owning this client has finished teardown.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}
