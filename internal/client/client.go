package client

import (
	"context"
	"sync"

	"github.com/omochice/chit-chat/internal/chat"
)

// Client holds at most one active Session. Joining with a new key tears
// the current session down first.
type Client struct {
	opts Options

	mu      sync.Mutex
	session *Session
}

// New creates a Client with no session.
func New(opts Options) *Client {
	return &Client{opts: opts}
}

// Join starts a session for key, replacing any current one.
func (c *Client) Join(ctx context.Context, key chat.Key) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Teardown()
	}
	c.session = StartSession(ctx, key, c.opts)
	return c.session
}

// Session returns the active session, or nil.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns StateIdle when no session exists.
func (c *Client) State() State {
	if s := c.Session(); s != nil {
		return s.State()
	}
	return StateIdle
}

// Connected is the connectivity signal of the active session.
func (c *Client) Connected() bool {
	return c.State() == StateOpen
}

// Close tears the active session down. The session stays reachable so its
// final state and transcript can still be read.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Teardown()
	}
}
