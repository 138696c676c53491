package server

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omochice/chit-chat/internal/transport"
)

// Client is one connected user with its own send queue.
type Client struct {
	id       string
	username string
	room     string
	conn     transport.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(username, room string, conn transport.Conn, queue int) *Client {
	return &Client{
		id:       uuid.NewString(),
		username: username,
		room:     room,
		conn:     conn,
		send:     make(chan []byte, queue),
	}
}

// Username returns the identity the client connected with.
func (c *Client) Username() string { return c.username }

// Room returns the room the client joined.
func (c *Client) Room() string { return c.room }

// enqueue queues data for the writer. It reports false when the queue is
// full or closed; the data is dropped in both cases.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writeLoop is the only writer of c.conn.
func (c *Client) writeLoop(ctx context.Context, logger *zap.Logger) {
	for data := range c.send {
		if err := c.conn.Write(ctx, data); err != nil {
			logger.Warn("write failed", zap.Error(err))
			_ = c.conn.Close()
			// Keep draining so enqueue never blocks on a dead client.
			for range c.send {
			}
			return
		}
	}
}

// Hub tracks connected clients by username and by room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	closed  bool
	logger  *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client. A second connection with the same username
// takes over delivery; the earlier one is returned so it can be closed.
// It returns false once CloseAll has run.
func (h *Hub) Register(c *Client) (replaced *Client, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	if prev, ok := h.clients[c.username]; ok && prev != c {
		h.removeLocked(prev)
		replaced = prev
	}
	h.clients[c.username] = c
	members := h.rooms[c.room]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[c.room] = members
	}
	members[c.username] = c
	return replaced, true
}

// Unregister removes c unless it was already replaced.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.username]; ok && cur == c {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *Client) {
	delete(h.clients, c.username)
	if members := h.rooms[c.room]; members != nil {
		if members[c.username] == c {
			delete(members, c.username)
		}
		if len(members) == 0 {
			delete(h.rooms, c.room)
		}
	}
}

// Lookup returns the connected client for username.
func (h *Hub) Lookup(username string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[username]
	return c, ok
}

// Online reports whether username is connected.
func (h *Hub) Online(username string) bool {
	_, ok := h.Lookup(username)
	return ok
}

// Members returns the clients in room.
func (h *Hub) Members(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		out = append(out, c)
	}
	return out
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send queues data for c and logs a dropped message.
func (h *Hub) Send(c *Client, data []byte) bool {
	if c.enqueue(data) {
		return true
	}
	h.logger.Warn("send queue full, message dropped",
		zap.String("conn_id", c.id), zap.String("username", c.username))
	return false
}

// Broadcast queues data for every member of room except skip.
func (h *Hub) Broadcast(room string, data []byte, skip *Client) int {
	n := 0
	for _, c := range h.Members(room) {
		if c == skip {
			continue
		}
		if h.Send(c, data) {
			n++
		}
	}
	return n
}

// CloseAll closes every connection and refuses later registrations. The
// handlers unregister themselves.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	conns := make([]transport.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}
