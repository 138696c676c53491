// Package transport abstracts the websocket libraries behind a single
// message-oriented connection.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Conn.Read when the peer closed the connection
// normally. Any other read error is a transport failure.
var ErrClosed = errors.New("connection closed by peer")

// Names of the available adapters.
const (
	Gorilla = "gorilla"
	Gobwas  = "gobwas"
	Nhooyr  = "nhooyr"
)

// Conn is a bidirectional text-message connection.
type Conn interface {
	// Read blocks for the next text frame.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one text frame. Safe for concurrent use.
	Write(ctx context.Context, data []byte) error

	// Close sends a normal close frame and releases the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer opens a Conn to a websocket URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// Options are shared by every adapter.
type Options struct {
	HandshakeTimeout time.Duration
}

// DefaultHandshakeTimeout bounds the opening handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// Timeout returns the handshake timeout, defaulted.
func (o Options) Timeout() time.Duration {
	if o.HandshakeTimeout <= 0 {
		return DefaultHandshakeTimeout
	}
	return o.HandshakeTimeout
}
