package ws

import (
	"context"
	"fmt"
	"net/url"

	"nhooyr.io/websocket"

	"github.com/omochice/chit-chat/internal/transport"
)

// Dialer dials with websocket.Dial.
type Dialer struct {
	opts transport.Options
}

// NewDialer creates a Dialer.
func NewDialer(opts transport.Options) *Dialer {
	return &Dialer{opts: opts}
}

// Dial implements transport.Dialer. The handshake timeout only bounds the
// dial; the returned connection outlives it.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (transport.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout())
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rawURL, err)
	}
	addr := ""
	if u, perr := url.Parse(rawURL); perr == nil {
		addr = u.Host
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return NewConnWithAddr(conn, addr), nil
}
