// Package gobwas provides the gobwas/ws transport adapter.
package gobwas

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/chit-chat/internal/transport"
)

const writeWait = 10 * time.Second

// Conn adapts a client-side gobwas connection to transport.Conn.
type Conn struct {
	conn      net.Conn
	reader    io.Reader
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps conn. br holds bytes the handshake read past the upgrade
// response and may be nil.
func NewConn(conn net.Conn, br *bufio.Reader) *Conn {
	c := &Conn{conn: conn, reader: conn}
	if br != nil {
		c.reader = br
	}
	return c
}

// lockedWriter serializes control-frame replies issued while reading with
// regular writes.
type lockedWriter struct{ c *Conn }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.writeMu.Lock()
	defer w.c.writeMu.Unlock()
	return w.c.conn.Write(p)
}

// Read implements transport.Conn. Pings are answered while reading.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	rw := struct {
		io.Reader
		io.Writer
	}{c.reader, lockedWriter{c}}

	data, _, err := wsutil.ReadServerData(rw)
	if err != nil {
		var closed wsutil.ClosedError
		if errors.As(err, &closed) &&
			(closed.Code == ws.StatusNormalClosure || closed.Code == ws.StatusGoingAway) {
			return nil, fmt.Errorf("%w: %v", transport.ErrClosed, err)
		}
		return nil, err
	}
	return data, nil
}

// Write implements transport.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return wsutil.WriteClientText(c.conn, data)
}

// Close implements transport.Conn.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Dialer dials with ws.Dialer.
type Dialer struct {
	dialer ws.Dialer
}

// NewDialer creates a Dialer.
func NewDialer(opts transport.Options) *Dialer {
	return &Dialer{dialer: ws.Dialer{Timeout: opts.Timeout()}}
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	conn, br, _, err := d.dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return NewConn(conn, br), nil
}
