package client

import (
	"errors"
	"fmt"

	"github.com/omochice/chit-chat/internal/transport"
	"github.com/omochice/chit-chat/internal/transport/gobwas"
	"github.com/omochice/chit-chat/internal/transport/gorilla"
	"github.com/omochice/chit-chat/internal/transport/ws"
)

// ErrUnknownTransport is returned for an unsupported transport name.
var ErrUnknownTransport = errors.New("unknown transport")

// NewDialer selects a transport adapter by name. The empty name selects gorilla.
func NewDialer(name string, opts transport.Options) (transport.Dialer, error) {
	switch name {
	case "", transport.Gorilla:
		return gorilla.NewDialer(opts), nil
	case transport.Gobwas:
		return gobwas.NewDialer(opts), nil
	case transport.Nhooyr:
		return ws.NewDialer(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}
}
