// Package client implements the chat session: connection lifecycle,
// outbound dispatch and the processing loop that keeps the transcript.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/omochice/chit-chat/internal/chat"
	"github.com/omochice/chit-chat/internal/transport"
)

// DefaultEventBuffer is the capacity of a handle's event channel.
const DefaultEventBuffer = 64

// Manager opens connections for session keys.
type Manager struct {
	dialer  transport.Dialer
	baseURL string
	buffer  int
	logger  *zap.Logger
}

// NewManager creates a Manager dialing baseURL (for example ws://localhost:8080).
func NewManager(dialer transport.Dialer, baseURL string, buffer int, logger *zap.Logger) *Manager {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{dialer: dialer, baseURL: baseURL, buffer: buffer, logger: logger}
}

// Open starts connecting for key and returns immediately. Failures only
// show up as the handle moving to StateErrored.
func (m *Manager) Open(ctx context.Context, key chat.Key) *Handle {
	target, err := TargetURL(m.baseURL, key)
	if err != nil {
		return failedHandle(key, err, m.logger)
	}
	h := newHandle(ctx, key, target, m.dialer, m.buffer, m.logger)
	go h.run()
	return h
}

// TargetURL builds <base>/ws?username=<identity>&room=<room>.
func TargetURL(base string, key chat.Key) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid websocket base %q: %w", base, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid websocket base %q: scheme must be ws or wss", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := url.Values{}
	q.Set("username", string(key.Identity()))
	q.Set("room", string(key.Room()))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
