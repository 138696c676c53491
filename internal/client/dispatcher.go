package client

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omochice/chit-chat/internal/chat"
	"github.com/omochice/chit-chat/pkg/protocol"
)

// Writer is the outbound side of a connection.
type Writer interface {
	Connected() bool
	Write(payload []byte) bool
}

// Dispatcher turns user actions into outbound envelopes.
type Dispatcher struct {
	key    chat.Key
	w      Writer
	now    func() time.Time
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher stamping envelopes with key.
func NewDispatcher(key chat.Key, w Writer, now func() time.Time, logger *zap.Logger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{key: key, w: w, now: now, logger: logger}
}

// SendMessage sends text to the room, or privately when recipient is set.
// Blank text or a closed connection makes it a no-op.
func (d *Dispatcher) SendMessage(text, recipient string) bool {
	if strings.TrimSpace(text) == "" || !d.w.Connected() {
		return false
	}
	env := protocol.NewMessage(string(d.key.Identity()), string(d.key.Room()), text, recipient, d.now())
	return d.send(env)
}

// NotifyTyping signals a keystroke. Every call is one write.
func (d *Dispatcher) NotifyTyping(recipient string) bool {
	if !d.w.Connected() {
		return false
	}
	env := protocol.NewTyping(string(d.key.Identity()), string(d.key.Room()), recipient, d.now())
	return d.send(env)
}

func (d *Dispatcher) send(env protocol.Envelope) bool {
	data, err := protocol.Encode(env)
	if err != nil {
		d.logger.Error("encode envelope", zap.Stringer("kind", env.Kind), zap.Error(err))
		return false
	}
	return d.w.Write(data)
}
