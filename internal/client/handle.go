package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omochice/chit-chat/internal/chat"
	"github.com/omochice/chit-chat/internal/transport"
)

// Handle is one live connection for one session key. It never reconnects:
// once Closed or Errored it stays there.
type Handle struct {
	id     string
	key    chat.Key
	url    string
	dialer transport.Dialer
	logger *zap.Logger

	mu    sync.Mutex
	state State
	err   error
	conn  transport.Conn

	events    chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newHandle(ctx context.Context, key chat.Key, url string, dialer transport.Dialer, buffer int, logger *zap.Logger) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	return &Handle{
		id:     id,
		key:    key,
		url:    url,
		dialer: dialer,
		logger: logger.With(zap.String("conn_id", id), zap.Stringer("key", key)),
		state:  StateConnecting,
		events: make(chan Event, buffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// failedHandle returns a handle that is already Errored, for targets that
// cannot even be built.
func failedHandle(key chat.Key, err error, logger *zap.Logger) *Handle {
	h := newHandle(context.Background(), key, "", nil, 1, logger)
	h.state = StateErrored
	h.err = err
	h.events <- Event{Kind: EventState, State: StateErrored, Err: err}
	close(h.events)
	close(h.done)
	h.cancel()
	h.logger.Warn("connection target invalid", zap.Error(err))
	return h
}

// ID identifies the handle in logs.
func (h *Handle) ID() string { return h.id }

// Key returns the session key the handle was opened for.
func (h *Handle) Key() chat.Key { return h.key }

// URL returns the connection target.
func (h *Handle) URL() string { return h.url }

// Events delivers state transitions and inbound payloads in arrival order.
// The channel is closed once the handle reaches a terminal state.
func (h *Handle) Events() <-chan Event { return h.events }

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the error behind an Errored state.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Connected is the connectivity signal.
func (h *Handle) Connected() bool {
	return h.State() == StateOpen
}

// Write sends payload if the handle is Open. Otherwise the payload is
// dropped and false is returned.
func (h *Handle) Write(payload []byte) bool {
	h.mu.Lock()
	if h.state != StateOpen || h.conn == nil {
		h.mu.Unlock()
		return false
	}
	conn := h.conn
	h.mu.Unlock()

	if err := conn.Write(h.ctx, payload); err != nil {
		h.logger.Warn("write failed", zap.Error(err))
		h.fail(err)
		return false
	}
	return true
}

// Close tears the connection down. Calling it more than once is a no-op.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		if !h.state.Terminal() {
			h.state = StateClosed
		}
		conn := h.conn
		h.mu.Unlock()

		h.cancel()
		if conn != nil {
			if err := conn.Close(); err != nil {
				h.logger.Debug("close failed", zap.Error(err))
			}
		}
	})
}

// Wait blocks until the reader goroutine has exited.
func (h *Handle) Wait() {
	<-h.done
}

// transition moves to a terminal state unless one was already reached.
func (h *Handle) transition(to State, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() {
		return false
	}
	h.state = to
	h.err = err
	return true
}

func (h *Handle) fail(err error) {
	if h.transition(StateErrored, err) {
		h.mu.Lock()
		conn := h.conn
		h.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	}
}

func (h *Handle) emit(ev Event) {
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	}
}

// run dials and then reads until the connection ends. It is the only
// goroutine that emits events.
func (h *Handle) run() {
	defer close(h.done)
	defer close(h.events)

	h.emit(Event{Kind: EventState, State: StateConnecting})

	conn, err := h.dialer.Dial(h.ctx, h.url)
	if err != nil {
		if h.ctx.Err() == nil {
			h.logger.Warn("connect failed", zap.String("url", h.url), zap.Error(err))
			h.transition(StateErrored, err)
		}
		h.emitFinal()
		return
	}

	h.mu.Lock()
	if h.state.Terminal() {
		h.mu.Unlock()
		_ = conn.Close()
		h.emitFinal()
		return
	}
	h.conn = conn
	h.state = StateOpen
	h.mu.Unlock()

	h.logger.Info("connected", zap.String("remote", conn.RemoteAddr()))
	h.emit(Event{Kind: EventState, State: StateOpen})

	for {
		data, err := conn.Read(h.ctx)
		if err != nil {
			switch {
			case h.ctx.Err() != nil:
				// explicit close; state already Closed
			case errors.Is(err, transport.ErrClosed):
				h.logger.Info("server closed connection", zap.Error(err))
				h.transition(StateClosed, nil)
			default:
				h.logger.Warn("connection lost", zap.Error(err))
				h.fail(err)
			}
			_ = conn.Close()
			h.emitFinal()
			return
		}
		h.emit(Event{Kind: EventPayload, Payload: data})
	}
}

func (h *Handle) emitFinal() {
	h.mu.Lock()
	ev := Event{Kind: EventState, State: h.state, Err: h.err}
	h.mu.Unlock()
	h.emit(ev)
}
