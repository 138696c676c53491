package client_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chit-chat/internal/client"
	"github.com/omochice/chit-chat/internal/transport"
)

const waitFor = time.Second
const tick = 5 * time.Millisecond

func nextEvent(t *testing.T, h *client.Handle) client.Event {
	t.Helper()
	select {
	case ev, ok := <-h.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for event")
		return client.Event{}
	}
}

func requireClosedEvents(t *testing.T, h *client.Handle) {
	t.Helper()
	select {
	case _, ok := <-h.Events():
		require.False(t, ok, "expected event channel to be closed")
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for event channel to close")
	}
}

func TestHandle_OpenAndReceive(t *testing.T) {
	dialer := &fakeDialer{}
	m := client.NewManager(dialer, "ws://localhost:8080", 0, nil)

	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))
	defer h.Close()

	assert.Equal(t, client.Event{Kind: client.EventState, State: client.StateConnecting}, nextEvent(t, h))
	assert.Equal(t, client.Event{Kind: client.EventState, State: client.StateOpen}, nextEvent(t, h))
	assert.True(t, h.Connected())
	assert.Equal(t, "ws://localhost:8080/ws?room=General&username=Alice", h.URL())

	conn := dialer.conn(0)
	conn.push("one")
	conn.push("two")

	assert.Equal(t, "one", string(nextEvent(t, h).Payload))
	assert.Equal(t, "two", string(nextEvent(t, h).Payload))
}

func TestHandle_DialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	m := client.NewManager(&fakeDialer{err: dialErr}, "ws://localhost:8080", 0, nil)

	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))
	defer h.Close()

	assert.Equal(t, client.StateConnecting, nextEvent(t, h).State)
	ev := nextEvent(t, h)
	assert.Equal(t, client.StateErrored, ev.State)
	assert.ErrorIs(t, ev.Err, dialErr)
	requireClosedEvents(t, h)

	assert.False(t, h.Connected())
	assert.False(t, h.Write([]byte("x")))
	assert.ErrorIs(t, h.Err(), dialErr)
}

func TestHandle_PeerNormalClose(t *testing.T) {
	dialer := &fakeDialer{}
	m := client.NewManager(dialer, "ws://localhost:8080", 0, nil)
	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))
	defer h.Close()

	nextEvent(t, h)
	nextEvent(t, h)
	dialer.conn(0).drop(transport.ErrClosed)

	assert.Equal(t, client.StateClosed, nextEvent(t, h).State)
	requireClosedEvents(t, h)
	assert.True(t, dialer.conn(0).isClosed())
}

func TestHandle_AbnormalDrop(t *testing.T) {
	dialer := &fakeDialer{}
	m := client.NewManager(dialer, "ws://localhost:8080", 0, nil)
	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))
	defer h.Close()

	nextEvent(t, h)
	nextEvent(t, h)
	dialer.conn(0).drop(errors.New("unexpected EOF"))

	assert.Equal(t, client.StateErrored, nextEvent(t, h).State)
	requireClosedEvents(t, h)

	// No way back to Open on the same handle.
	assert.False(t, h.Write([]byte("x")))
	assert.Equal(t, 1, dialer.dialed())
}

func TestHandle_CloseIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	m := client.NewManager(dialer, "ws://localhost:8080", 0, nil)
	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))

	nextEvent(t, h)
	nextEvent(t, h)

	h.Close()
	h.Close()
	h.Wait()

	assert.Equal(t, client.StateClosed, h.State())
	assert.True(t, dialer.conn(0).isClosed())
}

func TestHandle_CloseAfterErrorKeepsErrored(t *testing.T) {
	m := client.NewManager(&fakeDialer{err: errors.New("boom")}, "ws://localhost:8080", 0, nil)
	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))
	h.Wait()

	h.Close()
	assert.Equal(t, client.StateErrored, h.State())
}

func TestHandle_CloseWhileConnecting(t *testing.T) {
	dialer := &fakeDialer{gate: make(chan struct{})}
	m := client.NewManager(dialer, "ws://localhost:8080", 0, nil)
	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))

	assert.Equal(t, client.StateConnecting, h.State())
	assert.False(t, h.Write([]byte("early")))

	h.Close()
	h.Wait()

	assert.Equal(t, client.StateClosed, h.State())
	assert.Equal(t, 0, dialer.dialed())
}

func TestHandle_Write(t *testing.T) {
	dialer := &fakeDialer{}
	m := client.NewManager(dialer, "ws://localhost:8080", 0, nil)
	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))
	defer h.Close()

	nextEvent(t, h)
	nextEvent(t, h)

	require.True(t, h.Write([]byte("payload")))
	require.Len(t, dialer.conn(0).writes(), 1)
	assert.Equal(t, "payload", string(dialer.conn(0).writes()[0]))
}

func TestHandle_WriteFailureErrors(t *testing.T) {
	dialer := &fakeDialer{}
	m := client.NewManager(dialer, "ws://localhost:8080", 0, nil)
	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))
	defer h.Close()

	nextEvent(t, h)
	nextEvent(t, h)

	conn := dialer.conn(0)
	conn.mu.Lock()
	conn.writeErr = errors.New("broken pipe")
	conn.mu.Unlock()

	assert.False(t, h.Write([]byte("payload")))
	assert.Equal(t, client.StateErrored, nextEvent(t, h).State)
	requireClosedEvents(t, h)
}

func TestManager_InvalidBase(t *testing.T) {
	m := client.NewManager(&fakeDialer{}, "http://localhost:8080", 0, nil)
	h := m.Open(context.Background(), mustKey(t, "Alice", "General"))
	defer h.Close()

	assert.Equal(t, client.StateErrored, nextEvent(t, h).State)
	requireClosedEvents(t, h)
	assert.Error(t, h.Err())
}

func TestTargetURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		identity string
		want     string
		wantErr  bool
	}{
		{"loopback default", "ws://localhost:8080", "Alice", "ws://localhost:8080/ws?room=General&username=Alice", false},
		{"trailing slash", "wss://chat.example.com/", "Alice", "wss://chat.example.com/ws?room=General&username=Alice", false},
		{"path prefix", "ws://host/api", "Alice", "ws://host/api/ws?room=General&username=Alice", false},
		{"identity is escaped", "ws://host", "Al & ice", "ws://host/ws?room=General&username=Al+%26+ice", false},
		{"http scheme rejected", "http://host", "Alice", "", true},
		{"garbage rejected", "://", "Alice", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.TargetURL(tt.base, mustKey(t, tt.identity, "General"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDialer(t *testing.T) {
	for _, name := range []string{"", transport.Gorilla, transport.Gobwas, transport.Nhooyr} {
		d, err := client.NewDialer(name, transport.Options{})
		require.NoError(t, err, name)
		assert.NotNil(t, d, name)
	}

	_, err := client.NewDialer("carrier-pigeon", transport.Options{})
	assert.ErrorIs(t, err, client.ErrUnknownTransport)
}
