package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chit-chat/internal/chat"
	"github.com/omochice/chit-chat/internal/client"
	"github.com/omochice/chit-chat/pkg/protocol"
)

func wire(t *testing.T, e protocol.Envelope) string {
	t.Helper()
	data, err := protocol.Encode(e)
	require.NoError(t, err)
	return string(data)
}

func startTestSession(t *testing.T, dialer *fakeDialer, history client.HistoryFetcher, l client.Listener) *client.Session {
	t.Helper()
	s := client.StartSession(context.Background(), mustKey(t, "Alice", "General"), client.Options{
		Manager:        client.NewManager(dialer, "ws://localhost:8080", 0, nil),
		History:        history,
		TypingInterval: 50 * time.Millisecond,
		Listener:       l,
	})
	t.Cleanup(s.Teardown)
	return s
}

func waitOpen(t *testing.T, s *client.Session) {
	t.Helper()
	require.Eventually(t, s.Connected, waitFor, tick)
}

func TestSession_HistoryThenLive(t *testing.T) {
	dialer := &fakeDialer{}
	history := &fakeHistory{entries: []chat.Entry{chat.MessageEntry("Bob", "hi")}}
	s := startTestSession(t, dialer, history, client.Listener{})

	waitOpen(t, s)
	dialer.conn(0).push(wire(t, protocol.NewMessage("Bob", "General", "yo", "", time.Now())))

	want := []chat.Entry{"Bob: hi", "Bob: yo"}
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, s.Transcript())
	}, waitFor, tick)
}

func TestSession_SeedPrecedesEarlyLiveEntries(t *testing.T) {
	dialer := &fakeDialer{}
	release := make(chan struct{})
	history := &fakeHistory{
		entries: []chat.Entry{"Bob: first", "Carol: second"},
		release: release,
	}
	s := startTestSession(t, dialer, history, client.Listener{})

	waitOpen(t, s)
	dialer.conn(0).push(wire(t, protocol.NewMessage("Dave", "General", "live", "", time.Now())))
	require.Eventually(t, func() bool { return len(s.Transcript()) == 1 }, waitFor, tick)

	close(release)

	want := []chat.Entry{"Bob: first", "Carol: second", "Dave: live"}
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, s.Transcript())
	}, waitFor, tick)
}

func TestSession_HistoryFailureLeavesLiveStream(t *testing.T) {
	dialer := &fakeDialer{}
	s := startTestSession(t, dialer, &fakeHistory{err: errors.New("503")}, client.Listener{})

	waitOpen(t, s)
	dialer.conn(0).push(wire(t, protocol.NewMessage("Bob", "General", "still here", "", time.Now())))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]chat.Entry{"Bob: still here"}, s.Transcript())
	}, waitFor, tick)
}

func TestSession_PrivateMessageEntry(t *testing.T) {
	dialer := &fakeDialer{}
	s := startTestSession(t, dialer, nil, client.Listener{})

	waitOpen(t, s)
	dialer.conn(0).push(wire(t, protocol.NewMessage("Carol", "General", "psst", "Alice", time.Now())))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]chat.Entry{"Carol: psst"}, s.Transcript())
	}, waitFor, tick)
}

func TestSession_MalformedPayloadKeptRaw(t *testing.T) {
	dialer := &fakeDialer{}
	s := startTestSession(t, dialer, nil, client.Listener{})

	waitOpen(t, s)
	conn := dialer.conn(0)
	conn.push("Bob is offline. msg saved!")
	conn.push(`{"type":"shout","content":"HEY","sender":"Bob","room":"General"}`)
	conn.push(wire(t, protocol.NewMessage("Bob", "General", "after", "", time.Now())))

	want := []chat.Entry{
		"Bob is offline. msg saved!",
		`{"type":"shout","content":"HEY","sender":"Bob","room":"General"}`,
		"Bob: after",
	}
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, s.Transcript())
	}, waitFor, tick)
	assert.True(t, s.Connected())
}

func TestSession_TypingIndicator(t *testing.T) {
	var mu sync.Mutex
	var changes []string
	l := client.Listener{
		OnTyping: func(status chat.TypingStatus) {
			mu.Lock()
			defer mu.Unlock()
			changes = append(changes, status.String())
		},
	}
	dialer := &fakeDialer{}
	s := startTestSession(t, dialer, nil, l)

	waitOpen(t, s)
	dialer.conn(0).push(wire(t, protocol.NewTyping("Bob", "General", "", time.Now())))

	require.Eventually(t, func() bool { return s.Typing().Has("Bob") }, waitFor, tick)
	assert.Equal(t, "Bob is typing...", s.Typing().String())
	assert.Empty(t, s.Transcript(), "typing signals never reach the transcript")

	assert.Eventually(t, func() bool { return s.Typing().Empty() }, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bob is typing...", ""}, changes)
}

func TestSession_SendWhileOpen(t *testing.T) {
	dialer := &fakeDialer{}
	s := startTestSession(t, dialer, nil, client.Listener{})

	assert.False(t, s.SendMessage("too early", ""), "nothing is sent before Open")

	waitOpen(t, s)
	require.True(t, s.NotifyTyping(""))
	require.True(t, s.SendMessage("hello", ""))

	writes := dialer.conn(0).writes()
	require.Len(t, writes, 2)
	assert.Equal(t, protocol.KindTyping, protocol.Decode(writes[0]).(protocol.Typing).Kind)
	msg, ok := protocol.Decode(writes[1]).(protocol.Message)
	require.True(t, ok)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "Alice", msg.Sender)
	assert.Equal(t, "General", msg.Room)
}

func TestSession_ListenerOrder(t *testing.T) {
	var mu sync.Mutex
	var log []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		log = append(log, s)
	}
	l := client.Listener{
		OnState: func(state client.State, err error) { record("state:" + state.String()) },
		OnEntry: func(e chat.Entry) { record("entry:" + string(e)) },
	}
	dialer := &fakeDialer{}
	s := startTestSession(t, dialer, nil, l)

	waitOpen(t, s)
	dialer.conn(0).push(wire(t, protocol.NewMessage("Bob", "General", "yo", "", time.Now())))
	require.Eventually(t, func() bool { return len(s.Transcript()) == 1 }, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"state:" + client.StateConnecting.String(),
		"state:" + client.StateOpen.String(),
		"entry:Bob: yo",
	}, log)
}

func TestSession_ServerCloseEndsSession(t *testing.T) {
	dialer := &fakeDialer{}
	s := startTestSession(t, dialer, nil, client.Listener{})

	waitOpen(t, s)
	dialer.conn(0).drop(errors.New("reset by peer"))

	assert.Eventually(t, func() bool { return s.State() == client.StateErrored }, waitFor, tick)
	assert.False(t, s.SendMessage("anyone?", ""))
	assert.Equal(t, 1, dialer.dialed(), "no reconnect")
}

func TestSession_TeardownIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	s := startTestSession(t, dialer, nil, client.Listener{})

	waitOpen(t, s)
	s.Teardown()
	s.Teardown()

	assert.Equal(t, client.StateClosed, s.State())
	assert.True(t, dialer.conn(0).isClosed())
	assert.False(t, s.Connected())
}

func TestClient_JoinReplacesSession(t *testing.T) {
	dialer := &fakeDialer{}
	c := client.New(client.Options{
		Manager: client.NewManager(dialer, "ws://localhost:8080", 0, nil),
	})
	defer c.Close()

	assert.Equal(t, client.StateIdle, c.State())
	assert.Nil(t, c.Session())

	first := c.Join(context.Background(), mustKey(t, "Alice", "General"))
	require.Eventually(t, c.Connected, waitFor, tick)

	second := c.Join(context.Background(), mustKey(t, "Alice", "Technology"))
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, client.StateClosed, first.State())
	assert.True(t, dialer.conn(0).isClosed())

	require.Eventually(t, c.Connected, waitFor, tick)
	assert.Same(t, second, c.Session())
	assert.Equal(t, chat.Room("Technology"), c.Session().Key().Room())

	dialer.mu.Lock()
	urls := append([]string(nil), dialer.urls...)
	dialer.mu.Unlock()
	assert.Equal(t, []string{
		"ws://localhost:8080/ws?room=General&username=Alice",
		"ws://localhost:8080/ws?room=Technology&username=Alice",
	}, urls)

	c.Close()
	assert.Equal(t, client.StateClosed, c.State())
}
