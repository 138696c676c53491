package client_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/omochice/chit-chat/internal/client"
	"github.com/omochice/chit-chat/pkg/protocol"
)

type recordingWriter struct {
	connected bool
	payloads  [][]byte
}

func (w *recordingWriter) Connected() bool { return w.connected }

func (w *recordingWriter) Write(payload []byte) bool {
	if !w.connected {
		return false
	}
	w.payloads = append(w.payloads, payload)
	return true
}

func (w *recordingWriter) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	out := make([]protocol.Envelope, 0, len(w.payloads))
	for _, p := range w.payloads {
		var e protocol.Envelope
		if err := json.Unmarshal(p, &e); err != nil {
			t.Fatalf("unmarshal %s: %v", p, err)
		}
		out = append(out, e)
	}
	return out
}

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, connected bool) (*client.Dispatcher, *recordingWriter) {
	t.Helper()
	w := &recordingWriter{connected: connected}
	d := client.NewDispatcher(mustKey(t, "Alice", "Technology"), w, func() time.Time { return fixedNow }, nil)
	return d, w
}

func TestDispatcher_SendMessage(t *testing.T) {
	stamp := protocol.FormatTimestamp(fixedNow)

	tests := []struct {
		name      string
		text      string
		recipient string
		want      []protocol.Envelope
	}{
		{
			name: "room message",
			text: "hello",
			want: []protocol.Envelope{{
				Kind: protocol.KindMessage, Content: "hello", Sender: "Alice", Room: "Technology", Timestamp: stamp,
			}},
		},
		{
			name:      "private message",
			text:      "secret",
			recipient: "Carol",
			want: []protocol.Envelope{{
				Kind: protocol.KindPrivate, Content: "secret", Sender: "Alice", Recipient: "Carol", Room: "Technology", Timestamp: stamp,
			}},
		},
		{
			name:      "blank recipient is a room message",
			text:      "hi all",
			recipient: "   ",
			want: []protocol.Envelope{{
				Kind: protocol.KindMessage, Content: "hi all", Sender: "Alice", Room: "Technology", Timestamp: stamp,
			}},
		},
		{
			name: "content is sent as typed",
			text: "  spaced  ",
			want: []protocol.Envelope{{
				Kind: protocol.KindMessage, Content: "  spaced  ", Sender: "Alice", Room: "Technology", Timestamp: stamp,
			}},
		},
		{name: "empty text", text: "", want: []protocol.Envelope{}},
		{name: "whitespace text", text: " \t\n", recipient: "Carol", want: []protocol.Envelope{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, w := newTestDispatcher(t, true)
			sent := d.SendMessage(tt.text, tt.recipient)

			if sent != (len(tt.want) > 0) {
				t.Errorf("SendMessage() = %v, want %v", sent, len(tt.want) > 0)
			}
			if diff := cmp.Diff(tt.want, w.envelopes(t)); diff != "" {
				t.Errorf("envelopes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDispatcher_Disconnected(t *testing.T) {
	d, w := newTestDispatcher(t, false)

	if d.SendMessage("hello", "") {
		t.Error("SendMessage() = true while disconnected")
	}
	if d.SendMessage("hello", "Carol") {
		t.Error("SendMessage() private = true while disconnected")
	}
	if d.NotifyTyping("") {
		t.Error("NotifyTyping() = true while disconnected")
	}
	if len(w.payloads) != 0 {
		t.Errorf("writes = %d, want 0", len(w.payloads))
	}
}

func TestDispatcher_NotifyTyping(t *testing.T) {
	d, w := newTestDispatcher(t, true)

	for i := 0; i < 3; i++ {
		if !d.NotifyTyping("Carol") {
			t.Fatalf("NotifyTyping() call %d = false", i)
		}
	}

	got := w.envelopes(t)
	if len(got) != 3 {
		t.Fatalf("writes = %d, want one per call", len(got))
	}
	want := protocol.Envelope{
		Kind:      protocol.KindTyping,
		Sender:    "Alice",
		Recipient: "Carol",
		Room:      "Technology",
		Timestamp: protocol.FormatTimestamp(fixedNow),
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("typing envelope mismatch (-want +got):\n%s", diff)
	}
}
