package protocol_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/omochice/chit-chat/pkg/protocol"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data string
		want protocol.Inbound
	}{
		{
			name: "room message",
			data: `{"type":"message","sender":"Bob","content":"yo","room":"General","timestamp":"2024-03-09T14:05:07.123Z"}`,
			want: protocol.Message{Envelope: protocol.Envelope{
				Kind: protocol.KindMessage, Sender: "Bob", Content: "yo", Room: "General",
				Timestamp: "2024-03-09T14:05:07.123Z",
			}},
		},
		{
			name: "private message",
			data: `{"type":"private","sender":"Bob","content":"psst","recipient":"Alice"}`,
			want: protocol.Private{Envelope: protocol.Envelope{
				Kind: protocol.KindPrivate, Sender: "Bob", Content: "psst", Recipient: "Alice",
			}},
		},
		{
			name: "typing drops stray content",
			data: `{"type":"typing","sender":"Bob","content":"ignored"}`,
			want: protocol.Typing{Envelope: protocol.Envelope{Kind: protocol.KindTyping, Sender: "Bob"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := protocol.Decode([]byte(tt.data))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "plain text ack", data: "Message delivered to Carol"},
		{name: "truncated json", data: `{"type":"message","sender":`},
		{name: "json array", data: `[1,2,3]`},
		{name: "empty payload", data: ""},
		{name: "unknown type", data: `{"type":"join","sender":"Bob"}`, wantErr: protocol.ErrUnknownKind},
		{name: "missing type", data: `{"sender":"Bob","content":"hi"}`, wantErr: protocol.ErrUnknownKind},
		{name: "json null", data: `null`, wantErr: protocol.ErrUnknownKind},
		{name: "private without recipient", data: `{"type":"private","sender":"Bob","content":"x"}`, wantErr: protocol.ErrMissingRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := protocol.Decode([]byte(tt.data))
			m, ok := got.(protocol.Malformed)
			if !ok {
				t.Fatalf("Decode() = %T, want protocol.Malformed", got)
			}
			if m.Raw != tt.data {
				t.Errorf("Malformed.Raw = %q, want %q", m.Raw, tt.data)
			}
			if m.Err == nil {
				t.Error("Malformed.Err should be set")
			}
			if tt.wantErr != nil && !errors.Is(m.Err, tt.wantErr) {
				t.Errorf("Malformed.Err = %v, want %v", m.Err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := protocol.NewMessage("Alice", "Music", "Test message content", "Dave", fixedTime)

	encoded, err := protocol.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, ok := protocol.Decode(encoded).(protocol.Private)
	if !ok {
		t.Fatalf("Decode() did not yield a private envelope")
	}
	if diff := cmp.Diff(original, decoded.Envelope); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
