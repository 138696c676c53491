// Package protocol defines the JSON envelope exchanged with the chat server
// and the translation between envelopes and wire payloads.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the envelope discriminator carried in the "type" field.
type Kind string

const (
	KindMessage Kind = "message"
	KindPrivate Kind = "private"
	KindTyping  Kind = "typing"
)

// String returns the wire representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindMessage, KindPrivate, KindTyping:
		return true
	default:
		return false
	}
}

// TimestampLayout matches the millisecond ISO-8601 form browsers emit.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrUnknownKind      = errors.New("unknown envelope kind")
	ErrMissingRecipient = errors.New("private envelope requires a recipient")
	ErrTypingContent    = errors.New("typing envelope must not carry content")
)

// Envelope is the unit exchanged over the connection.
type Envelope struct {
	Kind      Kind   `json:"type"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient,omitempty"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
}

// NewMessage builds a room message, or a private one when recipient is set.
func NewMessage(sender, room, content, recipient string, at time.Time) Envelope {
	recipient = strings.TrimSpace(recipient)
	kind := KindMessage
	if recipient != "" {
		kind = KindPrivate
	}
	return Envelope{
		Kind:      kind,
		Content:   content,
		Sender:    sender,
		Recipient: recipient,
		Room:      room,
		Timestamp: FormatTimestamp(at),
	}
}

// NewPrivate builds a private message for recipient.
func NewPrivate(sender, room, content, recipient string, at time.Time) Envelope {
	env := NewMessage(sender, room, content, recipient, at)
	env.Kind = KindPrivate
	return env
}

// NewTyping builds a typing signal. Content is always empty.
func NewTyping(sender, room, recipient string, at time.Time) Envelope {
	return Envelope{
		Kind:      KindTyping,
		Sender:    sender,
		Recipient: strings.TrimSpace(recipient),
		Room:      room,
		Timestamp: FormatTimestamp(at),
	}
}

// Validate checks the per-kind invariants.
func (e Envelope) Validate() error {
	switch e.Kind {
	case KindMessage:
		return nil
	case KindPrivate:
		if e.Recipient == "" {
			return ErrMissingRecipient
		}
		return nil
	case KindTyping:
		if e.Content != "" {
			return ErrTypingContent
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

// Encode serializes the envelope into a wire payload.
func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts both the millisecond layout and plain RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
