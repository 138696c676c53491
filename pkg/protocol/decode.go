package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound is the result of decoding a payload: one of Message, Private,
// Typing or Malformed.
type Inbound interface {
	inbound()
}

// Message is a decoded room message.
type Message struct{ Envelope }

// Private is a decoded direct message. Recipient is always set.
type Private struct{ Envelope }

// Typing is a decoded typing signal.
type Typing struct{ Envelope }

// Malformed carries a payload that failed structural validation.
type Malformed struct {
	Raw string
	Err error
}

func (Message) inbound()   {}
func (Private) inbound()   {}
func (Typing) inbound()    {}
func (Malformed) inbound() {}

// Decode parses an inbound payload. It never fails: payloads that are not a
// well-formed envelope come back as Malformed with the original bytes.
func Decode(data []byte) Inbound {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Malformed{Raw: string(data), Err: fmt.Errorf("failed to decode envelope: %w", err)}
	}

	switch env.Kind {
	case KindMessage:
		return Message{env}
	case KindPrivate:
		if env.Recipient == "" {
			return Malformed{Raw: string(data), Err: ErrMissingRecipient}
		}
		return Private{env}
	case KindTyping:
		// Content is a signal-only field; anything the server put there is ignored.
		env.Content = ""
		return Typing{env}
	default:
		return Malformed{Raw: string(data), Err: fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)}
	}
}
