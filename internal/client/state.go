package client

// State is the connection lifecycle state.
type State int

const (
	// StateIdle holds before a session key exists.
	StateIdle State = iota
	// StateConnecting holds while the handshake is in flight.
	StateConnecting
	// StateOpen means payloads flow in both directions.
	StateOpen
	// StateClosed follows an explicit close or a normal close from the peer.
	StateClosed
	// StateErrored follows a dial failure or an abnormal drop.
	StateErrored
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// EventKind discriminates Event.
type EventKind int

const (
	// EventState reports a state transition.
	EventState EventKind = iota
	// EventPayload carries one raw inbound frame.
	EventPayload
)

// Event is emitted by a Handle in arrival order.
type Event struct {
	Kind    EventKind
	State   State
	Err     error
	Payload []byte
}
