// Package chat holds the client-side chat domain: the session key, the
// transcript and typing presence.
package chat

import (
	"errors"
	"fmt"
	"strings"
)

// Identity is the display name chosen at login.
type Identity string

// Room is one of the enumerated chat rooms.
type Room string

var (
	ErrEmptyIdentity = errors.New("identity must not be empty")
	ErrUnknownRoom   = errors.New("unknown room")
)

// Key is the immutable (identity, room) pair a session is bound to.
type Key struct {
	identity Identity
	room     Room
}

// NewKey validates the login inputs. The identity is trimmed; an empty
// room falls back to DefaultRoom.
func NewKey(identity, room string) (Key, error) {
	id := strings.TrimSpace(identity)
	if id == "" {
		return Key{}, ErrEmptyIdentity
	}
	if room == "" {
		room = string(DefaultRoom)
	}
	if !IsRoom(room) {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownRoom, room)
	}
	return Key{identity: Identity(id), room: Room(room)}, nil
}

func (k Key) Identity() Identity { return k.identity }
func (k Key) Room() Room         { return k.room }

// IsZero reports whether k was never set.
func (k Key) IsZero() bool {
	return k.identity == ""
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.identity, k.room)
}
