// Package store persists chat messages for the reference server.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/omochice/chit-chat/pkg/protocol"
)

// Backend names accepted by server.store.
const (
	KindMemory = "memory"
	KindMongo  = "mongo"
	KindSQLite = "sqlite"
)

// ErrNotFound is returned by MarkDelivered for an unknown id.
var ErrNotFound = errors.New("message not found")

// Record is one stored message.
type Record struct {
	ID        string
	Kind      protocol.Kind
	Content   string
	Sender    string
	Recipient string
	Room      string
	Timestamp time.Time
	Delivered bool
}

// Store is implemented by every backend.
type Store interface {
	// Save stores r and returns its id.
	Save(ctx context.Context, r Record) (string, error)
	// Recent returns up to limit room messages of room, newest first.
	// Private messages are never included.
	Recent(ctx context.Context, room string, limit int) ([]Record, error)
	// Undelivered returns private messages for recipient not yet delivered,
	// oldest first.
	Undelivered(ctx context.Context, recipient string) ([]Record, error)
	// MarkDelivered flags one message as delivered.
	MarkDelivered(ctx context.Context, id string) error
	Close(ctx context.Context) error
}
