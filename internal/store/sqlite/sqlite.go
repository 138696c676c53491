// Package sqlite stores messages in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/omochice/chit-chat/internal/store"
	"github.com/omochice/chit-chat/pkg/protocol"
)

var schema = []string{`CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	sender TEXT NOT NULL,
	recipient TEXT NOT NULL DEFAULT '',
	room TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL,
	delivered INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS messages_room_ts ON messages (room, timestamp)`,
	`CREATE INDEX IF NOT EXISTS messages_recipient ON messages (recipient, delivered)`,
}

const columns = "id, type, content, sender, recipient, room, timestamp, delivered"

// Store is a store.Store over database/sql.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path. ":memory:" works for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, r store.Record) (string, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (type, content, sender, recipient, room, timestamp, delivered)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.Kind), r.Content, r.Sender, r.Recipient, r.Room, r.Timestamp.UTC().UnixMilli(), r.Delivered)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to read message id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) Recent(ctx context.Context, room string, limit int) ([]store.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx,
		`SELECT `+columns+` FROM messages WHERE room = ? AND type = ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		room, string(protocol.KindMessage), limit)
}

func (s *Store) Undelivered(ctx context.Context, recipient string) ([]store.Record, error) {
	return s.query(ctx,
		`SELECT `+columns+` FROM messages WHERE type = ? AND recipient = ? AND delivered = 0
		 ORDER BY timestamp ASC, id ASC`,
		string(protocol.KindPrivate), recipient)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	out := []store.Record{}
	for rows.Next() {
		var (
			r         store.Record
			id        int64
			kind      string
			ts        int64
			delivered bool
		)
		if err := rows.Scan(&id, &kind, &r.Content, &r.Sender, &r.Recipient, &r.Room, &ts, &delivered); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		r.ID = strconv.FormatInt(id, 10)
		r.Kind = protocol.Kind(kind)
		r.Timestamp = time.UnixMilli(ts).UTC()
		r.Delivered = delivered
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return out, nil
}

func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET delivered = 1 WHERE id = ?`, n)
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
