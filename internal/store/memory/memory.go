// Package memory is the in-process message store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/omochice/chit-chat/internal/store"
	"github.com/omochice/chit-chat/pkg/protocol"
)

// Store keeps every record in memory.
type Store struct {
	mu      sync.RWMutex
	records []store.Record
	index   map[string]int
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

func (s *Store) Save(ctx context.Context, r store.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	s.index[r.ID] = len(s.records)
	s.records = append(s.records, r)
	return r.ID, nil
}

func (s *Store) Recent(ctx context.Context, room string, limit int) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.Record{}
	for _, r := range s.records {
		if r.Room == room && r.Kind == protocol.KindMessage {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Undelivered(ctx context.Context, recipient string) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.Record{}
	for _, r := range s.records {
		if r.Kind == protocol.KindPrivate && r.Recipient == recipient && !r.Delivered {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return store.ErrNotFound
	}
	s.records[i].Delivered = true
	return nil
}

func (s *Store) Close(context.Context) error { return nil }
