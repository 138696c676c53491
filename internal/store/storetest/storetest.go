// Package storetest holds the behaviour every store.Store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chit-chat/internal/store"
	"github.com/omochice/chit-chat/pkg/protocol"
)

// Run exercises a fresh store from open for every subtest.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("RecentNewestFirst", func(t *testing.T) { testRecent(t, open(t)) })
	t.Run("RecentLimit", func(t *testing.T) { testRecentLimit(t, open(t)) })
	t.Run("RecentEmptyRoom", func(t *testing.T) { testRecentEmpty(t, open(t)) })
	t.Run("Undelivered", func(t *testing.T) { testUndelivered(t, open(t)) })
	t.Run("MarkDeliveredUnknown", func(t *testing.T) { testMarkUnknown(t, open(t)) })
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func message(sender, room, content string, offset int) store.Record {
	return store.Record{
		Kind:      protocol.KindMessage,
		Sender:    sender,
		Room:      room,
		Content:   content,
		Timestamp: base.Add(time.Duration(offset) * time.Second),
	}
}

func private(sender, recipient, content string, offset int) store.Record {
	r := message(sender, "General", content, offset)
	r.Kind = protocol.KindPrivate
	r.Recipient = recipient
	return r
}

func save(t *testing.T, s store.Store, recs ...store.Record) []string {
	t.Helper()
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		id, err := s.Save(context.Background(), r)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}
	return ids
}

func contents(recs []store.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Content)
	}
	return out
}

func testRecent(t *testing.T, s store.Store) {
	ctx := context.Background()
	save(t, s,
		message("Alice", "General", "first", 1),
		message("Bob", "Tech", "elsewhere", 2),
		private("Bob", "Alice", "secret", 3),
		message("Bob", "General", "second", 4),
	)

	got, err := s.Recent(ctx, "General", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, contents(got))
	assert.Equal(t, "Bob", got[0].Sender)
	assert.True(t, got[0].Timestamp.Equal(base.Add(4*time.Second)))
}

func testRecentLimit(t *testing.T, s store.Store) {
	for i := 0; i < 25; i++ {
		save(t, s, message("Alice", "General", string(rune('a'+i)), i))
	}

	got, err := s.Recent(context.Background(), "General", 20)
	require.NoError(t, err)
	require.Len(t, got, 20)
	assert.Equal(t, "y", got[0].Content)
	assert.Equal(t, "f", got[19].Content)
}

func testRecentEmpty(t *testing.T, s store.Store) {
	got, err := s.Recent(context.Background(), "Music", 20)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func testUndelivered(t *testing.T, s store.Store) {
	ctx := context.Background()
	ids := save(t, s,
		private("Bob", "Carol", "one", 1),
		private("Alice", "Carol", "two", 2),
		private("Bob", "Dave", "not yours", 3),
		message("Bob", "General", "public", 4),
	)

	got, err := s.Undelivered(ctx, "Carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, contents(got))
	assert.Equal(t, ids[0], got[0].ID)
	assert.Equal(t, "Carol", got[0].Recipient)

	require.NoError(t, s.MarkDelivered(ctx, ids[0]))

	got, err = s.Undelivered(ctx, "Carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, contents(got))
}

func testMarkUnknown(t *testing.T, s store.Store) {
	err := s.MarkDelivered(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
