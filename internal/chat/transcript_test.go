package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omochice/chit-chat/internal/chat"
)

func TestTranscript_SeedThenAppend(t *testing.T) {
	tr := chat.NewTranscript()

	assert.True(t, tr.Seed([]chat.Entry{chat.MessageEntry("Bob", "hi")}))
	tr.Append(chat.MessageEntry("Bob", "yo"))

	assert.Equal(t, []chat.Entry{"Bob: hi", "Bob: yo"}, tr.Entries())
	assert.Equal(t, 2, tr.Len())
	assert.True(t, tr.Seeded())
}

func TestTranscript_SeedOnlyOnce(t *testing.T) {
	tr := chat.NewTranscript()

	assert.True(t, tr.Seed([]chat.Entry{"a"}))
	assert.False(t, tr.Seed([]chat.Entry{"b", "c"}))

	assert.Equal(t, []chat.Entry{"a"}, tr.Entries())
}

func TestTranscript_SeedPrecedesEarlyLiveEntries(t *testing.T) {
	tr := chat.NewTranscript()

	tr.Append(chat.MessageEntry("Carol", "first live"))
	tr.Seed([]chat.Entry{chat.MessageEntry("Bob", "old")})
	tr.Append(chat.RawEntry("not json"))

	assert.Equal(t, []chat.Entry{"Bob: old", "Carol: first live", "not json"}, tr.Entries())
}

func TestTranscript_EntriesIsACopy(t *testing.T) {
	tr := chat.NewTranscript()
	tr.Append("x")

	got := tr.Entries()
	got[0] = "mutated"

	assert.Equal(t, []chat.Entry{"x"}, tr.Entries())
}

func TestTranscript_SeedCopiesInput(t *testing.T) {
	tr := chat.NewTranscript()
	seed := []chat.Entry{"a"}
	tr.Seed(seed)
	seed[0] = "mutated"

	assert.Equal(t, []chat.Entry{"a"}, tr.Entries())
}

func TestTranscript_Empty(t *testing.T) {
	tr := chat.NewTranscript()
	assert.Empty(t, tr.Entries())
	assert.NotNil(t, tr.Entries())
	assert.Equal(t, 0, tr.Len())
}
