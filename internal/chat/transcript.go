package chat

import "sync"

// Entry is one display-ready transcript line.
type Entry string

// MessageEntry formats a decoded message as "sender: content".
func MessageEntry(sender, content string) Entry {
	return Entry(sender + ": " + content)
}

// RawEntry keeps an undecodable payload verbatim.
func RawEntry(raw string) Entry {
	return Entry(raw)
}

// Transcript is the append-only log of a session. The history seed is
// always kept ahead of live entries, even when live entries arrive first.
type Transcript struct {
	mu     sync.RWMutex
	seed   []Entry
	live   []Entry
	seeded bool
}

// NewTranscript creates an empty Transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Seed installs the history prefix. Only the first call has an effect.
func (t *Transcript) Seed(entries []Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seeded {
		return false
	}
	t.seeded = true
	t.seed = append([]Entry(nil), entries...)
	return true
}

// Append adds one entry at the tail.
func (t *Transcript) Append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = append(t.live, e)
}

// Seeded reports whether Seed has been called.
func (t *Transcript) Seeded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seeded
}

// Entries returns a copy of the full sequence, seed first.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.seed)+len(t.live))
	out = append(out, t.seed...)
	return append(out, t.live...)
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seed) + len(t.live)
}
