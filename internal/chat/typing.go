package chat

import (
	"strings"
	"sync"
	"time"
)

// DefaultTypingInterval is how long a typing signal stays visible.
const DefaultTypingInterval = 2 * time.Second

// Typist is one sender currently shown as typing.
type Typist struct {
	Sender string
	Until  time.Time
}

// TypingStatus lists active typists in the order they started typing.
type TypingStatus []Typist

// Empty reports whether nobody is typing.
func (s TypingStatus) Empty() bool { return len(s) == 0 }

// Has reports whether sender is in the status.
func (s TypingStatus) Has(sender string) bool {
	for _, t := range s {
		if t.Sender == sender {
			return true
		}
	}
	return false
}

// Senders returns the typists' names.
func (s TypingStatus) Senders() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = t.Sender
	}
	return out
}

// String renders the indicator line, "" when nobody is typing.
func (s TypingStatus) String() string {
	switch len(s) {
	case 0:
		return ""
	case 1:
		return s[0].Sender + " is typing..."
	default:
		return strings.Join(s.Senders(), ", ") + " are typing..."
	}
}

// Scheduler runs f after d and returns a function that cancels it.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// TypingOption configures a TypingTracker.
type TypingOption func(*TypingTracker)

// WithInterval overrides DefaultTypingInterval.
func WithInterval(d time.Duration) TypingOption {
	return func(t *TypingTracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithClock sets the time source used for deadlines.
func WithClock(now func() time.Time) TypingOption {
	return func(t *TypingTracker) { t.now = now }
}

// WithScheduler replaces time.AfterFunc.
func WithScheduler(s Scheduler) TypingOption {
	return func(t *TypingTracker) { t.schedule = s }
}

// WithOnChange registers a callback invoked whenever the set of typists changes.
func WithOnChange(fn func(TypingStatus)) TypingOption {
	return func(t *TypingTracker) { t.onChange = fn }
}

type typingTimer struct {
	token uint64
	until time.Time
	stop  func() bool
}

// TypingTracker derives the "X is typing..." indicator from typing signals.
// Each sender has its own expiry timer; a new signal from the same sender
// cancels and replaces that sender's timer only.
type TypingTracker struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	schedule Scheduler
	onChange func(TypingStatus)

	timers  map[string]*typingTimer
	order   []string
	token   uint64
	stopped bool
}

// NewTypingTracker creates a tracker with a 2s interval unless overridden.
func NewTypingTracker(opts ...TypingOption) *TypingTracker {
	t := &TypingTracker{
		interval: DefaultTypingInterval,
		now:      time.Now,
		schedule: afterFunc,
		timers:   make(map[string]*typingTimer),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Interval returns the expiry interval.
func (t *TypingTracker) Interval() time.Duration { return t.interval }

// Observe records a typing signal from sender.
func (t *TypingTracker) Observe(sender string) {
	t.mu.Lock()
	if t.stopped || sender == "" {
		t.mu.Unlock()
		return
	}

	t.token++
	token := t.token
	prev, existed := t.timers[sender]
	if existed {
		prev.stop()
	} else {
		t.order = append(t.order, sender)
	}
	t.timers[sender] = &typingTimer{
		token: token,
		until: t.now().Add(t.interval),
		stop:  t.schedule(t.interval, func() { t.expire(sender, token) }),
	}
	status := t.statusLocked()
	t.mu.Unlock()

	if !existed {
		t.notify(status)
	}
}

// expire clears sender if token still names the latest timer for it.
func (t *TypingTracker) expire(sender string, token uint64) {
	t.mu.Lock()
	cur, ok := t.timers[sender]
	if !ok || cur.token != token {
		t.mu.Unlock()
		return
	}
	delete(t.timers, sender)
	for i, s := range t.order {
		if s == sender {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	status := t.statusLocked()
	t.mu.Unlock()

	t.notify(status)
}

// Status returns the current typists.
func (t *TypingTracker) Status() TypingStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// Stop cancels every pending timer. Later signals are ignored.
func (t *TypingTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for sender, tm := range t.timers {
		tm.stop()
		delete(t.timers, sender)
	}
	t.order = nil
}

func (t *TypingTracker) statusLocked() TypingStatus {
	status := make(TypingStatus, 0, len(t.order))
	for _, s := range t.order {
		status = append(status, Typist{Sender: s, Until: t.timers[s].until})
	}
	return status
}

func (t *TypingTracker) notify(status TypingStatus) {
	if t.onChange != nil {
		t.onChange(status)
	}
}
