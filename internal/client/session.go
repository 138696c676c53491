package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omochice/chit-chat/internal/chat"
	"github.com/omochice/chit-chat/pkg/protocol"
)

// HistoryFetcher supplies the oldest-first seed for a session.
type HistoryFetcher interface {
	Fetch(ctx context.Context, key chat.Key) ([]chat.Entry, error)
}

// Listener receives session updates. OnState, OnSeed and OnEntry run on the
// session's processing goroutine; OnTyping runs wherever the typing status
// changed, which includes timer goroutines. Any field may be nil.
type Listener struct {
	OnState  func(state State, err error)
	OnSeed   func(entries []chat.Entry)
	OnEntry  func(entry chat.Entry)
	OnTyping func(status chat.TypingStatus)
}

// Options wires a Session's collaborators.
type Options struct {
	Manager        *Manager
	History        HistoryFetcher
	TypingInterval time.Duration
	Listener       Listener
	Logger         *zap.Logger
	Now            func() time.Time
}

// Session owns one connection, one transcript and one typing tracker for a
// single key. They are created and destroyed together.
type Session struct {
	id         string
	key        chat.Key
	handle     *Handle
	transcript *chat.Transcript
	typing     *chat.TypingTracker
	dispatcher *Dispatcher
	listener   Listener
	logger     *zap.Logger

	history chan []chat.Entry
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	teardownOnce sync.Once
}

// StartSession opens the connection and starts the history fetch for key.
// It never blocks on either.
func StartSession(ctx context.Context, key chat.Key, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	logger = logger.With(zap.String("session_id", id), zap.Stringer("key", key))

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:         id,
		key:        key,
		transcript: chat.NewTranscript(),
		listener:   opts.Listener,
		logger:     logger,
		history:    make(chan []chat.Entry, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.typing = chat.NewTypingTracker(
		chat.WithInterval(opts.TypingInterval),
		chat.WithOnChange(func(status chat.TypingStatus) {
			if s.listener.OnTyping != nil {
				s.listener.OnTyping(status)
			}
		}),
	)

	s.handle = opts.Manager.Open(ctx, key)
	s.dispatcher = NewDispatcher(key, s.handle, opts.Now, logger)

	s.wg.Add(1)
	go s.fetchHistory(opts.History)

	s.wg.Add(1)
	go s.run()

	logger.Info("session started")
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Key returns the session key.
func (s *Session) Key() chat.Key { return s.key }

// State returns the connection state.
func (s *Session) State() State { return s.handle.State() }

// Connected is the connectivity signal.
func (s *Session) Connected() bool { return s.handle.Connected() }

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []chat.Entry { return s.transcript.Entries() }

// Typing returns who is currently typing.
func (s *Session) Typing() chat.TypingStatus { return s.typing.Status() }

// SendMessage sends text to the room or privately to recipient.
func (s *Session) SendMessage(text, recipient string) bool {
	return s.dispatcher.SendMessage(text, recipient)
}

// NotifyTyping emits a typing signal.
func (s *Session) NotifyTyping(recipient string) bool {
	return s.dispatcher.NotifyTyping(recipient)
}

// Teardown closes the connection and stops every goroutine the session
// started. It is idempotent.
func (s *Session) Teardown() {
	s.teardownOnce.Do(func() {
		s.handle.Close()
		s.typing.Stop()
		s.cancel()
		s.wg.Wait()
		s.handle.Wait()
		s.logger.Info("session ended")
	})
}

func (s *Session) fetchHistory(fetcher HistoryFetcher) {
	defer s.wg.Done()

	var entries []chat.Entry
	if fetcher != nil {
		var err error
		entries, err = fetcher.Fetch(s.ctx, s.key)
		if err != nil && s.ctx.Err() == nil {
			s.logger.Warn("history unavailable", zap.Error(err))
		}
	}
	select {
	case s.history <- entries:
	case <-s.ctx.Done():
	}
}

// run is the single processing loop. Each inbound payload is fully routed
// before the next one is read.
func (s *Session) run() {
	defer s.wg.Done()

	events := s.handle.Events()
	history := s.history
	for events != nil || history != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleEvent(ev)
		case entries := <-history:
			history = nil
			s.seed(entries)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) handleEvent(ev Event) {
	switch ev.Kind {
	case EventState:
		s.logger.Debug("state changed", zap.Stringer("state", ev.State), zap.Error(ev.Err))
		if s.listener.OnState != nil {
			s.listener.OnState(ev.State, ev.Err)
		}
	case EventPayload:
		s.route(ev.Payload)
	}
}

func (s *Session) route(payload []byte) {
	switch in := protocol.Decode(payload).(type) {
	case protocol.Message:
		s.append(chat.MessageEntry(in.Sender, in.Content))
	case protocol.Private:
		s.append(chat.MessageEntry(in.Sender, in.Content))
	case protocol.Typing:
		s.typing.Observe(in.Sender)
	case protocol.Malformed:
		s.logger.Debug("undecodable payload kept verbatim", zap.Error(in.Err))
		s.append(chat.RawEntry(in.Raw))
	}
}

func (s *Session) append(e chat.Entry) {
	s.transcript.Append(e)
	if s.listener.OnEntry != nil {
		s.listener.OnEntry(e)
	}
}

func (s *Session) seed(entries []chat.Entry) {
	if !s.transcript.Seed(entries) {
		return
	}
	s.logger.Debug("transcript seeded", zap.Int("entries", len(entries)))
	if s.listener.OnSeed != nil {
		s.listener.OnSeed(entries)
	}
}
