package server

import (
	"go.uber.org/zap"

	"github.com/omochice/chit-chat/internal/store"
	"github.com/omochice/chit-chat/pkg/protocol"
)

// route handles one inbound frame from cl.
func (s *Server) route(cl *Client, data []byte, logger *zap.Logger) {
	switch in := protocol.Decode(data).(type) {
	case protocol.Message:
		s.handleMessage(cl, s.stamp(cl, in.Envelope), logger)
	case protocol.Private:
		s.handlePrivate(cl, s.stamp(cl, in.Envelope), logger)
	case protocol.Typing:
		s.handleTyping(cl, s.stamp(cl, in.Envelope), logger)
	case protocol.Malformed:
		logger.Info("ignoring frame", zap.Error(in.Err))
	}
}

// stamp fills the fields the server owns: sender identity, a default room
// and the timestamp.
func (s *Server) stamp(cl *Client, env protocol.Envelope) protocol.Envelope {
	env.Sender = cl.username
	if env.Room == "" {
		env.Room = cl.room
	}
	env.Timestamp = protocol.FormatTimestamp(s.now())
	return env
}

func (s *Server) save(env protocol.Envelope, logger *zap.Logger) (string, bool) {
	ts, err := protocol.ParseTimestamp(env.Timestamp)
	if err != nil {
		ts = s.now()
	}
	ctx, cancel := storeContext()
	defer cancel()
	id, err := s.store.Save(ctx, store.Record{
		Kind:      env.Kind,
		Content:   env.Content,
		Sender:    env.Sender,
		Recipient: env.Recipient,
		Room:      env.Room,
		Timestamp: ts,
	})
	if err != nil {
		logger.Error("failed to save message", zap.Stringer("kind", env.Kind), zap.Error(err))
		return "", false
	}
	logger.Debug("message saved", zap.String("id", id))
	return id, true
}

func (s *Server) markDelivered(id string, logger *zap.Logger) {
	ctx, cancel := storeContext()
	defer cancel()
	if err := s.store.MarkDelivered(ctx, id); err != nil {
		logger.Warn("failed to mark delivered", zap.String("id", id), zap.Error(err))
	}
}

// handleMessage persists a room message, echoes it to the sender and
// broadcasts it to the rest of the room. A persistence failure does not
// stop delivery.
func (s *Server) handleMessage(cl *Client, env protocol.Envelope, logger *zap.Logger) {
	s.save(env, logger)

	data, ok := encodeOrLog(env, logger)
	if !ok {
		return
	}
	s.hub.Send(cl, data)
	n := s.hub.Broadcast(env.Room, data, cl)
	logger.Debug("message broadcast", zap.String("to_room", env.Room), zap.Int("recipients", n))
}

// handlePrivate persists the message as undelivered, then forwards it when
// the recipient is online and acknowledges the sender in plain text.
func (s *Server) handlePrivate(cl *Client, env protocol.Envelope, logger *zap.Logger) {
	id, saved := s.save(env, logger)

	recipient, online := s.hub.Lookup(env.Recipient)
	if !online {
		if saved {
			s.hub.Send(cl, ack("%s is offline. msg saved!", env.Recipient))
		}
		return
	}

	data, ok := encodeOrLog(env, logger)
	if !ok {
		return
	}
	if !s.hub.Send(recipient, data) {
		if saved {
			s.hub.Send(cl, ack("%s is offline. msg saved!", env.Recipient))
		}
		return
	}
	if saved {
		s.markDelivered(id, logger)
	}
	s.hub.Send(cl, ack("Message delivered to %s", env.Recipient))
}

// handleTyping relays the signal to the recipient when one is named, or to
// the other members of the room. It is never echoed to the sender.
func (s *Server) handleTyping(cl *Client, env protocol.Envelope, logger *zap.Logger) {
	data, ok := encodeOrLog(env, logger)
	if !ok {
		return
	}
	if env.Recipient != "" {
		if recipient, online := s.hub.Lookup(env.Recipient); online && recipient != cl {
			s.hub.Send(recipient, data)
		}
		return
	}
	s.hub.Broadcast(env.Room, data, cl)
}

// deliverPending sends the private messages stored while cl was offline.
func (s *Server) deliverPending(cl *Client, logger *zap.Logger) {
	ctx, cancel := storeContext()
	recs, err := s.store.Undelivered(ctx, cl.username)
	cancel()
	if err != nil {
		logger.Warn("failed to load undelivered messages", zap.Error(err))
		return
	}

	for _, r := range recs {
		env := protocol.Envelope{
			Kind:      r.Kind,
			Content:   r.Content,
			Sender:    r.Sender,
			Recipient: r.Recipient,
			Room:      r.Room,
			Timestamp: protocol.FormatTimestamp(r.Timestamp),
		}
		data, ok := encodeOrLog(env, logger)
		if !ok {
			continue
		}
		if !s.hub.Send(cl, data) {
			return
		}
		s.markDelivered(r.ID, logger)
	}
	if len(recs) > 0 {
		logger.Info("delivered pending messages", zap.Int("count", len(recs)))
	}
}
