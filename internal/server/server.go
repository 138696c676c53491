// Package server is the reference chat server the client talks to.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/omochice/chit-chat/internal/chat"
	"github.com/omochice/chit-chat/internal/store"
	"github.com/omochice/chit-chat/internal/store/memory"
	"github.com/omochice/chit-chat/internal/transport/gorilla"
	"github.com/omochice/chit-chat/pkg/protocol"
)

const (
	DefaultHistoryLimit = 20
	DefaultSendQueue    = 256
	storeTimeout        = 5 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Store        store.Store
	HistoryLimit int
	SendQueue    int
	Logger       *zap.Logger
	Now          func() time.Time
}

// Server serves /ws and /history.
type Server struct {
	hub      *Hub
	store    store.Store
	limit    int
	queue    int
	logger   *zap.Logger
	now      func() time.Time
	engine   *gin.Engine
	upgrader websocket.Upgrader

	wg sync.WaitGroup
}

// New creates a Server. A nil Store means an in-memory one.
func New(opts Options) *Server {
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = DefaultSendQueue
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		hub:    NewHub(opts.Logger),
		store:  opts.Store,
		limit:  opts.HistoryLimit,
		queue:  opts.SendQueue,
		logger: opts.Logger,
		now:    opts.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(opts.Logger))
	engine.GET("/ws", s.handleWS)
	engine.GET("/history", s.handleHistory)
	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub returns the connection registry.
func (s *Server) Hub() *Hub { return s.hub }

// Serve accepts connections on ln until ctx is done, then shuts down and
// waits for every connection handler to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("server started", zap.String("addr", ln.Addr().String()))

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown incomplete", zap.Error(err))
		}
		serveErr = <-errCh
	}

	// Hijacked websocket connections are not tracked by http.Server.
	s.CloseConnections()
	s.logger.Info("server stopped")

	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}

// CloseConnections closes every websocket connection and waits for their
// handlers to return. New connections are refused afterwards.
func (s *Server) CloseConnections() {
	s.hub.CloseAll()
	s.wg.Wait()
}

func (s *Server) handleWS(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.String(http.StatusBadRequest, "Username is required")
		return
	}
	room := c.Query("room")
	if room == "" {
		room = string(chat.DefaultRoom)
	}

	// Added before the upgrade: until then http.Server.Shutdown still waits
	// for this request.
	s.wg.Add(1)
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	cl := newClient(username, room, gorilla.NewConn(ws), s.queue)
	logger := s.logger.With(
		zap.String("conn_id", cl.id),
		zap.String("username", username),
		zap.String("room", room),
	)

	prev, ok := s.hub.Register(cl)
	if !ok {
		logger.Info("server shutting down, connection refused")
		_ = cl.conn.Close()
		return
	}
	if prev != nil {
		logger.Info("replacing earlier connection", zap.String("replaced", prev.id))
		_ = prev.conn.Close()
	}
	logger.Info("client connected", zap.String("remote", cl.conn.RemoteAddr()))

	ctx, cancel := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		cl.writeLoop(ctx, logger)
	}()

	defer func() {
		s.hub.Unregister(cl)
		cl.closeQueue()
		<-writerDone
		cancel()
		_ = cl.conn.Close()
		logger.Info("client disconnected")
	}()

	s.deliverPending(cl, logger)

	for {
		data, err := cl.conn.Read(ctx)
		if err != nil {
			logger.Debug("read ended", zap.Error(err))
			return
		}
		s.route(cl, data, logger)
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")

	if c.Query("username") == "" {
		c.String(http.StatusBadRequest, "Username is required")
		return
	}
	room := c.Query("room")
	if room == "" {
		room = string(chat.DefaultRoom)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	recs, err := s.store.Recent(ctx, room, s.limit)
	if err != nil {
		s.logger.Error("history query failed", zap.String("room", room), zap.Error(err))
		c.String(http.StatusInternalServerError, "Database error")
		return
	}

	out := make([]protocol.HistoryRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, historyRecord(r))
	}
	c.JSON(http.StatusOK, out)
}

func historyRecord(r store.Record) protocol.HistoryRecord {
	return protocol.HistoryRecord{
		ID:        r.ID,
		Kind:      r.Kind,
		Content:   r.Content,
		Sender:    r.Sender,
		Recipient: r.Recipient,
		Room:      r.Room,
		Timestamp: protocol.FormatTimestamp(r.Timestamp),
		Delivered: r.Delivered,
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

func encodeOrLog(env protocol.Envelope, logger *zap.Logger) ([]byte, bool) {
	data, err := protocol.Encode(env)
	if err != nil {
		logger.Error("encode envelope", zap.Stringer("kind", env.Kind), zap.Error(err))
		return nil, false
	}
	return data, true
}

func ack(format string, args ...any) []byte {
	return []byte(fmt.Sprintf(format, args...))
}
