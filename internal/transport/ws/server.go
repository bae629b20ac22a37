package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
	"github.com/xiaot623/gogo/streamchat/internal/repository"
	"github.com/xiaot623/gogo/streamchat/internal/session"
)

// Options holds connection settings.
type Options struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

// SessionFactory builds the engine for a new connection.
type SessionFactory func() *session.Session

// Server handles WebSocket connections.
type Server struct {
	opts       Options
	hub        *Hub
	newSession SessionFactory
	store      repository.Store
	debouncer  *repository.Debouncer
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	wg         sync.WaitGroup
}

// NewServer creates a new WebSocket server. store and debouncer may be nil
// to disable persistence.
func NewServer(opts Options, h *Hub, newSession SessionFactory, store repository.Store, debouncer *repository.Debouncer, logger *zap.Logger) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 65536
	}
	return &Server{
		opts:       opts,
		hub:        h,
		newSession: newSession,
		store:      store,
		debouncer:  debouncer,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
}

// client binds one connection to its session engine.
type client struct {
	conn        *Connection
	sess        *session.Session
	unsubscribe func()

	mu             sync.Mutex
	conversationID string
}

func (c *client) conversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

func (c *client) setConversation(id string) {
	c.mu.Lock()
	c.conversationID = id
	c.mu.Unlock()
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)
	ws.SetReadLimit(s.opts.MaxMessageSize)

	cl := &client{
		conn:           conn,
		sess:           s.newSession(),
		conversationID: repository.NewConversation(time.Now()).ID,
	}
	cl.unsubscribe = cl.sess.Subscribe(func(snap session.Snapshot) {
		s.publish(cl, snap)
		s.persist(cl, snap)
	})
	s.publish(cl, cl.sess.Snapshot())

	s.wg.Add(2)
	go s.writePump(conn)
	go s.readPump(cl)

	s.logger.Debug("connection registered", zap.String("connection_id", conn.ID))
	return nil
}

// Wait blocks until all connection goroutines have exited.
func (s *Server) Wait() {
	s.wg.Wait()
}

// readPump reads frames until the connection closes, then tears the
// session down.
func (s *Server) readPump(cl *client) {
	conn := cl.conn
	defer func() {
		cl.unsubscribe()
		cl.sess.Close()
		s.saveNow(cl)
		s.hub.Unregister(conn)
		conn.Close()
		s.wg.Done()
		s.logger.Debug("connection unregistered", zap.String("connection_id", conn.ID))
	}()

	conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", zap.Error(err))
			}
			return
		}
		s.handleFrame(cl, message)
	}
}

// writePump writes queued frames and keeps the connection alive.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
		s.wg.Done()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debug("failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame dispatches a client frame to the session.
func (s *Server) handleFrame(cl *client, data []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError(cl.conn, ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	sess := cl.sess
	switch frame.Type {
	case TypeSend:
		if !sess.SendMessage(frame.Text) {
			s.sendError(cl.conn, ErrorCodeRejected, "message is empty or a reply is still streaming")
		}
	case TypeStop:
		sess.Stop()
	case TypeRegenerate:
		var ok bool
		if frame.MessageID != "" {
			ok = sess.RegenerateFrom(frame.MessageID)
		} else {
			ok = sess.Regenerate()
		}
		if !ok {
			s.sendError(cl.conn, ErrorCodeRejected, "nothing to regenerate")
		}
	case TypeRetry:
		if !sess.RetryLast() {
			s.sendError(cl.conn, ErrorCodeRejected, "nothing to retry")
		}
	case TypeReset:
		s.saveNow(cl)
		cl.setConversation(repository.NewConversation(time.Now()).ID)
		sess.Reset()
	case TypeTrim:
		if !sess.Trim(frame.Keep) {
			s.sendError(cl.conn, ErrorCodeRejected, "nothing to trim")
		}
	case TypeDismiss:
		sess.Dismiss()
	case TypeModel:
		if frame.Model == "" {
			s.sendError(cl.conn, ErrorCodeInvalidMessage, "model is required")
			return
		}
		sess.SetModel(frame.Model)
	case TypeLoad:
		s.handleLoad(cl, frame.ConversationID)
	case TypeOnline:
		if frame.Online == nil {
			s.sendError(cl.conn, ErrorCodeInvalidMessage, "online is required")
			return
		}
		sess.SetOnline(*frame.Online)
	default:
		s.sendError(cl.conn, ErrorCodeInvalidMessage, "unknown message type: "+frame.Type)
	}
}

func (s *Server) handleLoad(cl *client, id string) {
	if id == "" {
		s.sendError(cl.conn, ErrorCodeInvalidMessage, "conversation_id is required")
		return
	}
	if s.store == nil {
		s.sendError(cl.conn, ErrorCodeNotFound, "persistence is disabled")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load conversation", zap.String("conversation_id", id), zap.Error(err))
		s.sendError(cl.conn, ErrorCodeInternalError, "failed to load conversation")
		return
	}
	if conv == nil {
		s.sendError(cl.conn, ErrorCodeNotFound, "conversation not found")
		return
	}

	s.saveNow(cl)
	cl.setConversation(conv.ID)
	cl.sess.Load(conv.Messages)
}

func (s *Server) publish(cl *client, snap session.Snapshot) {
	frame := SnapshotFrame{
		Type:           TypeSnapshot,
		Ts:             time.Now().UnixMilli(),
		ConversationID: cl.conversation(),
		State:          snap,
	}
	if err := cl.conn.EnqueueJSON(frame); err != nil {
		s.logger.Debug("dropped snapshot", zap.String("connection_id", cl.conn.ID), zap.Error(err))
	}
}

// persist schedules a save once the conversation is at rest.
func (s *Server) persist(cl *client, snap session.Snapshot) {
	if s.debouncer == nil || snap.Status.Active() {
		return
	}
	msgs := cl.sess.Messages()
	if len(msgs) == 0 {
		return
	}
	s.debouncer.Save(domain.Conversation{
		ID:        cl.conversation(),
		Title:     domain.TitleFor(msgs),
		UpdatedAt: time.Now(),
		Messages:  msgs,
	})
}

// saveNow writes the current conversation before it is replaced.
func (s *Server) saveNow(cl *client) {
	if s.debouncer == nil {
		return
	}
	msgs := cl.sess.Messages()
	if len(msgs) > 0 {
		s.debouncer.Save(domain.Conversation{
			ID:        cl.conversation(),
			Title:     domain.TitleFor(msgs),
			UpdatedAt: time.Now(),
			Messages:  msgs,
		})
	}
	s.debouncer.Flush(context.Background())
}

// sendError sends an error frame to a connection.
func (s *Server) sendError(conn *Connection, code, message string) {
	errFrame := ErrorFrame{
		Type:    TypeError,
		Ts:      time.Now().UnixMilli(),
		Code:    code,
		Message: message,
	}
	if err := conn.EnqueueJSON(errFrame); err != nil {
		s.logger.Debug("dropped error frame", zap.String("connection_id", conn.ID), zap.Error(err))
	}
}
