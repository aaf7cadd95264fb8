// Package ws streams session events to WebSocket viewers.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/config"
	"github.com/xiaot623/gogo/researcher/internal/domain"
	"github.com/xiaot623/gogo/researcher/internal/session"
)

const (
	pingText = "ping"
	pongText = "pong"

	closeReasonFinished = "research finished"
	closeReasonSlow     = "subscriber too slow"
	closeReasonEvicted  = "session expired"
)

// Sessions hands out session subscriptions.
type Sessions interface {
	Subscribe(sessionID string) (domain.TableSnapshot, *session.Subscription, error)
}

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	sessions Sessions
	upgrader websocket.Upgrader
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, sessions Sessions, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		logger:   logger.Named("ws"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// RegisterRoutes registers the viewer endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/research/:session_id", s.HandleWebSocket)
}

// HandleWebSocket subscribes to the session and upgrades the connection.
// Unknown sessions are rejected before the upgrade.
func (s *Server) HandleWebSocket(c echo.Context) error {
	sessionID := c.Param("session_id")
	snap, sub, err := s.sessions.Subscribe(sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: "Session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: err.Error()})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		sub.Close()
		s.logger.Warn("failed to upgrade websocket", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}

	conn := newConnection(ws, sessionID)
	ws.SetReadLimit(s.cfg.MaxMessageSize)
	s.logger.Debug("viewer connected", zap.String("session_id", sessionID), zap.String("conn_id", conn.ID))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.writePump(conn, snap, sub)
	}()
	go func() {
		defer s.wg.Done()
		s.readPump(conn)
	}()

	return nil
}

// Wait blocks until every viewer connection has been torn down or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump answers text pings and keeps the read deadline alive.
// Other inbound messages are ignored.
func (s *Server) readPump(conn *Connection) {
	defer conn.markDone()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		msgType, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug("websocket read failed", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		if msgType == websocket.TextMessage && strings.TrimSpace(string(message)) == pingText {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(pongText), s.cfg.WriteTimeout); err != nil {
				return
			}
		}
	}
}

// writePump sends the initial state, then every event of the subscription
// until the terminal event, and a heartbeat every interval.
func (s *Server) writePump(conn *Connection, snap domain.TableSnapshot, sub *session.Subscription) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
		s.logger.Debug("viewer disconnected", zap.String("session_id", conn.SessionID), zap.String("conn_id", conn.ID))
	}()

	if err := conn.WriteJSON(domain.NewInitialState(snap), s.cfg.WriteTimeout); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				s.closeStream(conn, sub.Err())
				return
			}
			if err := conn.WriteJSON(ev, s.cfg.WriteTimeout); err != nil {
				s.logger.Debug("failed to write event", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}
			if ev.Type.IsTerminal() {
				_ = conn.WriteClose(websocket.CloseNormalClosure, closeReasonFinished, s.cfg.WriteTimeout)
				return
			}

		case <-ticker.C:
			hb := domain.Event{Type: domain.EventTypeHeartbeat, Ts: time.Now().UnixMilli()}
			if err := conn.WriteJSON(hb, s.cfg.WriteTimeout); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil, s.cfg.WriteTimeout); err != nil {
				return
			}

		case <-conn.done:
			return
		}
	}
}

func (s *Server) closeStream(conn *Connection, reason error) {
	code, text := websocket.CloseNormalClosure, closeReasonFinished
	switch {
	case errors.Is(reason, session.ErrSlowConsumer):
		code, text = websocket.ClosePolicyViolation, closeReasonSlow
		s.logger.Info("dropped slow viewer", zap.String("session_id", conn.SessionID), zap.String("conn_id", conn.ID))
	case errors.Is(reason, session.ErrBusClosed):
		code, text = websocket.CloseGoingAway, closeReasonEvicted
	}
	_ = conn.WriteClose(code, text, s.cfg.WriteTimeout)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
