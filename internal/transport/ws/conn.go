package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection is one viewer attached to a session.
// The reader and writer goroutines share it; writes are serialized.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn

	mu        sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(ws *websocket.Conn, sessionID string) *Connection {
	return &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Conn:      ws,
		done:      make(chan struct{}),
	}
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}

// WriteJSON encodes v and writes it as a text frame.
func (c *Connection) WriteJSON(v interface{}, timeout time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data, timeout)
}

// WriteClose sends a close frame with code and reason.
func (c *Connection) WriteClose(code int, reason string, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(timeout))
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// markDone signals the writer that the reader has stopped.
func (c *Connection) markDone() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Close closes the connection.
func (c *Connection) Close() error {
	c.markDone()
	return c.Conn.Close()
}
