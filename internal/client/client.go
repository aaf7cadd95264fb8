// Package client is a Go client for the research service API and its
// WebSocket event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// ErrStreamEvicted is returned by Watch when the server expired the session mid-stream.
var ErrStreamEvicted = errors.New("session expired while watching")

// Client talks to a research service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	// PingInterval is how often Watch sends a text ping. Zero disables pings.
	PingInterval time.Duration
}

// NewClient creates a new research service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer:       websocket.DefaultDialer,
		PingInterval: 25 * time.Second,
	}
}

// CreateResearch calls POST /api/research.
func (c *Client) CreateResearch(ctx context.Context, query string) (*domain.CreateResearchResponse, error) {
	body, err := json.Marshal(domain.CreateResearchRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal research request: %w", err)
	}

	var out domain.CreateResearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/research", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResearch calls GET /api/research/:session_id.
func (c *Client) GetResearch(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	var out domain.SessionSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/research/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelResearch calls DELETE /api/research/:session_id.
func (c *Client) CancelResearch(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	var out domain.SessionSnapshot
	if err := c.do(ctx, http.MethodDelete, "/api/research/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call research service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return domain.ErrNotFound
		}
		var errResp domain.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("research service error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("research service returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Watch streams a session's events to fn, starting with initial_state, until
// the terminal event, ctx is done or fn returns an error.
func (c *Client) Watch(ctx context.Context, sessionID string, fn func(domain.Event) error) error {
	wsURL, err := c.websocketURL(sessionID)
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return domain.ErrNotFound
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go c.keepAlive(ctx, conn, done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure):
				return nil
			case websocket.IsCloseError(err, websocket.CloseGoingAway):
				return ErrStreamEvicted
			case ctx.Err() != nil:
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage || string(data) == "pong" {
			continue
		}

		var ev domain.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// keepAlive sends text pings and closes the connection once ctx is done.
func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	var tick <-chan time.Time
	if c.PingInterval > 0 {
		ticker := time.NewTicker(c.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case <-tick:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

func (c *Client) websocketURL(sessionID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/research/" + url.PathEscape(sessionID)
	return u.String(), nil
}
