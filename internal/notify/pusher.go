// Package notify delivers realtime deposit events to chats. It speaks the
// Pusher channel protocol over a raw websocket: connect, capture the
// socket_id, authorize the private channel against the wallet API, subscribe,
// and answer pings. Delivery failures are logged and never abort a
// conversation.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/themaden/copperx-telegram-bot/core/logger"
)

const (
	handshakeTimeout   = 10 * time.Second
	establishedTimeout = 10 * time.Second
	pingInterval       = 2 * time.Minute
	writeTimeout       = 5 * time.Second
)

// AuthorizeFunc signs a private-channel subscription for the given socket.
// It returns the auth string the server expects in pusher:subscribe.
type AuthorizeFunc func(ctx context.Context, socketID, channel string) (string, error)

// EventFunc receives every non-protocol event seen on the connection. The
// data argument is the raw event payload, which Pusher double-encodes as a
// JSON string.
type EventFunc func(channel, event string, data []byte)

// frame is the Pusher wire envelope. Data arrives as a JSON-encoded string
// for protocol events and for most application events.
type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type connectionEstablished struct {
	SocketID string `json:"socket_id"`
}

// Client is a single Pusher websocket connection carrying one private
// channel subscription.
type Client struct {
	url       string
	authorize AuthorizeFunc
	onEvent   EventFunc

	mu       sync.Mutex
	conn     *websocket.Conn
	done     chan struct{}
	socketID string
}

// URL builds the Pusher websocket endpoint for an app key and cluster.
func URL(key, cluster string) string {
	return fmt.Sprintf("wss://ws-%s.pusher.com/app/%s?protocol=7&client=go&version=1.0", cluster, key)
}

// NewClient builds an unconnected client. onEvent may be nil.
func NewClient(url string, authorize AuthorizeFunc, onEvent EventFunc) *Client {
	return &Client{
		url:       url,
		authorize: authorize,
		onEvent:   onEvent,
	}
}

// Dial connects and waits for pusher:connection_established to learn the
// socket_id, then starts the reader and heartbeat goroutines.
func (c *Client) Dial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("notify: dial: %w", err)
	}

	// The first frame must announce the socket id.
	_ = conn.SetReadDeadline(time.Now().Add(establishedTimeout))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		conn.Close()
		return fmt.Errorf("notify: read handshake: %w", err)
	}
	if f.Event != "pusher:connection_established" {
		conn.Close()
		return fmt.Errorf("notify: unexpected handshake event %q", f.Event)
	}
	var est connectionEstablished
	if err := unmarshalData(f.Data, &est); err != nil || est.SocketID == "" {
		conn.Close()
		return fmt.Errorf("notify: malformed handshake payload")
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.conn = conn
	c.socketID = est.SocketID
	c.done = make(chan struct{})

	go c.readLoop(conn, c.done)
	go c.heartbeat(conn, c.done)

	logger.Debug(logger.Background(), "notify", "connected",
		slog.String("socket_id", est.SocketID),
	)
	return nil
}

// Subscribe authorizes and joins a private channel.
func (c *Client) Subscribe(ctx context.Context, channel string) error {
	c.mu.Lock()
	conn := c.conn
	socketID := c.socketID
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("notify: not connected")
	}

	auth, err := c.authorize(ctx, socketID, channel)
	if err != nil {
		return fmt.Errorf("notify: authorize %s: %w", channel, err)
	}

	return c.writeJSON(map[string]any{
		"event": "pusher:subscribe",
		"data": map[string]string{
			"channel": channel,
			"auth":    auth,
		},
	})
}

// Unsubscribe leaves a channel without closing the connection.
func (c *Client) Unsubscribe(channel string) error {
	return c.writeJSON(map[string]any{
		"event": "pusher:unsubscribe",
		"data": map[string]string{
			"channel": channel,
		},
	})
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	close(c.done)
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout),
	)
	c.conn.Close()
	c.conn = nil
	c.socketID = ""
}

func (c *Client) writeJSON(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("notify: not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case <-done:
			default:
				logger.Warn(logger.Background(), "notify", "read.fail",
					slog.String("err", err.Error()),
				)
			}
			return
		}

		switch f.Event {
		case "pusher:ping":
			_ = c.writeJSON(map[string]any{"event": "pusher:pong", "data": "{}"})
		case "pusher:pong", "pusher_internal:subscription_succeeded":
			// protocol chatter
		case "pusher:error":
			logger.Warn(logger.Background(), "notify", "server.error",
				slog.String("data", string(f.Data)),
			)
		default:
			if c.onEvent != nil {
				c.onEvent(f.Channel, f.Event, decodeData(f.Data))
			}
		}
	}
}

func (c *Client) heartbeat(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = c.writeJSON(map[string]any{"event": "pusher:ping", "data": "{}"})
		}
	}
}

// unmarshalData handles the double encoding: data is usually a JSON string
// containing JSON, but some servers send the object inline.
func unmarshalData(raw json.RawMessage, out any) error {
	return json.Unmarshal(decodeData(raw), out)
}

func decodeData(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return raw
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil {
			return []byte(inner)
		}
	}
	return raw
}
