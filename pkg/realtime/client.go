package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chatsync/pkg/logger"
	"chatsync/pkg/telemetry"
)

const (
	writeWait           = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultMaxFrameSize = 1 << 20
	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 30 * time.Second
)

type Config struct {
	// URL is the websocket base URL, e.g. wss://chat.example.com.
	URL    string
	APIKey string
	Token  string
	UserID string

	MaxFrameSize int64
	PongWait     time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	Dialer  *websocket.Dialer
	Metrics *telemetry.Metrics
}

func (c Config) withDefaults() Config {
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = defaultMaxFrameSize
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = defaultReconnectMin
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = defaultReconnectMax
		if c.ReconnectMax < c.ReconnectMin {
			c.ReconnectMax = c.ReconnectMin
		}
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	return c
}

// Handler receives every text frame in arrival order. Returning an error
// drops the connection and reconnects.
type Handler func(ctx context.Context, frame []byte) error

// Client keeps a realtime connection open and feeds its frames to a Handler.
type Client struct {
	cfg      Config
	handler  Handler
	attempts atomic.Int64
	frames   atomic.Int64
}

func New(cfg Config, handler Handler) *Client {
	return &Client{cfg: cfg.withDefaults(), handler: handler}
}

// ConnectURL builds the connect endpoint with credentials in the query.
func (c *Client) ConnectURL() (string, error) {
	base := strings.TrimRight(c.cfg.URL, "/")
	u, err := url.Parse(base + "/connect")
	if err != nil {
		return "", fmt.Errorf("realtime url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("realtime url scheme %q, want ws or wss", u.Scheme)
	}
	details, err := json.Marshal(map[string]any{
		"user_id":                         c.cfg.UserID,
		"user_details":                    map[string]string{"id": c.cfg.UserID},
		"server_determines_connection_id": true,
	})
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("json", string(details))
	q.Set("api_key", c.cfg.APIKey)
	q.Set("authorization", c.cfg.Token)
	q.Set("stream-auth-type", "jwt")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run connects and reconnects with capped exponential backoff until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin
	for {
		start := time.Now()
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// a connection that stayed up for a while resets the backoff
		if time.Since(start) > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMin
		}
		logger.Warn("realtime_disconnected", "error", err, "retry_in", backoff)
		c.cfg.Metrics.IncReconnects()

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	target, err := c.ConnectURL()
	if err != nil {
		return err
	}
	c.attempts.Add(1)
	conn, resp, err := c.cfg.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial realtime: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial realtime: %w", err)
	}
	logger.Info("realtime_connected", "url", c.cfg.URL, "user_id", c.cfg.UserID)
	c.cfg.Metrics.SetConnected(true)
	defer c.cfg.Metrics.SetConnected(false)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		c.pingLoop(connCtx, conn)
	}()
	defer func() {
		cancel()
		<-pumpDone
		conn.Close()
	}()

	pongWait := c.cfg.PongWait
	conn.SetReadLimit(c.cfg.MaxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("realtime_read_failed", "error", err)
			}
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		c.frames.Add(1)
		if err := c.handler(ctx, raw); err != nil {
			return fmt.Errorf("handle frame: %w", err)
		}
	}
}

// pingLoop pings the server and, once ctx ends, closes the connection
// politely so the blocked read returns.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("realtime_ping_failed", "error", err)
				conn.Close()
				return
			}
		}
	}
}

// Stats returns dial attempts and frames received since creation.
func (c *Client) Stats() (attempts, frames int64) {
	return c.attempts.Load(), c.frames.Load()
}
