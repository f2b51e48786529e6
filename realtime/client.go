// Package realtime subscribes to message inserts from an external sync feed
// so sessions opened on several clients stay in step. Records arriving here
// are already durable; they are merged into local state only.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"pocketsocrates/chat"
	"pocketsocrates/core"
)

const (
	defaultHeartbeatInterval = 25 * time.Second
	writeTimeout             = 10 * time.Second
)

// ClientConfig configures the realtime subscriber.
type ClientConfig struct {
	ConnectURL        string        `json:"connect_url"`
	Table             string        `json:"table"`
	HeartbeatInterval time.Duration `json:"-"`
	Logger            *core.Logger  `json:"-"`
}

// Client is the outward WebSocket subscriber for message inserts.
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	logger *core.Logger

	// OnInsert is called for every message insert received on the feed.
	OnInsert func(sessionID string, msg chat.Message)

	done chan struct{}
	once sync.Once
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Table == "" {
		cfg.Table = "messages"
	}
	if cfg.Logger == nil {
		cfg.Logger = core.GetLogger()
	}
	return &Client{
		config: cfg,
		logger: cfg.Logger.With(map[string]interface{}{"component": "realtime"}),
		done:   make(chan struct{}),
	}
}

type envelope struct {
	Type    string `json:"type"`
	Table   string `json:"table,omitempty"`
	Event   string `json:"event,omitempty"`
	Record  *record `json:"record,omitempty"`
	Channel string  `json:"channel,omitempty"`
}

type record struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscribe dials the feed, registers for insert notifications and starts
// the read and heartbeat loops. Cancelling the context closes the client.
func (c *Client) Subscribe(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.config.ConnectURL, nil)
	if err != nil {
		c.cancel()
		return fmt.Errorf("realtime: dial %q: %w", c.config.ConnectURL, err)
	}
	c.conn = conn

	sub := envelope{Type: "subscribe", Table: c.config.Table, Event: "INSERT"}
	if err := c.write(sub); err != nil {
		conn.Close()
		c.cancel()
		return fmt.Errorf("realtime: subscribe: %w", err)
	}

	c.logger.With(map[string]interface{}{"url": c.config.ConnectURL, "table": c.config.Table}).Info("subscribed to realtime feed")

	go c.readLoop()
	go c.heartbeatLoop()
	return nil
}

// Wait blocks until the connection drops or the client is closed.
func (c *Client) Wait() {
	<-c.done
}

// Unsubscribe shuts the client down.
func (c *Client) Unsubscribe() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) write(env envelope) error {
	data, err := sonic.Marshal(env)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer func() {
		close(c.done)
		c.cancel()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.With(map[string]interface{}{"error": err}).Warn("realtime connection lost")
			}
			return
		}

		var env envelope
		if err := sonic.Unmarshal(data, &env); err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("invalid realtime message")
			continue
		}

		if env.Type != "insert" || env.Table != c.config.Table || env.Record == nil {
			continue
		}
		if c.OnInsert == nil {
			continue
		}
		c.OnInsert(env.Record.ChatID, chat.Message{
			ID:        env.Record.ID,
			Role:      core.Role(env.Record.Role),
			Content:   env.Record.Content,
			CreatedAt: env.Record.CreatedAt,
		})
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(envelope{Type: "heartbeat"}); err != nil {
				c.logger.With(map[string]interface{}{"error": err}).Warn("realtime heartbeat failed")
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
