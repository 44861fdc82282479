package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sysmon-agent/internal/model"
)

// WebSocketClient writes every record as one JSON Envelope text frame.
type WebSocketClient struct {
	mu sync.Mutex

	logger       *slog.Logger
	url          string
	token        string
	tlsConfig    *tls.Config
	writeTimeout time.Duration
	conn         *websocket.Conn
}

func NewWebSocketClient(url, token string, tlsCfg *tls.Config, writeTimeout time.Duration, logger *slog.Logger) *WebSocketClient {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WebSocketClient{
		logger:       logger,
		url:          url,
		token:        token,
		tlsConfig:    tlsCfg,
		writeTimeout: writeTimeout,
	}
}

func (c *WebSocketClient) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnLocked(ctx); err != nil {
		return err
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, c.deadline(ctx)); err != nil {
		c.dropLocked()
		return fmt.Errorf("websocket ping: %w", err)
	}
	return nil
}

func (c *WebSocketClient) Append(ctx context.Context, r model.Record) error {
	if err := checkRecord(r); err != nil {
		return err
	}
	payload, err := EncodeEnvelope(model.NewEnvelope(r))
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnLocked(ctx); err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(c.deadline(ctx))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Debug("websocket write failed, dropping connection", "error", err)
		c.dropLocked()
		return fmt.Errorf("write %s envelope: %w", r.RecordType(), err)
	}
	return nil
}

func (c *WebSocketClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, c.deadline(ctx))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *WebSocketClient) ensureConnLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	dialer := *websocket.DefaultDialer
	dialer.TLSClientConfig = c.tlsConfig
	conn, _, err := dialer.DialContext(ctx, c.url, h)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", c.url, err)
	}
	conn.SetReadLimit(1 << 20)
	c.conn = conn
	c.logger.Debug("websocket sink connected", "url", c.url)
	return nil
}

func (c *WebSocketClient) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *WebSocketClient) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.writeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}
