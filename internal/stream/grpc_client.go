package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"sysmon-agent/internal/model"
)

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// appendAck is the server reply to one record. The call status, not the
// body, decides whether the record was stored.
type appendAck struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// GRPCClient sends every record as an Envelope in its own unary call.
type GRPCClient struct {
	mu sync.Mutex

	logger      *slog.Logger
	addr        string
	tlsConfig   *tls.Config
	token       string
	method      string
	dialOptions []grpc.DialOption
	conn        *grpc.ClientConn
	dialTimeout time.Duration
}

func NewGRPCClient(addr string, tlsCfg *tls.Config, token, method string, dialTimeout time.Duration, logger *slog.Logger, opts ...grpc.DialOption) *GRPCClient {
	encoding.RegisterCodec(jsonCodec{})
	if dialTimeout <= 0 {
		dialTimeout = 8 * time.Second
	}
	return &GRPCClient{
		logger:      logger,
		addr:        addr,
		tlsConfig:   tlsCfg,
		token:       token,
		method:      method,
		dialOptions: opts,
		dialTimeout: dialTimeout,
	}
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnLocked(ctx)
}

// Append makes one call and returns the server status for the record.
func (c *GRPCClient) Append(ctx context.Context, r model.Record) error {
	if err := checkRecord(r); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		if err := c.ensureConnLocked(ctx); err != nil {
			c.mu.Unlock()
			return err
		}
		conn = c.conn
	}
	c.mu.Unlock()

	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	var ack appendAck
	if err := conn.Invoke(ctx, c.method, model.NewEnvelope(r), &ack); err != nil {
		c.logger.Debug("grpc append rejected", "type", r.RecordType(), "code", status.Code(err).String(), "error", err)
		return fmt.Errorf("append %s: %w", r.RecordType(), err)
	}
	return nil
}

func (c *GRPCClient) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *GRPCClient) ensureConnLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	var creds credentials.TransportCredentials
	if c.tlsConfig != nil {
		creds = credentials.NewTLS(c.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
	}, c.dialOptions...)

	conn, err := grpc.DialContext(dialCtx, c.addr, opts...)
	if err != nil {
		return fmt.Errorf("grpc dial %s: %w", c.addr, err)
	}
	c.conn = conn
	c.logger.Debug("grpc sink connected", "addr", c.addr)
	return nil
}
