package stream

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"sysmon-agent/internal/config"
)

func NewSinkFromConfig(cfg config.Config, tlsCfg *tls.Config, logger *slog.Logger) (Sink, error) {
	switch cfg.SinkMode {
	case config.SinkModeMongo:
		sink, err := NewMongoSink(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, tlsCfg, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.SinkModeGRPC:
		return NewGRPCClient(cfg.BackendGRPCAddr, tlsCfg, cfg.BackendToken, cfg.GRPCAppendMethod, cfg.ConnectTimeout, logger), nil
	case config.SinkModeWebSocket:
		return NewWebSocketClient(cfg.BackendWSURL, cfg.BackendToken, tlsCfg, cfg.AppendTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported sink mode %q", cfg.SinkMode)
	}
}
