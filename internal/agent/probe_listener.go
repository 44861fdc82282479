package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"sysmon-agent/internal/agent/version"
)

// listenProbe binds the probe endpoint. It runs during startup so a bad
// address fails the agent before any record is written.
func (a *Agent) listenProbe() (net.Listener, error) {
	addr := strings.TrimSpace(a.cfg.ProbeListenAddr)
	if addr == "" {
		return nil, fmt.Errorf("empty probe listen address")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen probe endpoint %s: %w", addr, err)
	}
	a.logger.Info("probe endpoint listening", "addr", ln.Addr().String())
	return ln, nil
}

// serveProbe answers every connection with one JSON line and closes it. An
// accept failure disables the probe and leaves the collection loop running.
func (a *Agent) serveProbe(ctx context.Context, ln net.Listener) {
	defer func() { _ = ln.Close() }()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil || errors.Is(acceptErr, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(acceptErr, &ne) && ne.Timeout() {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			a.logger.Error("probe endpoint disabled", "addr", ln.Addr().String(), "error", acceptErr)
			return
		}
		a.answerProbe(ctx, conn)
	}
}

func (a *Agent) answerProbe(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	req := &version.GetVersionRequest{}
	if id := a.device.Load(); id != nil {
		req.DeviceID = id.DeviceID
	}
	resp := version.Get(ctx, a.cfg, req)
	resp.Health = a.health.Snapshot(a.scheduler.Load())

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		a.logger.Debug("probe write failed", "remote", conn.RemoteAddr().String(), "error", err)
	}
}
