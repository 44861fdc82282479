package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tilinna/clock"
	"golang.org/x/sync/errgroup"

	"sysmon-agent/internal/collector"
	"sysmon-agent/internal/model"
)

func (a *Agent) run(ctx context.Context) error {
	id, err := a.identity(ctx)
	if err != nil {
		return fmt.Errorf("resolve device identity: %w", err)
	}
	a.device.Store(&id)
	a.logger.Info("device identity resolved",
		"device_id", id.DeviceID,
		"system", id.System,
		"release", id.Release,
		"machine", id.Machine,
		"cpu_count", id.CPUCount,
		"total_ram_gb", id.TotalRAMGB,
	)

	if err := a.verifySink(ctx); err != nil {
		return err
	}

	var probe net.Listener
	if strings.TrimSpace(a.cfg.ProbeListenAddr) != "" {
		probe, err = a.listenProbe()
		if err != nil {
			return err
		}
	}

	session := model.SessionStart{
		SystemInfo:   id,
		StartTime:    clock.Now(ctx).UTC(),
		SessionID:    uuid.NewString(),
		AgentVersion: a.cfg.AgentVersion,
	}
	appendCtx, cancel := context.WithTimeout(ctx, a.cfg.AppendTimeout)
	err = a.sink.Append(appendCtx, session)
	cancel()
	if err != nil {
		if probe != nil {
			_ = probe.Close()
		}
		return fmt.Errorf("append session start: %w", err)
	}
	a.logger.Info("session started", "session_id", session.SessionID, "start_time", session.StartTime.Format(time.RFC3339))

	sampler := collector.NewSampleCollector(a.logger, a.sensors, a.cfg.DiskPath, a.cfg.CPUSampleWindow, a.cfg.SensorTimeout)
	sched := collector.NewScheduler(a.logger, sampler, id, a.sink, a.cfg.SampleInterval, a.cfg.ErrorBackoff, a.cfg.AppendTimeout)
	a.scheduler.Store(sched)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	if probe != nil {
		g.Go(func() error {
			a.serveProbe(gctx, probe)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) verifySink(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()
	if err := a.sink.Ping(pingCtx); err != nil {
		a.logger.Error("sink connection failed", "sink_mode", a.cfg.SinkMode, "endpoint", a.cfg.Endpoint(), "error", err)
		return fmt.Errorf("verify sink connectivity: %w", err)
	}
	a.logger.Info("sink connected", "sink_mode", a.cfg.SinkMode, "endpoint", a.cfg.Endpoint())
	return nil
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			status := "ok"
			if !a.health.SinkConnected() {
				status = "degraded"
			}
			a.logHealth(ctx, status)
		}
	}
}

func (a *Agent) logHealth(ctx context.Context, status string) {
	a.logger.Log(ctx, slog.LevelDebug, "agent health", "status", status, "snapshot", a.health.Snapshot(a.scheduler.Load()))
}

func (a *Agent) shutdown(ctx context.Context) {
	if err := a.sink.Close(ctx); err != nil {
		a.logger.Warn("sink close failed", "error", err)
	}
	a.health.SetSinkConnected(false)
}
