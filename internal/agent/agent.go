package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"sysmon-agent/internal/collector"
	"sysmon-agent/internal/config"
	"sysmon-agent/internal/model"
	"sysmon-agent/internal/stream"
	"sysmon-agent/internal/system"
)

// IdentityFunc resolves the identity of the host the agent runs on.
type IdentityFunc func(ctx context.Context) (model.DeviceIdentity, error)

// Deps are the host and sink bindings of an Agent.
type Deps struct {
	Sink     stream.Sink
	Sensors  collector.Sensors
	Identity IdentityFunc
}

type Agent struct {
	cfg      config.Config
	logger   *slog.Logger
	sink     stream.Sink
	sensors  collector.Sensors
	identity IdentityFunc
	health   *HealthStatus

	scheduler atomic.Pointer[collector.Scheduler]
	device    atomic.Pointer[model.DeviceIdentity]
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	sink, err := stream.NewSinkFromConfig(cfg, tlsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("stream sink: %w", err)
	}

	return NewWithDeps(cfg, logger, Deps{
		Sink:     sink,
		Sensors:  system.NewHostSensors(),
		Identity: system.ResolveIdentity,
	}), nil
}

func NewWithDeps(cfg config.Config, logger *slog.Logger, deps Deps) *Agent {
	health := NewHealthStatus()
	return &Agent{
		cfg:      cfg,
		logger:   logger,
		sink:     &healthSink{sink: deps.Sink, health: health},
		sensors:  deps.Sensors,
		identity: deps.Identity,
		health:   health,
	}
}

// Run blocks until the collection loop stops. Startup failures are returned;
// a stop requested through ctx or a signal returns nil.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting sysmon-agent", "version", a.cfg.AgentVersion, "sink_mode", a.cfg.SinkMode, "endpoint", a.cfg.Endpoint())
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}
	stopping := runCtx.Err() != nil

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	a.shutdown(shutdownCtx)

	if runErr != nil && !stopping {
		a.logger.Error("sysmon-agent failed", "error", runErr)
		return runErr
	}
	a.logger.Info("sysmon-agent stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}

// healthSink mirrors every sink outcome into HealthStatus.
type healthSink struct {
	sink   stream.Sink
	health *HealthStatus
}

func (s *healthSink) Ping(ctx context.Context) error {
	err := s.sink.Ping(ctx)
	s.health.SetSinkConnected(err == nil)
	return err
}

func (s *healthSink) Append(ctx context.Context, r model.Record) error {
	err := s.sink.Append(ctx, r)
	if err != nil {
		s.health.SetSinkConnected(false)
		return err
	}
	s.health.SetSinkConnected(true)
	if r.RecordType() == model.RecordTypeMetric {
		s.health.MarkSample(r.RecordTime())
	}
	return nil
}

func (s *healthSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}
