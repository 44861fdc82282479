package collector

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/tilinna/clock"

	"sysmon-agent/internal/model"
	"sysmon-agent/internal/stream"
)

type State int32

const (
	StateIdle State = iota
	StateSampling
	StateNormalizing
	StatePersisting
	StateBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateNormalizing:
		return "normalizing"
	case StatePersisting:
		return "persisting"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Sampler interface {
	SampleOnce(ctx context.Context) (model.RawSample, error)
}

type Stats struct {
	CyclesOK            uint64
	CyclesFailed        uint64
	ConsecutiveFailures uint64
	LastSampleAt        time.Time
}

// Scheduler runs the collection loop: one cycle at a time, a fixed delay
// after every successful cycle and the same fixed backoff after every failed
// one. A failed cycle drops its sample.
type Scheduler struct {
	logger        *slog.Logger
	sampler       Sampler
	identity      model.DeviceIdentity
	sink          stream.Sink
	interval      time.Duration
	errorBackoff  time.Duration
	appendTimeout time.Duration

	state        atomic.Int32
	cyclesOK     atomic.Uint64
	cyclesFailed atomic.Uint64
	consecutive  atomic.Uint64
	lastSample   atomic.Int64
}

func NewScheduler(
	logger *slog.Logger,
	sampler Sampler,
	identity model.DeviceIdentity,
	sink stream.Sink,
	interval, errorBackoff, appendTimeout time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if errorBackoff <= 0 {
		errorBackoff = interval
	}
	if appendTimeout <= 0 {
		appendTimeout = 10 * time.Second
	}
	return &Scheduler{
		logger:        logger,
		sampler:       sampler,
		identity:      identity,
		sink:          sink,
		interval:      interval,
		errorBackoff:  errorBackoff,
		appendTimeout: appendTimeout,
	}
}

// Run blocks until ctx is cancelled. Recoverable errors never escape; the
// returned error is always nil.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(StateStopped)
	s.logger.Info("collection started", "device_id", s.identity.DeviceID, "interval", s.interval, "error_backoff", s.errorBackoff)

	for {
		if ctx.Err() != nil {
			s.logger.Info("collection stopped")
			return nil
		}

		delay := s.interval
		step, err := s.runCycle(ctx)
		switch {
		case err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled):
			s.logger.Info("collection stopped", "abandoned_step", step)
			return nil
		case err != nil:
			s.setState(StateBackoff)
			s.cyclesFailed.Add(1)
			s.consecutive.Add(1)
			s.logger.Error("cycle failed", "step", step, "error", err, "retry_in", s.errorBackoff)
			delay = s.errorBackoff
		default:
			s.setState(StateIdle)
		}

		if !s.sleepWithContext(ctx, delay) {
			s.logger.Info("collection stopped")
			return nil
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) (string, error) {
	at := clock.Now(ctx)

	s.setState(StateSampling)
	raw, err := s.sampler.SampleOnce(ctx)
	if err != nil {
		return "sample", err
	}

	s.setState(StateNormalizing)
	m := Normalize(raw, s.identity, at)

	s.setState(StatePersisting)
	if err := s.persist(ctx, m); err != nil {
		return "persist", err
	}

	s.cyclesOK.Add(1)
	s.consecutive.Store(0)
	s.lastSample.Store(m.Timestamp.UnixNano())
	s.logger.Info("sample persisted",
		"timestamp", m.Timestamp.Format(time.RFC3339),
		"cpu_percent", round2(m.AvgCPUPercent),
		"ram_percent", round2(m.RAMUsedPercent),
		"battery_percent", optional(m.BatteryPercent),
		"plugged", optional(m.BatteryPlugged),
	)
	return "", nil
}

// persist is detached from cancellation so a stop request never tears an
// in-flight append; appendTimeout still bounds it.
func (s *Scheduler) persist(ctx context.Context, m model.MetricSample) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.appendTimeout)
	defer cancel()
	return s.sink.Append(pctx, m)
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		CyclesOK:            s.cyclesOK.Load(),
		CyclesFailed:        s.cyclesFailed.Load(),
		ConsecutiveFailures: s.consecutive.Load(),
	}
	if v := s.lastSample.Load(); v > 0 {
		st.LastSampleAt = time.Unix(0, v).UTC()
	}
	return st
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Scheduler) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func optional[T any](v *T) any {
	if v == nil {
		return "n/a"
	}
	return *v
}
