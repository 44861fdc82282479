package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sysmon-agent/internal/model"
	"sysmon-agent/internal/system"
)

// Sensors is the host capability the collector reads from.
type Sensors interface {
	CPUPerCore(ctx context.Context, window time.Duration) ([]float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	DiskPercent(ctx context.Context, path string) (float64, error)
	NetCounters(ctx context.Context) (model.NetCounters, error)
	Battery(ctx context.Context) (model.BatteryReading, bool, error)
}

// SampleCollector assembles one RawSample from Sensors. Every call blocks for
// at least cpuWindow and at most timeout.
type SampleCollector struct {
	logger    *slog.Logger
	sensors   Sensors
	diskPath  string
	cpuWindow time.Duration
	timeout   time.Duration
}

func NewSampleCollector(logger *slog.Logger, sensors Sensors, diskPath string, cpuWindow, timeout time.Duration) *SampleCollector {
	if cpuWindow <= 0 {
		cpuWindow = time.Second
	}
	if timeout <= cpuWindow {
		timeout = cpuWindow + 5*time.Second
	}
	return &SampleCollector{
		logger:    logger,
		sensors:   sensors,
		diskPath:  diskPath,
		cpuWindow: cpuWindow,
		timeout:   timeout,
	}
}

type sampleResult struct {
	sample model.RawSample
	err    error
}

// SampleOnce returns a fresh sample or an error naming the failing sensor. A
// sensor call that outlives the timeout is abandoned and reported as
// context.DeadlineExceeded.
func (c *SampleCollector) SampleOnce(ctx context.Context) (model.RawSample, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan sampleResult, 1)
	go func() {
		s, err := c.read(ctx)
		done <- sampleResult{sample: s, err: err}
	}()

	select {
	case res := <-done:
		return res.sample, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.RawSample{}, fmt.Errorf("sensors timed out after %s: %w", c.timeout, ctx.Err())
		}
		return model.RawSample{}, ctx.Err()
	}
}

func (c *SampleCollector) read(ctx context.Context) (model.RawSample, error) {
	perCore, err := c.sensors.CPUPerCore(ctx, c.cpuWindow)
	if err != nil {
		return model.RawSample{}, fmt.Errorf("cpu: %w", err)
	}
	avg, err := system.AverageCPU(perCore)
	if err != nil {
		return model.RawSample{}, fmt.Errorf("cpu: %w", err)
	}
	memPct, err := c.sensors.MemoryPercent(ctx)
	if err != nil {
		return model.RawSample{}, fmt.Errorf("memory: %w", err)
	}
	diskPct, err := c.sensors.DiskPercent(ctx, c.diskPath)
	if err != nil {
		return model.RawSample{}, fmt.Errorf("disk: %w", err)
	}
	netCounters, err := c.sensors.NetCounters(ctx)
	if err != nil {
		return model.RawSample{}, fmt.Errorf("network: %w", err)
	}

	s := model.RawSample{
		CPUPerCorePercent: perCore,
		AvgCPUPercent:     avg,
		MemoryPercent:     memPct,
		DiskPercent:       diskPct,
		Net:               netCounters,
	}

	reading, ok, err := c.sensors.Battery(ctx)
	switch {
	case err != nil:
		c.logger.Debug("battery sensor unavailable", "error", err)
	case ok:
		s.Battery = &reading
	}
	return s, nil
}
