package system

import (
	"context"
	"fmt"
	"time"

	"github.com/distatus/battery"

	"sysmon-agent/internal/model"
)

// HostSensors reads the local host through gopsutil and the platform battery
// API.
type HostSensors struct {
	net       peakCounters
	batteries func() ([]*battery.Battery, error)
}

func NewHostSensors() *HostSensors {
	return &HostSensors{batteries: battery.GetAll}
}

func (h *HostSensors) CPUPerCore(ctx context.Context, window time.Duration) ([]float64, error) {
	return PerCorePercent(ctx, window)
}

func (h *HostSensors) MemoryPercent(ctx context.Context) (float64, error) {
	return MemoryPercent(ctx)
}

func (h *HostSensors) DiskPercent(ctx context.Context, path string) (float64, error) {
	return DiskPercent(ctx, path)
}

func (h *HostSensors) NetCounters(ctx context.Context) (model.NetCounters, error) {
	c, err := ReadNetCounters(ctx)
	if err != nil {
		return model.NetCounters{}, err
	}
	return h.net.observe(c), nil
}

// Battery reports ok=false on hosts without a battery. Per-battery read
// errors are ignored as long as one battery is usable.
func (h *HostSensors) Battery(_ context.Context) (model.BatteryReading, bool, error) {
	bats, err := h.batteries()
	if r, ok := readingFromBatteries(bats); ok {
		return r, true, nil
	}
	if err != nil {
		return model.BatteryReading{}, false, fmt.Errorf("battery: %w", err)
	}
	return model.BatteryReading{}, false, nil
}
