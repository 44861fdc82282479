package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

var ErrNoCPUSamples = errors.New("cpu sensor returned no per-core samples")

// PerCorePercent blocks for window and returns utilization per logical core,
// ordered by core index.
func PerCorePercent(ctx context.Context, window time.Duration) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("cpu sample window must be > 0, got %s", window)
	}
	pcts, err := cpu.PercentWithContext(ctx, window, true)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	return pcts, nil
}

// AverageCPU is the arithmetic mean of the per-core sequence.
func AverageCPU(perCore []float64) (float64, error) {
	if len(perCore) == 0 {
		return 0, ErrNoCPUSamples
	}
	var sum float64
	for _, v := range perCore {
		sum += v
	}
	return sum / float64(len(perCore)), nil
}
