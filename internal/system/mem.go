package system

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v4/mem"
)

const bytesPerGiB = 1024 * 1024 * 1024

func MemoryPercent(ctx context.Context) (float64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return v.UsedPercent, nil
}

// GiBRounded converts bytes to GiB rounded to two decimals.
func GiBRounded(bytes uint64) float64 {
	return math.Round(float64(bytes)/bytesPerGiB*100) / 100
}
