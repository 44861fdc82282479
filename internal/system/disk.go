package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

func DiskPercent(ctx context.Context, path string) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return usage.UsedPercent, nil
}
