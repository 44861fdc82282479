package system

import (
	"context"
	"fmt"
	"sync"

	psnet "github.com/shirou/gopsutil/v4/net"

	"sysmon-agent/internal/model"
)

const bytesPerMiB = 1024 * 1024

func BytesToMiB(b uint64) float64 {
	return float64(b) / bytesPerMiB
}

// ReadNetCounters returns bytes sent/received since boot summed over all NICs.
func ReadNetCounters(ctx context.Context) (model.NetCounters, error) {
	stats, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return model.NetCounters{}, fmt.Errorf("net io counters: %w", err)
	}
	if len(stats) == 0 {
		return model.NetCounters{}, fmt.Errorf("net io counters: no interfaces reported")
	}
	return model.NetCounters{BytesSent: stats[0].BytesSent, BytesRecv: stats[0].BytesRecv}, nil
}

// peakCounters keeps the highest counters observed so reported values never
// go backwards when an interface disappears or a driver resets its counters.
type peakCounters struct {
	mu   sync.Mutex
	peak model.NetCounters
}

func (p *peakCounters) observe(c model.NetCounters) model.NetCounters {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.BytesSent > p.peak.BytesSent {
		p.peak.BytesSent = c.BytesSent
	}
	if c.BytesRecv > p.peak.BytesRecv {
		p.peak.BytesRecv = c.BytesRecv
	}
	return p.peak
}
