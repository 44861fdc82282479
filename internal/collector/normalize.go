package collector

import (
	"slices"
	"time"

	"sysmon-agent/internal/model"
	"sysmon-agent/internal/system"
)

// Normalize builds the storage record for raw. It trusts raw to hold
// percentages in [0,100] and performs no validation.
func Normalize(raw model.RawSample, id model.DeviceIdentity, ts time.Time) model.MetricSample {
	m := model.MetricSample{
		Timestamp:         ts.UTC(),
		DeviceID:          id.DeviceID,
		AvgCPUPercent:     raw.AvgCPUPercent,
		CPUPerCorePercent: slices.Clone(raw.CPUPerCorePercent),
		RAMUsedPercent:    raw.MemoryPercent,
		DiskUsedPercent:   raw.DiskPercent,
		NetworkSentMB:     system.BytesToMiB(raw.Net.BytesSent),
		NetworkRecvMB:     system.BytesToMiB(raw.Net.BytesRecv),
		CPUNormalized:     raw.AvgCPUPercent / 100,
		RAMNormalized:     raw.MemoryPercent / 100,
		DiskNormalized:    raw.DiskPercent / 100,
	}
	if b := raw.Battery; b != nil {
		pct, plugged := b.Percent, b.PowerPlugged
		m.BatteryPercent = &pct
		m.BatteryPlugged = &plugged
		if b.SecsLeft >= 0 {
			secs := b.SecsLeft
			m.BatterySecsLeft = &secs
		}
	}
	return m
}
