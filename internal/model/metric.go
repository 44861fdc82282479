package model

import "time"

// Sentinel values a battery sensor may report for SecsLeft. They never leave
// the sensor layer: MetricSample carries a nil pointer instead.
const (
	BatterySecsUnknown   int64 = -1
	BatterySecsUnlimited int64 = -2
)

type NetCounters struct {
	BytesSent uint64
	BytesRecv uint64
}

type BatteryReading struct {
	Percent      float64
	PowerPlugged bool
	SecsLeft     int64
}

// RawSample is one un-normalized reading of every sensor.
type RawSample struct {
	CPUPerCorePercent []float64
	AvgCPUPercent     float64
	MemoryPercent     float64
	DiskPercent       float64
	Net               NetCounters
	Battery           *BatteryReading
}

// MetricSample is the per-cycle record persisted to the sink. Battery fields
// are either all nil or all derived from the same reading; BatterySecsLeft is
// additionally nil when the sensor cannot estimate it.
type MetricSample struct {
	Timestamp         time.Time `json:"timestamp" bson:"timestamp"`
	DeviceID          string    `json:"device_id" bson:"device_id"`
	AvgCPUPercent     float64   `json:"avg_cpu_percent" bson:"avg_cpu_percent"`
	CPUPerCorePercent []float64 `json:"cpu_per_core_percent" bson:"cpu_per_core_percent"`
	RAMUsedPercent    float64   `json:"ram_used_percent" bson:"ram_used_percent"`
	DiskUsedPercent   float64   `json:"disk_used_percent" bson:"disk_used_percent"`
	NetworkSentMB     float64   `json:"network_sent_mb" bson:"network_sent_mb"`
	NetworkRecvMB     float64   `json:"network_recv_mb" bson:"network_recv_mb"`
	BatteryPercent    *float64  `json:"battery_percent" bson:"battery_percent"`
	BatteryPlugged    *bool     `json:"battery_plugged" bson:"battery_plugged"`
	BatterySecsLeft   *int64    `json:"battery_secs_left" bson:"battery_secs_left"`
	CPUNormalized     float64   `json:"cpu_normalized" bson:"cpu_normalized"`
	RAMNormalized     float64   `json:"ram_normalized" bson:"ram_normalized"`
	DiskNormalized    float64   `json:"disk_normalized" bson:"disk_normalized"`
}

func (m MetricSample) RecordType() RecordType { return RecordTypeMetric }
func (m MetricSample) RecordDeviceID() string { return m.DeviceID }
func (m MetricSample) RecordTime() time.Time  { return m.Timestamp }

func (m MetricSample) HasBattery() bool {
	return m.BatteryPercent != nil
}
