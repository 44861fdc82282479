package model

import "time"

// DeviceIdentity is the static host descriptor computed once at startup.
type DeviceIdentity struct {
	DeviceID   string  `json:"device_id" bson:"device_id"`
	System     string  `json:"system" bson:"system"`
	Release    string  `json:"release" bson:"release"`
	Version    string  `json:"version" bson:"version"`
	Machine    string  `json:"machine" bson:"machine"`
	Processor  string  `json:"processor" bson:"processor"`
	TotalRAMGB float64 `json:"total_ram_gb" bson:"total_ram_gb"`
	CPUCount   int     `json:"cpu_count" bson:"cpu_count"`
}

// SessionStart is written once per process start.
type SessionStart struct {
	SystemInfo   DeviceIdentity `json:"system_info" bson:"system_info"`
	StartTime    time.Time      `json:"start_time" bson:"start_time"`
	SessionID    string         `json:"session_id" bson:"session_id"`
	AgentVersion string         `json:"agent_version" bson:"agent_version"`
}

func (s SessionStart) RecordType() RecordType { return RecordTypeSessionStart }
func (s SessionStart) RecordDeviceID() string { return s.SystemInfo.DeviceID }
func (s SessionStart) RecordTime() time.Time  { return s.StartTime }
