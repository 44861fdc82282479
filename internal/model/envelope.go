package model

import "time"

type RecordType string

const (
	RecordTypeSessionStart RecordType = "session_start"
	RecordTypeMetric       RecordType = "device_metrics"
)

// Record is anything the agent appends to the sink.
type Record interface {
	RecordType() RecordType
	RecordDeviceID() string
	RecordTime() time.Time
}

// Envelope is transport-agnostic framing for stream payloads.
type Envelope struct {
	Type          RecordType `json:"type"`
	DeviceID      string     `json:"device_id"`
	TimestampUnix int64      `json:"timestamp_unix"`
	Payload       any        `json:"payload"`
}

func NewEnvelope(r Record) Envelope {
	return Envelope{
		Type:          r.RecordType(),
		DeviceID:      r.RecordDeviceID(),
		TimestampUnix: r.RecordTime().UTC().Unix(),
		Payload:       r,
	}
}
