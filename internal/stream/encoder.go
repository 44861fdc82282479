package stream

import (
	"context"
	"encoding/json"
	"errors"

	"sysmon-agent/internal/model"
)

var ErrUnsupportedRecord = errors.New("unsupported record")

// Sink is an append-only record destination. Append makes a single attempt;
// retry and drop policy belongs to the caller.
type Sink interface {
	Ping(ctx context.Context) error
	Append(ctx context.Context, r model.Record) error
	Close(ctx context.Context) error
}

func EncodeEnvelope(e model.Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func checkRecord(r model.Record) error {
	if r == nil {
		return ErrUnsupportedRecord
	}
	switch r.(type) {
	case model.MetricSample, model.SessionStart, *model.MetricSample, *model.SessionStart:
		return nil
	default:
		return ErrUnsupportedRecord
	}
}
