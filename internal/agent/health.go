package agent

import (
	"sync/atomic"
	"time"

	"sysmon-agent/internal/collector"
)

type HealthStatus struct {
	sinkConnected atomic.Bool
	lastSampleAt  atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	h := &HealthStatus{}
	h.sinkConnected.Store(false)
	return h
}

func (h *HealthStatus) SetSinkConnected(ok bool) {
	h.sinkConnected.Store(ok)
}

func (h *HealthStatus) MarkSample(ts time.Time) {
	h.lastSampleAt.Store(ts.UnixNano())
}

func (h *HealthStatus) SinkConnected() bool {
	return h.sinkConnected.Load()
}

// Snapshot merges the sink status with the loop counters; sched may be nil
// before the loop has started.
func (h *HealthStatus) Snapshot(sched *collector.Scheduler) map[string]any {
	out := map[string]any{
		"sink_connected": h.sinkConnected.Load(),
	}
	if v := h.lastSampleAt.Load(); v > 0 {
		out["last_sample_at"] = time.Unix(0, v).UTC()
	}
	if sched != nil {
		st := sched.Stats()
		out["state"] = sched.State().String()
		out["cycles_ok"] = st.CyclesOK
		out["cycles_failed"] = st.CyclesFailed
		out["consecutive_failures"] = st.ConsecutiveFailures
	}
	return out
}
