package version

import (
	"context"

	"github.com/tilinna/clock"

	"sysmon-agent/internal/config"
)

// Get describes the running agent. DeviceID is empty until the identity has
// been resolved.
func Get(ctx context.Context, cfg config.Config, req *GetVersionRequest) *GetVersionResponse {
	resp := &GetVersionResponse{
		AgentVersion:    cfg.AgentVersion,
		SinkMode:        string(cfg.SinkMode),
		ProbeListenAddr: cfg.ProbeListenAddr,
		CheckedAtUnix:   clock.Now(ctx).UTC().Unix(),
	}
	if req != nil {
		resp.DeviceID = req.DeviceID
	}
	return resp
}
