package version

type GetVersionRequest struct {
	DeviceID string `json:"device_id"`
}

type GetVersionResponse struct {
	DeviceID        string         `json:"device_id"`
	AgentVersion    string         `json:"agent_version"`
	SinkMode        string         `json:"sink_mode"`
	ProbeListenAddr string         `json:"probe_listen_addr"`
	CheckedAtUnix   int64          `json:"checked_at_unix"`
	Health          map[string]any `json:"health,omitempty"`
}
