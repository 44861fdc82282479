package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type SinkMode string

const (
	SinkModeMongo     SinkMode = "mongo"
	SinkModeGRPC      SinkMode = "grpc"
	SinkModeWebSocket SinkMode = "websocket"
	HardcodedVersion  string   = "V0.3"
)

type Config struct {
	MongoURI         string        `yaml:"mongo_uri"`
	MongoDatabase    string        `yaml:"mongo_database"`
	MongoCollection  string        `yaml:"mongo_collection"`
	SinkMode         SinkMode      `yaml:"sink_mode"`
	BackendGRPCAddr  string        `yaml:"grpc_addr"`
	GRPCAppendMethod string        `yaml:"grpc_append_method"`
	BackendWSURL     string        `yaml:"ws_url"`
	BackendToken     string        `yaml:"backend_token"`
	TLSEnabled       bool          `yaml:"tls_enabled"`
	TLSSkipVerify    bool          `yaml:"tls_skip_verify"`
	TLSCAPath        string        `yaml:"tls_ca_path"`
	TLSCertPath      string        `yaml:"tls_cert_path"`
	TLSKeyPath       string        `yaml:"tls_key_path"`
	SampleInterval   time.Duration `yaml:"sample_interval"`
	ErrorBackoff     time.Duration `yaml:"error_backoff"`
	CPUSampleWindow  time.Duration `yaml:"cpu_sample_window"`
	SensorTimeout    time.Duration `yaml:"sensor_timeout"`
	AppendTimeout    time.Duration `yaml:"append_timeout"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	HealthInterval   time.Duration `yaml:"health_interval"`
	ProbeListenAddr  string        `yaml:"probe_addr"`
	DiskPath         string        `yaml:"disk_path"`
	LogJSON          bool          `yaml:"log_json"`
	LogLevel         string        `yaml:"log_level"`
	AgentVersion     string        `yaml:"-"`
}

func Default() Config {
	diskPath := "/"
	if runtime.GOOS == "windows" {
		diskPath = `C:\`
	}
	return Config{
		MongoURI:         "mongodb://127.0.0.1:27017",
		MongoDatabase:    "system_monitoring",
		MongoCollection:  "device_metrics",
		SinkMode:         SinkModeMongo,
		BackendGRPCAddr:  "127.0.0.1:3001",
		GRPCAppendMethod: "/sysmon.metrics.v1.MetricsService/AppendRecords",
		BackendWSURL:     "ws://127.0.0.1:3001/ws/metrics",
		SampleInterval:   5 * time.Second,
		ErrorBackoff:     5 * time.Second,
		CPUSampleWindow:  time.Second,
		SensorTimeout:    10 * time.Second,
		AppendTimeout:    10 * time.Second,
		ConnectTimeout:   10 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		HealthInterval:   30 * time.Second,
		DiskPath:         diskPath,
		LogJSON:          false,
		LogLevel:         "info",
		AgentVersion:     HardcodedVersion,
	}
}

// Load builds the config from defaults, the optional YAML file at path and
// SYSMON_* environment variables, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = env("SYSMON_CONFIG", "")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.MongoURI = env("SYSMON_MONGO_URI", c.MongoURI)
	c.MongoDatabase = env("SYSMON_MONGO_DATABASE", c.MongoDatabase)
	c.MongoCollection = env("SYSMON_MONGO_COLLECTION", c.MongoCollection)
	c.SinkMode = SinkMode(strings.ToLower(env("SYSMON_SINK_MODE", string(c.SinkMode))))
	c.BackendGRPCAddr = env("SYSMON_GRPC_ADDR", c.BackendGRPCAddr)
	c.GRPCAppendMethod = env("SYSMON_GRPC_APPEND_METHOD", c.GRPCAppendMethod)
	c.BackendWSURL = env("SYSMON_WS_URL", c.BackendWSURL)
	c.BackendToken = env("SYSMON_BACKEND_TOKEN", c.BackendToken)
	c.TLSEnabled = envBool("SYSMON_TLS_ENABLED", c.TLSEnabled)
	c.TLSSkipVerify = envBool("SYSMON_TLS_SKIP_VERIFY", c.TLSSkipVerify)
	c.TLSCAPath = env("SYSMON_TLS_CA_PATH", c.TLSCAPath)
	c.TLSCertPath = env("SYSMON_TLS_CERT_PATH", c.TLSCertPath)
	c.TLSKeyPath = env("SYSMON_TLS_KEY_PATH", c.TLSKeyPath)
	c.SampleInterval = envDuration("SYSMON_SAMPLE_INTERVAL", c.SampleInterval)
	c.ErrorBackoff = envDuration("SYSMON_ERROR_BACKOFF", c.ErrorBackoff)
	c.CPUSampleWindow = envDuration("SYSMON_CPU_SAMPLE_WINDOW", c.CPUSampleWindow)
	c.SensorTimeout = envDuration("SYSMON_SENSOR_TIMEOUT", c.SensorTimeout)
	c.AppendTimeout = envDuration("SYSMON_APPEND_TIMEOUT", c.AppendTimeout)
	c.ConnectTimeout = envDuration("SYSMON_CONNECT_TIMEOUT", c.ConnectTimeout)
	c.ShutdownTimeout = envDuration("SYSMON_SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.HealthInterval = envDuration("SYSMON_HEALTH_INTERVAL", c.HealthInterval)
	c.ProbeListenAddr = env("SYSMON_PROBE_ADDR", c.ProbeListenAddr)
	c.DiskPath = env("SYSMON_DISK_PATH", c.DiskPath)
	c.LogJSON = envBool("SYSMON_LOG_JSON", c.LogJSON)
	c.LogLevel = strings.ToLower(env("SYSMON_LOG_LEVEL", c.LogLevel))
}

func (c Config) Validate() error {
	var err error
	if strings.TrimSpace(c.AgentVersion) == "" {
		err = multierr.Append(err, errors.New("agent version must not be empty"))
	}
	if strings.TrimSpace(c.DiskPath) == "" {
		err = multierr.Append(err, errors.New("SYSMON_DISK_PATH is required"))
	}
	durations := []struct {
		name string
		v    time.Duration
	}{
		{"SYSMON_SAMPLE_INTERVAL", c.SampleInterval},
		{"SYSMON_ERROR_BACKOFF", c.ErrorBackoff},
		{"SYSMON_CPU_SAMPLE_WINDOW", c.CPUSampleWindow},
		{"SYSMON_SENSOR_TIMEOUT", c.SensorTimeout},
		{"SYSMON_APPEND_TIMEOUT", c.AppendTimeout},
		{"SYSMON_CONNECT_TIMEOUT", c.ConnectTimeout},
		{"SYSMON_SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"SYSMON_HEALTH_INTERVAL", c.HealthInterval},
	}
	for _, d := range durations {
		if d.v <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be > 0", d.name))
		}
	}
	if c.CPUSampleWindow > 0 && c.SensorTimeout > 0 && c.SensorTimeout <= c.CPUSampleWindow {
		err = multierr.Append(err, errors.New("SYSMON_SENSOR_TIMEOUT must exceed SYSMON_CPU_SAMPLE_WINDOW"))
	}

	switch c.SinkMode {
	case SinkModeMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			err = multierr.Append(err, errors.New("SYSMON_MONGO_URI is required for mongo mode"))
		}
		if c.MongoDatabase == "" || c.MongoCollection == "" {
			err = multierr.Append(err, errors.New("mongo database and collection are required"))
		}
	case SinkModeGRPC:
		if c.BackendGRPCAddr == "" {
			err = multierr.Append(err, errors.New("SYSMON_GRPC_ADDR is required for grpc mode"))
		}
		if strings.TrimSpace(c.GRPCAppendMethod) == "" {
			err = multierr.Append(err, errors.New("SYSMON_GRPC_APPEND_METHOD is required for grpc mode"))
		}
	case SinkModeWebSocket:
		if c.BackendWSURL == "" {
			err = multierr.Append(err, errors.New("SYSMON_WS_URL is required for websocket mode"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported sink mode %q", c.SinkMode))
	}
	return err
}

// Endpoint is the sink address for the configured mode, safe to log.
func (c Config) Endpoint() string {
	switch c.SinkMode {
	case SinkModeGRPC:
		return c.BackendGRPCAddr
	case SinkModeWebSocket:
		return c.BackendWSURL
	default:
		return redactURI(c.MongoURI)
	}
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

// redactURI drops userinfo from a connection string.
func redactURI(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "xxxxx@" + rest[at+1:]
	}
	return scheme + "://" + rest
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
