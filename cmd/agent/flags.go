package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"sysmon-agent/internal/config"
)

func registerOverrideFlags(fs *pflag.FlagSet) {
	fs.String("mongo-uri", "", "MongoDB connection string (overrides SYSMON_MONGO_URI)")
	fs.String("sink-mode", "", "sink to append to: mongo, grpc or websocket")
	fs.Duration("interval", 0, "delay between collection cycles")
	fs.String("log-level", "", "debug, info, warn or error")
}

// applyFlags overrides cfg with the flags set on the command line and
// validates the result.
func applyFlags(cfg *config.Config, fs *pflag.FlagSet) error {
	if fs.Changed("mongo-uri") {
		v, err := fs.GetString("mongo-uri")
		if err != nil {
			return err
		}
		cfg.MongoURI = v
	}
	if fs.Changed("sink-mode") {
		v, err := fs.GetString("sink-mode")
		if err != nil {
			return err
		}
		cfg.SinkMode = config.SinkMode(strings.ToLower(v))
	}
	if fs.Changed("interval") {
		v, err := fs.GetDuration("interval")
		if err != nil {
			return err
		}
		cfg.SampleInterval = v
	}
	if fs.Changed("log-level") {
		v, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(v)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

