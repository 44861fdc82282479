package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sysmon-agent/internal/agent"
	"sysmon-agent/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "sysmon-agent",
	Short:         "sysmon-agent samples host metrics and appends them to a remote sink",
	Version:       config.HardcodedVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAgent,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default $SYSMON_CONFIG)")
	registerOverrideFlags(rootCmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sysmon-agent:", err)
		os.Exit(1)
	}
}

func runAgent(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(&cfg, cmd.Flags()); err != nil {
		return err
	}

	logger := agent.BuildLogger(cfg)
	a, err := agent.New(cfg, logger)
	if err != nil {
		logger.Error("agent initialization failed", "error", err)
		return err
	}

	if err := a.Run(context.Background()); err != nil {
		logger.Error("agent runtime failed", "error", err)
		return err
	}
	return nil
}
