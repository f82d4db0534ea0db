// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// tourcast records narrated browser walkthroughs from a declarative spec.
//
// Usage:
//
//	tourcast record tour.yaml
//	tourcast validate tour.yaml
//	tourcast timeline tour.yaml
//	tourcast history
//
// Exit codes:
//   - 0: success
//   - 1: the run or command failed
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/tourcast/internal/config"
	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/version"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
	console    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "tourcast",
		Short:         "Record narrated browser walkthroughs",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&g.console, "console", false, "human readable logs")

	root.AddCommand(
		newRecordCmd(g),
		newValidateCmd(g),
		newTimelineCmd(),
		newHistoryCmd(g),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads the effective configuration and configures logging.
func (g *globalFlags) loadConfig() (config.AppConfig, error) {
	// Safe defaults until config is loaded.
	log.Configure(log.Config{Level: "info", Service: "tourcast", Version: version.Version, Console: g.console})

	cfg, err := config.NewLoader(g.configPath, version.Version).Load()
	if err != nil {
		logger := log.WithComponent("cli")
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", g.configPath).
			Msg("failed to load configuration")
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "tourcast",
		Version: cfg.Version,
		Console: g.console || cfg.LogFormat == "console",
	})

	source := "env+defaults"
	if g.configPath != "" {
		source = "file"
	}
	logger := log.WithComponent("cli")
	logger.Debug().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", g.configPath).
		Msg("configuration loaded")
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
