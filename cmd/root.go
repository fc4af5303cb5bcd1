// Package cmd defines the CLI commands for the crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ulritter/freelance-crawler/internal/config"
)

var cfgFile string

// newRootCmd creates and configures the root command. Subcommands load the
// configuration themselves so that a broken config file fails inside the
// command, with usage help suppressed.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freelance-crawler",
		Short: "A job listing crawler for freelance portals.",
		Long: `freelance-crawler scrapes configured freelance job portals on a fixed
schedule, stores discovered listings in PostgreSQL, and serves an HTTP API
for triggering runs and browsing results.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newBackupCmd())

	return cmd
}

// loadConfig reads the config file named by --config, falling back to
// ./config.yaml when present.
func loadConfig() (config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
