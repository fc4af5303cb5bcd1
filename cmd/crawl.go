package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/app"
	"github.com/ulritter/freelance-crawler/internal/orchestrator"
)

// newCrawlCmd creates the 'crawl' subcommand: one full crawl run, then exit.
// Useful for cron-free deployments and for testing site configurations.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl and exits",
		Long: `Executes a single crawl run over all configured sites, writes the
results to the database, and exits. The run honors the configured timeout.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Orchestrator().Run(ctx, orchestrator.TriggerUser); err != nil {
		return fmt.Errorf("crawl run: %w", err)
	}

	snap := a.Orchestrator().Progress().Snapshot()
	a.Logger().Info("crawl finished",
		zap.Int("completed", snap.Completed),
		zap.Int("total", snap.Total),
	)
	return nil
}
