package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/api"
	"github.com/ulritter/freelance-crawler/internal/app"
	"github.com/ulritter/freelance-crawler/internal/orchestrator"
	"github.com/ulritter/freelance-crawler/internal/scheduler"
)

const shutdownGrace = 15 * time.Second

// newServeCmd creates the 'serve' subcommand: the long-running service with
// the HTTP API and the cron scheduler.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the crawler service",
		Long: `Starts the HTTP API and, unless disabled, the cron scheduler that
triggers crawl and backup runs. The process runs until SIGINT or SIGTERM.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer a.Close()
	logger := a.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		var backupFn func(ctx context.Context) error
		if a.Backup() != nil {
			backupFn = a.Backup().Run
		}
		sched, err = scheduler.New(scheduler.Config{
			CrawlSpec:  cfg.Schedule.CrawlSpec,
			BackupSpec: cfg.Schedule.BackupSpec,
		}, func(ctx context.Context) error {
			return a.Orchestrator().Run(ctx, orchestrator.TriggerScheduler)
		}, backupFn, logger)
		if err != nil {
			return err
		}
		sched.Start()
		logger.Info("next scheduled crawl", zap.Time("at", sched.NextCrawl()))
	} else {
		logger.Warn("scheduler disabled, crawls run on manual trigger only")
	}

	server := api.NewServer(a.Orchestrator(), a.Listings(), a.Auth(), a.Documents(), a.Settings(), cfg, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler shutdown incomplete", zap.Error(err))
		}
	}
	logger.Info("service stopped")
	return nil
}
