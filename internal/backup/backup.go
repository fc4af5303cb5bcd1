// Package backup runs the nightly database backup command.
package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/executor"
)

// Runner executes the configured backup command under a wall-clock budget.
// Backups are independent of the crawl run lock: a backup may overlap a
// crawl run.
type Runner struct {
	job    executor.Job
	budget time.Duration
	logger *zap.Logger
}

// Config tunes the backup runner.
type Config struct {
	Command []string
	Budget  time.Duration
}

// New builds a Runner over the configured command.
func New(cfg Config, logger *zap.Logger) (*Runner, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("backup.command is required")
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	job, err := executor.NewProcessJob("backup", cfg.Command, logger)
	if err != nil {
		return nil, err
	}
	return &Runner{job: job, budget: cfg.Budget, logger: logger}, nil
}

// Run executes one backup. The command's output lines are logged; a line
// containing "Backup file:" is surfaced at info level with the file path.
func (r *Runner) Run(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	start := time.Now()
	r.logger.Info("backup starting", zap.Duration("budget", r.budget))

	err := r.job.Run(runCtx, func(line string) {
		if idx := strings.Index(line, "Backup file:"); idx >= 0 {
			r.logger.Info("backup file written",
				zap.String("file", strings.TrimSpace(line[idx+len("Backup file:"):])),
			)
			return
		}
		r.logger.Debug("backup output", zap.String("line", line))
	})
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("backup timed out after %s: %w", r.budget, err)
		}
		return fmt.Errorf("backup failed: %w", err)
	}

	r.logger.Info("backup completed", zap.Duration("took", time.Since(start)))
	return nil
}
