// Package scheduler drives the fixed cron triggers for crawl and backup runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/metrics"
	"github.com/ulritter/freelance-crawler/internal/orchestrator"
)

// cronParser supports standard 5-field cron expressions and descriptors like
// @hourly.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Config holds the two trigger specs.
type Config struct {
	CrawlSpec  string
	BackupSpec string
}

// Scheduler owns the cron runner. The crawl trigger is contention-tolerant:
// when a run is already active the tick is skipped, never queued. The backup
// trigger is independent of the run lock.
type Scheduler struct {
	cron        *cron.Cron
	crawl       func(ctx context.Context) error
	backup      func(ctx context.Context) error
	crawlEntry  cron.EntryID
	backupEntry cron.EntryID
	logger      *zap.Logger
}

// New builds a Scheduler over the given trigger callbacks.
func New(
	cfg Config,
	crawl func(ctx context.Context) error,
	backup func(ctx context.Context) error,
	logger *zap.Logger,
) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if crawl == nil {
		return nil, fmt.Errorf("crawl callback is required")
	}

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(&cronLogger{logger: logger}),
		cron.WithChain(cron.Recover(&cronLogger{logger: logger})),
	)
	s := &Scheduler{
		cron:   c,
		crawl:  crawl,
		backup: backup,
		logger: logger,
	}

	var err error
	s.crawlEntry, err = c.AddFunc(cfg.CrawlSpec, s.runCrawl)
	if err != nil {
		return nil, fmt.Errorf("parse crawl spec %q: %w", cfg.CrawlSpec, err)
	}
	if backup != nil && cfg.BackupSpec != "" {
		s.backupEntry, err = c.AddFunc(cfg.BackupSpec, s.runBackup)
		if err != nil {
			return nil, fmt.Errorf("parse backup spec %q: %w", cfg.BackupSpec, err)
		}
	}
	return s, nil
}

// Start launches the cron runner.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Time("next_crawl", s.cron.Entry(s.crawlEntry).Next),
	)
}

// Stop halts the cron runner and waits for in-flight jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

// NextCrawl reports the next scheduled crawl tick.
func (s *Scheduler) NextCrawl() time.Time {
	return s.cron.Entry(s.crawlEntry).Next
}

func (s *Scheduler) runCrawl() {
	err := s.crawl(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		// Overlap with a long run or a user trigger. Drop the tick.
		metrics.ObserveRunSkip(string(orchestrator.TriggerScheduler))
		s.logger.Info("scheduled crawl skipped, run already active")
	default:
		s.logger.Error("scheduled crawl failed", zap.Error(err))
	}
}

func (s *Scheduler) runBackup() {
	if err := s.backup(context.Background()); err != nil {
		s.logger.Error("scheduled backup failed", zap.Error(err))
	}
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, zap.Error(err), zap.Any("details", keysAndValues))
}
