// Package orchestrator implements the crawl run state machine: a single
// mutually-exclusive run spanning a fixed sequence of crawl jobs, with shared
// status and progress records polled by HTTP readers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/executor"
	"github.com/ulritter/freelance-crawler/internal/runlock"
)

// ErrAlreadyRunning signals a skipped trigger: another run holds the lock.
// This is normal contention, not a failure.
var ErrAlreadyRunning = errors.New("crawler is already running")

// Outcome is the terminal state of one run attempt.
type Outcome string

// Terminal outcomes.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFailed    Outcome = "failed"
)

// Summary describes one finished run attempt for observers (metrics, notify).
type Summary struct {
	Source    TriggerSource
	Outcome   Outcome
	StartedAt time.Time
	Duration  time.Duration
	Completed int
	Total     int
	Err       error
}

// Config tunes an Orchestrator.
type Config struct {
	// Budget is the wall-clock limit for the whole job sequence.
	Budget time.Duration
	// Labels maps job names to display labels; unmapped names get a
	// capitalized default.
	Labels map[string]string
	// OnDone, if set, is invoked after cleanup with the run summary.
	OnDone func(Summary)
	// Now substitutes the clock in tests.
	Now func() time.Time
}

const defaultBudget = 10 * time.Minute

// Orchestrator owns the run lock, status, and progress records, and executes
// crawl runs strictly sequentially within a single invocation. Jobs never run
// concurrently with each other: one browser session at a time keeps resource
// usage bounded, at the cost of run latency growing linearly with job count.
type Orchestrator struct {
	lock    runlock.Lock
	status  Status
	tracker *Tracker
	jobs    []executor.Job
	cfg     Config
	logger  *zap.Logger
}

// New builds an Orchestrator over the fixed job sequence.
func New(jobs []executor.Job, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Budget <= 0 {
		cfg.Budget = defaultBudget
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		tracker: NewTracker(),
		jobs:    jobs,
		cfg:     cfg,
		logger:  logger,
	}
}

// Status exposes the run status record for HTTP readers.
func (o *Orchestrator) Status() *Status { return &o.status }

// Progress exposes the progress tracker for HTTP readers.
func (o *Orchestrator) Progress() *Tracker { return o.tracker }

// JobCount reports the length of the fixed run sequence.
func (o *Orchestrator) JobCount() int { return len(o.jobs) }

// Run executes one full crawl run on the calling goroutine. It returns
// ErrAlreadyRunning immediately when the lock is held, without touching
// status or progress. On every other path the status reset and lock release
// happen exactly once, in a deferred cleanup that also absorbs panics.
func (o *Orchestrator) Run(ctx context.Context, source TriggerSource) (runErr error) {
	if !o.lock.TryAcquire() {
		o.logger.Warn("crawl run skipped, another run is active",
			zap.String("trigger", string(source)),
		)
		return ErrAlreadyRunning
	}

	startedAt := o.cfg.Now().UTC()
	outcome := OutcomeFailed

	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			runErr = fmt.Errorf("crawl run panic: %v", r)
			o.tracker.Abort(fmt.Sprintf("Error: %v", r))
			o.logger.Error("crawl run panicked", zap.Any("panic", r))
		}
		o.status.Clear()
		if !o.lock.Release() {
			o.logger.Error("run lock was not held at release")
		}
		o.logger.Info("crawler lock released", zap.String("outcome", string(outcome)))
		if o.cfg.OnDone != nil {
			snap := o.tracker.Snapshot()
			o.cfg.OnDone(Summary{
				Source:    source,
				Outcome:   outcome,
				StartedAt: startedAt,
				Duration:  o.cfg.Now().UTC().Sub(startedAt),
				Completed: snap.Completed,
				Total:     snap.Total,
				Err:       runErr,
			})
		}
	}()

	o.status.SetRunning(source, startedAt)
	o.tracker.Reset(len(o.jobs), "Starting...")
	o.logger.Info("crawl run starting",
		zap.String("trigger", string(source)),
		zap.Int("jobs", len(o.jobs)),
		zap.Duration("budget", o.cfg.Budget),
	)

	scanner := NewLineScanner(o.jobLabels(), o.tracker)
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Budget)
	defer cancel()

	for _, job := range o.jobs {
		jobStart := o.cfg.Now()
		err := job.Run(runCtx, scanner.Scan)
		if err == nil {
			o.logger.Info("crawl job finished",
				zap.String("job", job.Name()),
				zap.Duration("took", o.cfg.Now().Sub(jobStart)),
			)
			continue
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			outcome = OutcomeTimedOut
			runErr = err
			o.tracker.Abort(fmt.Sprintf("Timeout after %s", o.cfg.Budget))
			o.logger.Error("crawl run timed out, in-flight job killed",
				zap.String("job", job.Name()),
				zap.Duration("budget", o.cfg.Budget),
			)
			return runErr
		}
		// Abnormal termination aborts the rest of the sequence; results from
		// jobs already finished are retained.
		outcome = OutcomeFailed
		runErr = err
		o.tracker.Abort("Error: " + err.Error())
		o.logger.Error("crawl job failed, remaining sequence skipped",
			zap.String("job", job.Name()),
			zap.Error(err),
		)
		return runErr
	}

	o.tracker.Finish()
	outcome = OutcomeCompleted
	o.logger.Info("crawl run completed",
		zap.Duration("took", o.cfg.Now().UTC().Sub(startedAt)),
	)
	return nil
}

func (o *Orchestrator) jobLabels() []JobLabel {
	labels := make([]JobLabel, len(o.jobs))
	for i, job := range o.jobs {
		labels[i] = JobLabel{Name: job.Name(), Label: o.cfg.Labels[job.Name()]}
	}
	return labels
}
