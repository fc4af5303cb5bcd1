package executor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// maxLineBytes bounds a single scanned output line. Scraper output is short;
// anything larger is noise from a misbehaving child.
const maxLineBytes = 256 * 1024

// ProcessJob adapts an external command into a Job. Stdout and stderr are
// merged and streamed line by line; context cancellation kills the process.
type ProcessJob struct {
	name   string
	argv   []string
	logger *zap.Logger
}

// NewProcessJob creates a ProcessJob running argv[0] with the remaining
// arguments. The name is the task label used in output markers.
func NewProcessJob(name string, argv []string, logger *zap.Logger) (*ProcessJob, error) {
	if name == "" {
		return nil, fmt.Errorf("job name is required")
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("job %q: command is required", name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessJob{name: name, argv: argv, logger: logger}, nil
}

// Name returns the task label.
func (j *ProcessJob) Name() string { return j.name }

// Run starts the command and feeds each output line to emit. exec.CommandContext
// kills the child when ctx expires, which unblocks the line scan.
func (j *ProcessJob) Run(ctx context.Context, emit func(line string)) error {
	cmd := exec.CommandContext(ctx, j.argv[0], j.argv[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("job %q: stdout pipe: %w", j.name, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("job %q: start: %w", j.name, err)
	}
	j.logger.Debug("process job started",
		zap.String("job", j.name),
		zap.Strings("argv", j.argv),
	)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		emit(scanner.Text())
	}
	// A scan error here is usually the pipe closing after a kill; the wait
	// below surfaces the authoritative outcome.
	if scanErr := scanner.Err(); scanErr != nil {
		j.logger.Debug("output scan ended", zap.String("job", j.name), zap.Error(scanErr))
	}

	err = cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("job %q: %w", j.name, err)
	}
	return nil
}
