// Package executor defines the contract for a single named crawl task.
//
// A Job is an opaque long-running operation: the orchestrator starts it,
// consumes its output one line at a time, and detects completion or failure
// from the returned error. Cancelling the context must abort the job promptly,
// killing any underlying process.
package executor

import "context"

// Job runs one named crawl task to completion.
type Job interface {
	// Name identifies the task; it is matched against output markers by the
	// progress line scanner, so it must be stable and lowercase.
	Name() string

	// Run executes the task, invoking emit once per produced output line.
	// It returns nil on success, the context error when cancelled or timed
	// out, and any other error on abnormal termination. emit is never called
	// after Run returns.
	Run(ctx context.Context, emit func(line string)) error
}
