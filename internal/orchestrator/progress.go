package orchestrator

import "sync"

// maxLogLines caps the rolling progress log; the oldest entry is evicted first.
const maxLogLines = 5

// doneLabel marks the current-job field once a run finished.
const doneLabel = "Done"

// Tracker is the shared progress record for the in-flight crawl run. One
// orchestrator invocation writes it; arbitrarily many HTTP pollers read it
// via Snapshot.
type Tracker struct {
	mu        sync.Mutex
	total     int
	completed int
	current   string
	running   bool
	logs      []string
}

// ProgressSnapshot is the wire form returned by GET /crawler/progress.
type ProgressSnapshot struct {
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Current   string   `json:"current"`
	Running   bool     `json:"running"`
	Logs      []string `json:"logs"`
}

// NewTracker returns an idle Tracker.
func NewTracker() *Tracker {
	return &Tracker{logs: []string{}}
}

// Reset prepares the tracker for a new run of total jobs.
func (t *Tracker) Reset(total int, initialLabel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	t.completed = 0
	t.current = initialLabel
	t.running = true
	t.logs = t.logs[:0]
}

// SetCurrent updates the label of the in-flight job.
func (t *Tracker) SetCurrent(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = label
}

// MarkJobComplete records that n jobs have finished so far. The count is
// absolute, clamped to total, and never decreases within a run, so redundant
// or late marker lines are harmless.
func (t *Tracker) MarkJobComplete(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > t.total {
		n = t.total
	}
	if n > t.completed {
		t.completed = n
	}
}

// AppendLog pushes a status line, evicting the oldest beyond maxLogLines.
func (t *Tracker) AppendLog(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLocked(line)
}

func (t *Tracker) appendLocked(line string) {
	t.logs = append(t.logs, line)
	if len(t.logs) > maxLogLines {
		t.logs = t.logs[len(t.logs)-maxLogLines:]
	}
}

// Finish marks the run complete: all jobs counted, running cleared, and a
// final completion line appended.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.completed = t.total
	t.current = doneLabel
	t.appendLocked("All crawlers done")
}

// Abort clears the running flag without touching the completed count, leaving
// the log trail describing what went wrong.
func (t *Tracker) Abort(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if line != "" {
		t.appendLocked(line)
	}
}

// Snapshot returns a consistent copy for concurrent readers.
func (t *Tracker) Snapshot() ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	logs := make([]string, len(t.logs))
	copy(logs, t.logs)
	return ProgressSnapshot{
		Total:     t.total,
		Completed: t.completed,
		Current:   t.current,
		Running:   t.running,
		Logs:      logs,
	}
}
