package orchestrator

import (
	"sync"
	"time"
)

// TriggerSource records which caller kicked off a run.
type TriggerSource string

// Recognized trigger sources.
const (
	TriggerUser      TriggerSource = "user"
	TriggerScheduler TriggerSource = "scheduler"
)

// Status is the process-wide run status record. It is written only by the
// orchestrator invocation that holds the run lock and read by any number of
// HTTP poller goroutines. Invariant: when not running, started_at and
// started_by are both null.
type Status struct {
	mu        sync.Mutex
	running   bool
	startedAt time.Time
	startedBy TriggerSource
}

// StatusSnapshot is the wire form returned by GET /crawler/status. Progress is
// a placeholder retained for compatibility with older clients; live progress
// comes from the Tracker.
type StatusSnapshot struct {
	IsRunning bool    `json:"is_running"`
	StartedAt *string `json:"started_at"`
	StartedBy *string `json:"started_by"`
	Progress  int     `json:"progress"`
}

// SetRunning marks the run active. Called by the orchestrator immediately
// after winning the run lock, before any executor starts.
func (s *Status) SetRunning(source TriggerSource, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.startedAt = startedAt.UTC()
	s.startedBy = source
}

// Clear resets the record to idle, restoring the null invariant. Runs in the
// orchestrator's guaranteed-cleanup path on every exit.
func (s *Status) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.startedAt = time.Time{}
	s.startedBy = ""
}

// Snapshot returns a consistent copy for concurrent readers.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatusSnapshot{IsRunning: s.running}
	if s.running {
		startedAt := s.startedAt.Format(time.RFC3339)
		startedBy := string(s.startedBy)
		snap.StartedAt = &startedAt
		snap.StartedBy = &startedBy
	}
	return snap
}
