package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

// ProgressSink receives state updates derived from executor output. Tracker
// satisfies it; tests substitute recorders.
type ProgressSink interface {
	SetCurrent(label string)
	MarkJobComplete(n int)
	AppendLog(line string)
}

// JobLabel pairs an executor name with its human-readable display label.
type JobLabel struct {
	Name  string
	Label string
}

// queryPattern captures the search term scrapers announce per query.
var queryPattern = regexp.MustCompile(`Searching for: (.+)$`)

// LineScanner turns the executors' line-oriented output into progress updates.
// It applies a small ordered set of substring and regexp matchers per line;
// unmatched or malformed lines produce no state change and never error. The
// scan is deliberately tolerant: marker substrings may be surrounded by
// timestamps, log prefixes, or encoding noise.
type LineScanner struct {
	sink    ProgressSink
	jobs    []JobLabel
	current string
}

// NewLineScanner builds a scanner for the given run sequence. Job order
// determines completion ordinals (first job done => 1 complete, and so on).
func NewLineScanner(jobs []JobLabel, sink ProgressSink) *LineScanner {
	resolved := make([]JobLabel, len(jobs))
	for i, j := range jobs {
		if j.Label == "" {
			j.Label = defaultLabel(j.Name)
		}
		resolved[i] = j
	}
	return &LineScanner{sink: sink, jobs: resolved}
}

// Scan inspects one output line and updates the sink accordingly.
func (s *LineScanner) Scan(line string) {
	for i, job := range s.jobs {
		switch {
		case strings.Contains(line, "Starting "+job.Name+" crawler"):
			s.current = job.Label
			s.sink.SetCurrent(job.Label)
			return
		case strings.Contains(line, job.Name+" crawler finished successfully"):
			s.sink.MarkJobComplete(i + 1)
			s.sink.AppendLog(job.Label + " done")
			return
		}
	}
	if m := queryPattern.FindStringSubmatch(line); m != nil {
		query := strings.TrimSpace(m[1])
		label := s.current
		if label == "" {
			label = "Crawler"
		}
		s.sink.AppendLog(fmt.Sprintf("%s query %q", label, query))
	}
}

func defaultLabel(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
