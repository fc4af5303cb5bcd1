package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	current   []string
	completed []int
	logs      []string
}

func (r *recordingSink) SetCurrent(label string) { r.current = append(r.current, label) }
func (r *recordingSink) MarkJobComplete(n int)   { r.completed = append(r.completed, n) }
func (r *recordingSink) AppendLog(line string)   { r.logs = append(r.logs, line) }

func threeJobs() []JobLabel {
	return []JobLabel{
		{Name: "freelancermap", Label: "FreelancerMap"},
		{Name: "solcom", Label: "Solcom"},
		{Name: "hays", Label: "Hays"},
	}
}

func TestLineScanner_StartAndFinishMarkers(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewLineScanner(threeJobs(), sink)

	s.Scan("2026-01-05 12:00:01 INFO Starting freelancermap crawler")
	s.Scan("2026-01-05 12:03:44 INFO freelancermap crawler finished successfully")
	s.Scan("Starting solcom crawler")
	s.Scan("solcom crawler finished successfully")

	require.Equal(t, []string{"FreelancerMap", "Solcom"}, sink.current)
	require.Equal(t, []int{1, 2}, sink.completed)
	require.Equal(t, []string{"FreelancerMap done", "Solcom done"}, sink.logs)
}

func TestLineScanner_OrdinalFollowsSequencePosition(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewLineScanner(threeJobs(), sink)

	// Only the third job reports; its ordinal is still 3.
	s.Scan("hays crawler finished successfully")
	require.Equal(t, []int{3}, sink.completed)
	require.Equal(t, []string{"Hays done"}, sink.logs)
}

func TestLineScanner_QueryCapture(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewLineScanner(threeJobs(), sink)

	s.Scan("Starting freelancermap crawler")
	s.Scan("[freelancermap] INFO: Searching for: salesforce")

	require.Equal(t, []string{`FreelancerMap query "salesforce"`}, sink.logs)
}

func TestLineScanner_QueryBeforeAnyStartFallsBack(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewLineScanner(threeJobs(), sink)

	s.Scan("Searching for: python")
	require.Equal(t, []string{`Crawler query "python"`}, sink.logs)
}

func TestLineScanner_IgnoresUnmatchedAndMalformedLines(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewLineScanner(threeJobs(), sink)

	for _, line := range []string{
		"",
		"random chatter",
		"Starting unknown crawler",
		"\xff\xfe garbled \x00 bytes",
		"Searching for:",
	} {
		s.Scan(line)
	}

	require.Empty(t, sink.current)
	require.Empty(t, sink.completed)
	require.Empty(t, sink.logs)
}

func TestLineScanner_DefaultLabel(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewLineScanner([]JobLabel{{Name: "hays"}}, sink)

	s.Scan("hays crawler finished successfully")
	require.Equal(t, []string{"Hays done"}, sink.logs)
}
