package orchestrator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_ResetClearsState(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Reset(3, "Starting...")
	tr.SetCurrent("FreelancerMap")
	tr.MarkJobComplete(2)
	tr.AppendLog("FreelancerMap done")

	tr.Reset(4, "Starting...")
	snap := tr.Snapshot()
	require.Equal(t, 4, snap.Total)
	require.Zero(t, snap.Completed)
	require.Equal(t, "Starting...", snap.Current)
	require.True(t, snap.Running)
	require.Empty(t, snap.Logs)
}

func TestTracker_CompletedIsMonotonicAndClamped(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Reset(3, "Starting...")

	tr.MarkJobComplete(2)
	require.Equal(t, 2, tr.Snapshot().Completed)

	// Lower or equal values are no-ops.
	tr.MarkJobComplete(1)
	tr.MarkJobComplete(2)
	require.Equal(t, 2, tr.Snapshot().Completed)

	// Never exceeds total.
	tr.MarkJobComplete(9)
	require.Equal(t, 3, tr.Snapshot().Completed)
}

func TestTracker_LogEvictionFIFO(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Reset(1, "Starting...")
	for i := 1; i <= 7; i++ {
		tr.AppendLog(fmt.Sprintf("line %d", i))
	}

	snap := tr.Snapshot()
	require.Len(t, snap.Logs, maxLogLines)
	require.Equal(t, []string{"line 3", "line 4", "line 5", "line 6", "line 7"}, snap.Logs)
}

func TestTracker_Finish(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Reset(3, "Starting...")
	tr.MarkJobComplete(1)
	tr.Finish()

	snap := tr.Snapshot()
	require.False(t, snap.Running)
	require.Equal(t, snap.Total, snap.Completed)
	require.Equal(t, doneLabel, snap.Current)
	require.NotEmpty(t, snap.Logs)
	require.Equal(t, "All crawlers done", snap.Logs[len(snap.Logs)-1])
}

func TestTracker_AbortKeepsCompletedCount(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Reset(3, "Starting...")
	tr.MarkJobComplete(1)
	tr.Abort("Timeout after 10m0s")

	snap := tr.Snapshot()
	require.False(t, snap.Running)
	require.Equal(t, 1, snap.Completed)
	require.Contains(t, snap.Logs, "Timeout after 10m0s")
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Reset(1, "Starting...")
	tr.AppendLog("first")

	snap := tr.Snapshot()
	snap.Logs[0] = "mutated"
	require.Equal(t, "first", tr.Snapshot().Logs[0])
}
