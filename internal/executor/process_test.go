package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProcessJob_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewProcessJob("", []string{"true"}, zap.NewNop())
	require.Error(t, err)

	_, err = NewProcessJob("hays", nil, zap.NewNop())
	require.Error(t, err)

	job, err := NewProcessJob("hays", []string{"true"}, nil)
	require.NoError(t, err)
	require.Equal(t, "hays", job.Name())
}

func TestProcessJob_StreamsLines(t *testing.T) {
	t.Parallel()

	job, err := NewProcessJob("echo", []string{"sh", "-c", "echo one; echo two 1>&2"}, zap.NewNop())
	require.NoError(t, err)

	var lines []string
	err = job.Run(context.Background(), func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"one", "two"}, lines)
}

func TestProcessJob_FailureExitCode(t *testing.T) {
	t.Parallel()

	job, err := NewProcessJob("boom", []string{"sh", "-c", "exit 3"}, zap.NewNop())
	require.NoError(t, err)

	err = job.Run(context.Background(), func(string) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestProcessJob_KilledOnTimeout(t *testing.T) {
	t.Parallel()

	job, err := NewProcessJob("sleeper", []string{"sleep", "30"}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = job.Run(ctx, func(string) {})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second, "process must be killed, not awaited")
}
