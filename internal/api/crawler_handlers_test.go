package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ulritter/freelance-crawler/internal/config"
	"github.com/ulritter/freelance-crawler/internal/executor"
	"github.com/ulritter/freelance-crawler/internal/orchestrator"
)

func TestHealthz(t *testing.T) {
	t.Parallel()
	env := newTestServer(nil, config.Config{}, false)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyzWithoutJobs(t *testing.T) {
	t.Parallel()
	env := newTestServer([]executor.Job{}, config.Config{}, false)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCrawlerStatusIdle(t *testing.T) {
	t.Parallel()
	env := newTestServer(nil, config.Config{}, false)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/crawler/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp crawlerStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.IsRunning)
	require.Nil(t, resp.StartedAt)
	require.Nil(t, resp.StartedBy)
	require.Zero(t, resp.Progress)
}

func TestRunCrawlerStartsInBackground(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	job := &fakeJob{name: "freelance", run: func(ctx context.Context, _ func(string)) error {
		close(started)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	env := newTestServer([]executor.Job{job}, config.Config{}, false)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/crawler/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "started", resp["status"])
	require.Equal(t, "Crawler run started in background", resp["message"])

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	// A second trigger while the run is active reports the holder.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/crawler/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "error", resp["status"])
	require.Contains(t, resp["message"], "Crawler is already running (started by user at ")

	close(release)
	require.Eventually(t, func() bool {
		return !env.orch.Status().Snapshot().IsRunning
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCrawlerProgressReflectsRun(t *testing.T) {
	t.Parallel()
	job := &fakeJob{name: "freelance", run: func(_ context.Context, emit func(string)) error {
		emit("Starting freelance crawler")
		emit("Searching for: golang")
		emit("freelance crawler finished successfully")
		return nil
	}}
	env := newTestServer([]executor.Job{job}, config.Config{}, false)

	require.NoError(t, env.orch.Run(context.Background(), orchestrator.TriggerUser))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/crawler/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap orchestrator.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, 1, snap.Total)
	require.Equal(t, 1, snap.Completed)
	require.False(t, snap.Running)
	require.Equal(t, "Done", snap.Current)
	require.Contains(t, snap.Logs, `Freelance query "golang"`)
	require.Contains(t, snap.Logs, "All crawlers done")
}
