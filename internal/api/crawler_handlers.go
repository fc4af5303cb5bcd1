package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/orchestrator"
)

// crawlerStatusResponse mirrors the run status record plus a completion
// percentage derived from the progress tracker.
type crawlerStatusResponse struct {
	IsRunning bool    `json:"is_running"`
	StartedAt *string `json:"started_at"`
	StartedBy *string `json:"started_by"`
	Progress  int     `json:"progress"`
}

func (s *Server) crawlerStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.orch.Status().Snapshot()
	progress := s.orch.Progress().Snapshot()

	percent := 0
	if progress.Total > 0 {
		percent = progress.Completed * 100 / progress.Total
	}
	writeJSON(w, http.StatusOK, crawlerStatusResponse{
		IsRunning: status.IsRunning,
		StartedAt: status.StartedAt,
		StartedBy: status.StartedBy,
		Progress:  percent,
	})
}

func (s *Server) crawlerProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Progress().Snapshot())
}

// runCrawler triggers a run in the background. The pre-check gives a friendly
// message with the holder's identity; the run lock itself decides races
// between concurrent triggers.
func (s *Server) runCrawler(w http.ResponseWriter, _ *http.Request) {
	status := s.orch.Status().Snapshot()
	if status.IsRunning {
		startedBy, startedAt := "unknown", "unknown"
		if status.StartedBy != nil {
			startedBy = *status.StartedBy
		}
		if status.StartedAt != nil {
			startedAt = *status.StartedAt
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("Crawler is already running (started by %s at %s)", startedBy, startedAt),
		})
		return
	}

	// The run outlives the request; it must not inherit the request context.
	go func() {
		if err := s.orch.Run(context.Background(), orchestrator.TriggerUser); err != nil {
			s.logger.Warn("manual crawl run ended with error", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "started",
		"message": "Crawler run started in background",
	})
}
