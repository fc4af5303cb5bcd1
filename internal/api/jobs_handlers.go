package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/store"
)

const (
	defaultJobsLimit = 50
	maxJobsLimit     = 500
)

type jobResponse struct {
	ID        int64  `json:"id"`
	Source    string `json:"source"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Company   string `json:"company"`
	Location  string `json:"location"`
	Posted    string `json:"posted"`
	Query     string `json:"query"`
	Processed bool   `json:"processed"`
	CreatedAt string `json:"created_at"`
	LastSeen  string `json:"last_seen"`
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.ListingFilter{
		Site:  r.URL.Query().Get("source"),
		Limit: defaultJobsLimit,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxJobsLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be >= 0")
			return
		}
		filter.Offset = n
	}
	if v := r.URL.Query().Get("unprocessed"); v != "" {
		filter.Unprocessed = v == "true" || v == "1"
	}

	listings, err := s.listings.ListListings(r.Context(), filter)
	if err != nil {
		// A missing table on first boot yields an empty board, not an error.
		s.logger.Warn("listing query failed", zap.Error(err))
		writeJSON(w, http.StatusOK, []jobResponse{})
		return
	}

	out := make([]jobResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, jobResponse{
			ID:        l.ID,
			Source:    l.Site,
			Title:     l.Title,
			Link:      l.Link,
			Company:   l.Company,
			Location:  l.Location,
			Posted:    l.Posted,
			Query:     l.Query,
			Processed: l.Processed,
			CreatedAt: l.FirstSeen.UTC().Format(time.RFC3339),
			LastSeen:  l.LastSeen.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type jobStatsEntry struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
	New    int64  `json:"new"`
}

func (s *Server) jobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.listings.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not aggregate job stats")
		return
	}
	out := make([]jobStatsEntry, 0, len(stats))
	for _, c := range stats {
		out = append(out, jobStatsEntry{Source: c.Site, Count: c.Total, New: c.New})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) setJobProcessed(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "job_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	var req struct {
		Processed bool `json:"processed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	err = s.listings.SetProcessed(r.Context(), id, req.Processed)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "error",
			"error":  "Job not found",
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not update job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"id":        id,
		"processed": req.Processed,
	})
}
