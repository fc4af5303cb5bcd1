// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/auth"
	"github.com/ulritter/freelance-crawler/internal/config"
	"github.com/ulritter/freelance-crawler/internal/metrics"
	"github.com/ulritter/freelance-crawler/internal/orchestrator"
	"github.com/ulritter/freelance-crawler/internal/storage"
	"github.com/ulritter/freelance-crawler/internal/store"
)

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router   chi.Router
	orch     *orchestrator.Orchestrator
	listings store.ListingRepository
	authSvc  *auth.Service
	docs     storage.Provider
	settings store.SettingsRepository
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. authSvc, docs and
// settings may be nil; the corresponding routes then report service
// unavailable.
func NewServer(
	orch *orchestrator.Orchestrator,
	listings store.ListingRepository,
	authSvc *auth.Service,
	docs storage.Provider,
	settings store.SettingsRepository,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orch:     orch,
		listings: listings,
		authSvc:  authSvc,
		docs:     docs,
		settings: settings,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/send-code", s.sendCode)
		r.Post("/verify-code", s.verifyCode)
		r.Get("/check", s.checkAuth)
		r.Post("/logout", s.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/crawler", func(r chi.Router) {
			r.Get("/status", s.crawlerStatus)
			r.Get("/progress", s.crawlerProgress)
			r.Post("/run", s.runCrawler)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Get("/stats", s.jobStats)
			r.Patch("/{job_id}/processed", s.setJobProcessed)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.listDocuments)
			r.Post("/upload", s.uploadDocument)
			r.Get("/{filename}", s.downloadDocument)
			r.Delete("/{filename}", s.deleteDocument)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.getSearchConfig)
			r.Get("/versions", s.listSearchConfigVersions)
			r.Post("/save", s.saveSearchConfig)
			r.Get("/export", s.exportSearchConfig)
			r.Post("/import", s.importSearchConfig)
			r.Get("/version/{filename}", s.getSearchConfigVersion)
			r.Post("/activate/{filename}", s.activateSearchConfig)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The orchestrator is in-memory; readiness only needs the job sequence.
	if s.orch == nil || s.orch.JobCount() == 0 {
		writeError(w, http.StatusServiceUnavailable, "no crawl jobs configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// requireAuth admits requests carrying a valid session cookie or, when
// configured, the service API key.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Auth can be disabled entirely for local development.
		if s.authSvc == nil && s.cfg.Auth.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		if s.authSvc != nil {
			if cookie, err := r.Cookie(authCookieName); err == nil {
				if _, err := s.authSvc.ValidateToken(cookie.Value); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}
		}

		if key := r.Header.Get("X-API-Key"); key != "" {
			if s.cfg.Auth.APIKey != "" && key == s.cfg.Auth.APIKey {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		writeError(w, http.StatusUnauthorized,
			"Authentication required. Provide auth_token cookie or X-API-Key header.")
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
