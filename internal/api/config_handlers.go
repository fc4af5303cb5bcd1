package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/config"
	"github.com/ulritter/freelance-crawler/internal/storage"
	"github.com/ulritter/freelance-crawler/internal/store"
)

// versionTimeLayout is embedded in saved version filenames,
// search_config_YYYYMMDD_HHMMSS.json.
const versionTimeLayout = "20060102_150405"

type searchConfigVersion struct {
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
	Size      int64  `json:"size"`
	Modified  string `json:"modified"`
	IsActive  bool   `json:"is_active"`
}

func (s *Server) searchConfigReady(w http.ResponseWriter) bool {
	if s.docs == nil || s.settings == nil {
		writeError(w, http.StatusServiceUnavailable, "config storage is not configured")
		return false
	}
	return true
}

// activeSearchConfig resolves the activated version. When none is activated
// (or the version blob has gone missing) the static site configuration is
// returned under the pseudo version "current".
func (s *Server) activeSearchConfig(r *http.Request) (config.SearchConfig, string, error) {
	name, err := s.settings.GetSetting(r.Context(), config.ActiveSearchConfigKey)
	if errors.Is(err, store.ErrNotFound) {
		return config.SearchFromSites(s.cfg.Sites), "current", nil
	}
	if err != nil {
		return config.SearchConfig{}, "", err
	}

	data, err := s.docs.GetObject(r.Context(), config.SearchConfigPrefix+name)
	if errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("active search config version is missing", zap.String("filename", name))
		return config.SearchFromSites(s.cfg.Sites), "current", nil
	}
	if err != nil {
		return config.SearchConfig{}, "", err
	}

	var sc config.SearchConfig
	if err := json.Unmarshal(data, &sc); err != nil {
		return config.SearchConfig{}, "", err
	}
	return sc, name, nil
}

func (s *Server) getSearchConfig(w http.ResponseWriter, r *http.Request) {
	if !s.searchConfigReady(w) {
		return
	}
	sc, version, err := s.activeSearchConfig(r)
	if err != nil {
		s.logger.Error("loading search config failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load search config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config":         sc,
		"active_version": version,
	})
}

func (s *Server) listSearchConfigVersions(w http.ResponseWriter, r *http.Request) {
	if !s.searchConfigReady(w) {
		return
	}
	infos, err := s.docs.ListObjects(r.Context(), config.SearchConfigPrefix)
	if err != nil {
		s.logger.Error("listing search config versions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list versions")
		return
	}
	active, err := s.settings.GetSetting(r.Context(), config.ActiveSearchConfigKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("resolving active search config failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list versions")
		return
	}

	versions := make([]searchConfigVersion, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Path, config.SearchConfigPrefix)
		timestamp := strings.TrimSuffix(strings.TrimPrefix(name, "search_config_"), ".json")
		versions = append(versions, searchConfigVersion{
			Filename:  name,
			Timestamp: timestamp,
			Size:      info.Size,
			Modified:  info.Updated.UTC().Format(time.RFC3339),
			IsActive:  name == active,
		})
	}
	// Newest first; the timestamped filenames sort chronologically.
	sort.Slice(versions, func(i, j int) bool { return versions[i].Filename > versions[j].Filename })
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// saveSearchVersion stores sc as a new timestamped version blob.
func (s *Server) saveSearchVersion(r *http.Request, sc config.SearchConfig) (filename, timestamp string, err error) {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return "", "", err
	}
	timestamp = time.Now().UTC().Format(versionTimeLayout)
	filename = "search_config_" + timestamp + ".json"
	_, err = s.docs.PutObject(r.Context(), config.SearchConfigPrefix+filename, "application/json", data)
	return filename, timestamp, err
}

func (s *Server) saveSearchConfig(w http.ResponseWriter, r *http.Request) {
	if !s.searchConfigReady(w) {
		return
	}
	var sc config.SearchConfig
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	filename, timestamp, err := s.saveSearchVersion(r, sc)
	if err != nil {
		s.logger.Error("saving search config version failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save version")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Configuration saved as version " + timestamp,
		"filename":  filename,
		"timestamp": timestamp,
	})
}

func (s *Server) activateSearchConfig(w http.ResponseWriter, r *http.Request) {
	if !s.searchConfigReady(w) {
		return
	}
	filename := chi.URLParam(r, "filename")
	if !validDocumentName(filename) {
		writeError(w, http.StatusBadRequest, "Invalid file path")
		return
	}
	_, err := s.docs.GetObject(r.Context(), config.SearchConfigPrefix+filename)
	if errors.Is(err, storage.ErrObjectNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "error",
			"error":  "Version not found",
		})
		return
	}
	if err != nil {
		s.logger.Error("reading search config version failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read version")
		return
	}
	if err := s.settings.PutSetting(r.Context(), config.ActiveSearchConfigKey, filename); err != nil {
		s.logger.Error("activating search config version failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not activate version")
		return
	}

	s.logger.Info("search config version activated", zap.String("filename", filename))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"message":  "Configuration " + filename + " is now active",
		"filename": filename,
	})
}

func (s *Server) getSearchConfigVersion(w http.ResponseWriter, r *http.Request) {
	if !s.searchConfigReady(w) {
		return
	}
	filename := chi.URLParam(r, "filename")
	if !validDocumentName(filename) {
		writeError(w, http.StatusBadRequest, "Invalid file path")
		return
	}
	data, err := s.docs.GetObject(r.Context(), config.SearchConfigPrefix+filename)
	if errors.Is(err, storage.ErrObjectNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "error",
			"error":  "Version not found",
		})
		return
	}
	if err != nil {
		s.logger.Error("reading search config version failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read version")
		return
	}
	var sc config.SearchConfig
	if err := json.Unmarshal(data, &sc); err != nil {
		s.logger.Error("stored search config version is corrupt",
			zap.String("filename", filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stored version is corrupt")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config":   sc,
		"filename": filename,
	})
}

func (s *Server) exportSearchConfig(w http.ResponseWriter, r *http.Request) {
	if !s.searchConfigReady(w) {
		return
	}
	sc, _, err := s.activeSearchConfig(r)
	if err != nil {
		s.logger.Error("loading search config failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load search config")
		return
	}
	filename := "search_config_" + time.Now().UTC().Format(versionTimeLayout) + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) importSearchConfig(w http.ResponseWriter, r *http.Request) {
	if !s.searchConfigReady(w) {
		return
	}
	var sc config.SearchConfig
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if problems := sc.Validate(); len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":  "error",
			"error":   "Invalid configuration structure",
			"details": problems,
		})
		return
	}
	filename, timestamp, err := s.saveSearchVersion(r, sc)
	if err != nil {
		s.logger.Error("saving imported search config failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save version")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Configuration imported and saved as version " + timestamp,
		"filename":  filename,
		"timestamp": timestamp,
	})
}
