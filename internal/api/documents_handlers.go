package api

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/storage"
)

// maxUploadBytes caps document uploads at 20 MiB.
const maxUploadBytes = 20 << 20

var documentMediaTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

func validDocumentName(name string) bool {
	return name != "" && !strings.Contains(name, "..") && !strings.ContainsAny(name, "/\\")
}

func (s *Server) docPath(filename string) string {
	prefix := strings.Trim(s.cfg.Storage.Prefix, "/")
	if prefix == "" {
		return filename
	}
	return prefix + "/" + filename
}

type documentEntry struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ModifiedISO string `json:"modified_iso"`
	DownloadURL string `json:"download_url"`
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document storage is not configured")
		return
	}
	prefix := strings.Trim(s.cfg.Storage.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	infos, err := s.docs.ListObjects(r.Context(), prefix)
	if err != nil {
		s.logger.Error("listing documents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}

	documents := make([]documentEntry, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Path, prefix)
		documents = append(documents, documentEntry{
			Name:        name,
			Size:        info.Size,
			ModifiedISO: info.Updated.UTC().Format(time.RFC3339),
			DownloadURL: "/documents/" + name,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": documents,
		"count":     len(documents),
	})
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document storage is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close() //nolint:errcheck // read-only handle

	if !validDocumentName(header.Filename) {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	contentType := documentMediaTypes[strings.ToLower(path.Ext(header.Filename))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.docs.PutObject(r.Context(), s.docPath(header.Filename), contentType, data); err != nil {
		s.logger.Error("storing document failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store document")
		return
	}

	s.logger.Info("document uploaded",
		zap.String("filename", header.Filename),
		zap.Int("size", len(data)),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"message":  "File '" + header.Filename + "' uploaded successfully",
		"filename": header.Filename,
		"size":     len(data),
	})
}

func (s *Server) downloadDocument(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document storage is not configured")
		return
	}
	filename := chi.URLParam(r, "filename")
	if !validDocumentName(filename) {
		writeError(w, http.StatusBadRequest, "Invalid file path")
		return
	}
	data, err := s.docs.GetObject(r.Context(), s.docPath(filename))
	if errors.Is(err, storage.ErrObjectNotFound) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		s.logger.Error("reading document failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read document")
		return
	}

	mediaType := documentMediaTypes[strings.ToLower(path.Ext(filename))]
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document storage is not configured")
		return
	}
	filename := chi.URLParam(r, "filename")
	if !validDocumentName(filename) {
		writeError(w, http.StatusBadRequest, "Invalid file path")
		return
	}
	err := s.docs.DeleteObject(r.Context(), s.docPath(filename))
	if errors.Is(err, storage.ErrObjectNotFound) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		s.logger.Error("deleting document failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "File '" + filename + "' deleted",
	})
}
