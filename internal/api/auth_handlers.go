package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/auth"
)

const authCookieName = "auth_token"

func (s *Server) sendCode(w http.ResponseWriter, r *http.Request) {
	if s.authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "authentication is not configured")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	err := s.authSvc.SendCode(r.Context(), req.Email)
	switch {
	case errors.Is(err, auth.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "User not found. Please contact administrator.")
	case errors.Is(err, auth.ErrDomainNotAllowed):
		writeError(w, http.StatusForbidden, "Email domain not allowed")
	case err != nil:
		s.logger.Error("sending auth code failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to send authentication email")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"message":            "Authentication code sent to your email",
			"expires_in_minutes": int(s.cfg.Auth.CodeExpiryMinutes),
		})
	}
}

func (s *Server) verifyCode(w http.ResponseWriter, r *http.Request) {
	if s.authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "authentication is not configured")
		return
	}
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	session, err := s.authSvc.VerifyCode(r.Context(), req.Email, req.Code)
	switch {
	case errors.Is(err, auth.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, auth.ErrInvalidCode):
		writeError(w, http.StatusUnauthorized, "Invalid or expired authentication code")
		return
	case err != nil:
		s.logger.Error("verifying auth code failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Verification failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Auth.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.authSvc.SessionValidity().Seconds()),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"email":         session.Email,
		"expires_at":    session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	if s.authSvc == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	cookie, err := r.Cookie(authCookieName)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	email, expiresAt, err := s.authSvc.CheckToken(cookie.Value)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"email":         email,
		"expires_at":    expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
