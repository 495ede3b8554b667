package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/repository"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/auth"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type accountResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Token    string    `json:"token,omitempty"`
}

// handleRegister handles POST /auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Request must be JSON")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	p, err := s.deps.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, model.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "missing_fields", "Missing fields")
		return
	case errors.Is(err, repository.ErrPlayerExists):
		writeError(w, http.StatusConflict, "username_taken", "Username taken")
		return
	case errors.Is(err, repository.ErrEmailExists):
		writeError(w, http.StatusConflict, "email_taken", "Email taken")
		return
	case err != nil:
		s.logger.Error(r.Context(), "register failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse{
		Success:  true,
		Message:  "Registration successful",
		UserID:   p.ID,
		Username: p.Username,
	})
}

// handleLogin handles POST /api/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Request must be JSON")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	sess, err := s.deps.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, model.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "missing_fields", "Username and password required")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	case err != nil:
		s.logger.Error(r.Context(), "login failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{
		Success:  true,
		Message:  "Login successful",
		UserID:   sess.PlayerID,
		Username: sess.Username,
		Token:    sess.Token,
	})
}

// handleDeleteMe handles DELETE /api/me.
func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	err := s.deps.DeletePlayer(r.Context(), p.PlayerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "player_not_found", "Player not found")
		return
	case err != nil:
		s.logger.Error(r.Context(), "delete player failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
