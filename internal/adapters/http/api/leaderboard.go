package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/ranking"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

// handleLevels handles GET /api/leaderboard/levels.
func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.deps.Levels(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "levels query failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

// handleOverall handles GET /api/leaderboard/overall.
func (s *Server) handleOverall(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Overall(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "overall query failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleLevelBoard handles GET /api/leaderboard/levels/{level}. A level
// nobody has played is reported as unknown rather than as an empty board.
func (s *Server) handleLevelBoard(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Level must be an integer")
		return
	}

	levels, err := s.deps.Levels(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "levels query failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if !slices.Contains(levels, level) {
		writeError(w, http.StatusNotFound, "unknown_level", fmt.Sprintf("Level %d not found", level))
		return
	}

	entries, err := s.deps.ByLevel(r.Context(), level)
	switch {
	case errors.Is(err, ranking.ErrUnknownLevel):
		writeError(w, http.StatusNotFound, "unknown_level", fmt.Sprintf("Level %d not found", level))
		return
	case err != nil:
		s.logger.Error(r.Context(), "level query failed", logger.Int("level", level), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
