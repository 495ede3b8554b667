package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/mq/queue"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/repository"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

// scoreRequest keeps the raw fields so that missing values and wrong types
// get distinct errors.
type scoreRequest struct {
	Score json.RawMessage `json:"score"`
	Level json.RawMessage `json:"level"`
}

func (req scoreRequest) parse() (level int, score int64, msg string) {
	if len(req.Score) == 0 || len(req.Level) == 0 || string(req.Score) == "null" || string(req.Level) == "null" {
		return 0, 0, "Missing score or level"
	}
	if json.Unmarshal(req.Score, &score) != nil || json.Unmarshal(req.Level, &level) != nil {
		return 0, 0, "Invalid data types for score or level"
	}
	if score < 0 {
		return 0, 0, "Score must not be negative"
	}
	if level <= 0 {
		return 0, 0, "Level must be a positive integer"
	}
	return level, score, ""
}

type submitResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Record  model.ScoreRecord `json:"record"`
}

// handleSubmitScore handles POST /api/submit_score.
func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Request must be JSON")
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}
	level, score, msg := req.parse()
	if msg != "" {
		writeError(w, http.StatusBadRequest, "bad_request", msg)
		return
	}

	p, _ := PrincipalFrom(r.Context())
	rec, err := s.deps.SubmitScore(r.Context(), p.PlayerID, level, score)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "player_not_found", "Player not found")
		return
	case errors.Is(err, repository.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	case err != nil:
		s.logger.Error(r.Context(), "submit score failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		Success: true,
		Message: fmt.Sprintf("Score submitted successfully for level %d.", level),
		Record:  rec,
	})
}

// eventRequest is an asynchronously processed score. The event id makes
// retries idempotent.
type eventRequest struct {
	EventID string          `json:"event_id"`
	Score   json.RawMessage `json:"score"`
	Level   json.RawMessage `json:"level"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// handlePostEvent handles POST /api/events.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Request must be JSON")
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}
	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Missing event_id")
		return
	}
	level, score, msg := scoreRequest{Score: req.Score, Level: req.Level}.parse()
	if msg != "" {
		writeError(w, http.StatusBadRequest, "bad_request", msg)
		return
	}

	p, _ := PrincipalFrom(r.Context())
	dup, err := s.deps.Enqueue(r.Context(), model.ScoreEvent{
		EventID:  req.EventID,
		PlayerID: p.PlayerID.String(),
		Level:    level,
		Score:    score,
	})
	switch {
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure.Error())
		return
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting_down", "Server is shutting down")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// handleMyScores handles GET /api/me/scores.
func (s *Server) handleMyScores(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	recs, err := s.deps.PlayerScores(r.Context(), p.PlayerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "player_not_found", "Player not found")
		return
	case err != nil:
		s.logger.Error(r.Context(), "player scores failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
