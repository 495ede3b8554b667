// Package api serves the score server's HTTP interface.
package api

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/auth"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Register(ctx context.Context, username, email, password string) (model.Player, error)
	Login(ctx context.Context, username, password string) (types.Session, error)
	Authenticate(ctx context.Context, token string) (auth.Principal, error)

	SubmitScore(ctx context.Context, playerID uuid.UUID, level int, score int64) (model.ScoreRecord, error)
	// Enqueue queues an event for the ingestion workers. Returns true for an
	// already seen event id.
	Enqueue(ctx context.Context, ev model.ScoreEvent) (bool, error)
	PlayerScores(ctx context.Context, playerID uuid.UUID) ([]model.ScoreRecord, error)
	DeletePlayer(ctx context.Context, playerID uuid.UUID) error

	ByLevel(ctx context.Context, level int) ([]Entry, error)
	Overall(ctx context.Context) ([]Entry, error)
	Levels(ctx context.Context) ([]int, error)

	GetStats(ctx context.Context) map[string]interface{}
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	deps   Dependencies
	logger logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps, logger: logger.Named("api")}
}

// Router builds the chi router with every route and middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", HandleHealth)
	r.Get("/stats", s.handleStats)

	r.Post("/auth/register", s.handleRegister)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(s.deps))
			r.Post("/submit_score", s.handleSubmitScore)
			r.Post("/events", s.handlePostEvent)
			r.Get("/me/scores", s.handleMyScores)
			r.Delete("/me", s.handleDeleteMe)
		})

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/levels", s.handleLevels)
			r.Get("/overall", s.handleOverall)
			r.Get("/levels/{level}", s.handleLevelBoard)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Success: false, Code: code, Message: message})
}

// isJSON reports whether the request declares a JSON body.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
