package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/repository"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/auth"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/metrics"
)

// Register creates a player account. Returns ErrMissingFields when any
// field is blank and the repository conflict errors for taken names.
func (s *Service) Register(ctx context.Context, username, email, password string) (model.Player, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return model.Player{}, ErrMissingFields
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.Player{}, err
	}

	p, err := s.store.CreatePlayer(ctx, model.Player{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return model.Player{}, fmt.Errorf("register %q: %w", username, err)
	}

	metrics.RecordPlayerRegistered()
	s.logger.Info(ctx, "player registered",
		logger.String("player_id", p.ID.String()),
		logger.String("username", p.Username),
	)
	return p, nil
}

// Login checks the credentials and issues a bearer token. Unknown players
// and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (types.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.Session{}, ErrMissingFields
	}

	p, err := s.store.PlayerByName(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordLogin("failure")
		return types.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("login %q: %w", username, err)
	}

	if err := auth.CheckPassword(p.PasswordHash, password); err != nil {
		metrics.RecordLogin("failure")
		return types.Session{}, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(auth.Principal{PlayerID: p.ID, Username: p.Username})
	if err != nil {
		return types.Session{}, err
	}

	metrics.RecordLogin("success")
	return types.Session{PlayerID: p.ID, Username: p.Username, Token: token}, nil
}

// Authenticate verifies a bearer token.
func (s *Service) Authenticate(_ context.Context, token string) (auth.Principal, error) {
	return s.issuer.Verify(token)
}

// PlayerScores returns the player's records, newest first.
func (s *Service) PlayerScores(ctx context.Context, playerID uuid.UUID) ([]model.ScoreRecord, error) {
	recs, err := s.store.PlayerScores(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("scores of %s: %w", playerID, err)
	}
	if recs == nil {
		recs = []model.ScoreRecord{}
	}
	return recs, nil
}

// DeletePlayer removes the player and every record they own.
func (s *Service) DeletePlayer(ctx context.Context, playerID uuid.UUID) error {
	if err := s.store.DeletePlayer(ctx, playerID); err != nil {
		return fmt.Errorf("delete player %s: %w", playerID, err)
	}

	metrics.RecordPlayerDeleted()
	s.invalidate(ctx)
	s.logger.Info(ctx, "player deleted", logger.String("player_id", playerID.String()))
	return nil
}
