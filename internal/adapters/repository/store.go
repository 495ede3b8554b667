// Package repository stores players and their score history.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
)

// ScoreStore is the append-only score history.
type ScoreStore interface {
	// AppendScore stores a new record and assigns its timestamp. Returns
	// ErrNotFound if the player does not exist and ErrInvalidScore if the
	// level or value is out of range.
	AppendScore(ctx context.Context, playerID uuid.UUID, level int, score int64) (model.ScoreRecord, error)

	// PersonalBests returns one best per (player, level). model.AllLevels
	// selects every level, any other value restricts to that level.
	PersonalBests(ctx context.Context, level int) ([]model.PersonalBest, error)

	// Levels returns the distinct levels with at least one record, ascending.
	Levels(ctx context.Context) ([]int, error)

	// PlayerScores returns a player's records, newest first.
	PlayerScores(ctx context.Context, playerID uuid.UUID) ([]model.ScoreRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// PlayerStore manages player accounts.
type PlayerStore interface {
	// CreatePlayer stores p, assigning ID and CreatedAt when they are zero.
	// Returns ErrPlayerExists or ErrEmailExists on conflicts.
	CreatePlayer(ctx context.Context, p model.Player) (model.Player, error)
	PlayerByName(ctx context.Context, username string) (model.Player, error)
	PlayerByID(ctx context.Context, id uuid.UUID) (model.Player, error)

	// DeletePlayer removes the player's records and then the player in one
	// transaction.
	DeletePlayer(ctx context.Context, id uuid.UUID) error
}

// Store is the full persistence surface used by the service.
type Store interface {
	ScoreStore
	PlayerStore
	Close() error
}
