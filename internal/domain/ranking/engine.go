package ranking

import (
	"context"
	"fmt"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
)

// Source is the read side of the score store used by the engine.
type Source interface {
	// PersonalBests returns one best per (player, level). level restricts the
	// result to a single level; model.AllLevels returns every level.
	PersonalBests(ctx context.Context, level int) ([]model.PersonalBest, error)
	// Levels returns the distinct levels with at least one record, ascending.
	Levels(ctx context.Context) ([]int, error)
}

// Engine answers leaderboard queries. It holds no mutable state; every call
// reads the source and recomputes, so concurrent calls are safe.
type Engine struct {
	src    Source
	topN   int
	strict bool
}

// NewEngine creates an engine reading from src.
func NewEngine(src Source, opts ...Option) *Engine {
	e := &Engine{src: src, topN: DefaultTopN}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TopN reports the configured truncation size.
func (e *Engine) TopN() int { return e.topN }

// ByLevel ranks players by their best score on level. A level without
// records yields an empty board, or ErrUnknownLevel in strict mode.
func (e *Engine) ByLevel(ctx context.Context, level int) ([]types.Entry, error) {
	if level == model.AllLevels {
		if e.strict {
			return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, level)
		}
		return []types.Entry{}, nil
	}

	bests, err := e.src.PersonalBests(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("personal bests for level %d: %w", level, err)
	}

	cands := LevelCandidates(bests, level)
	if len(cands) == 0 && e.strict {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, level)
	}
	return Rank(cands, e.topN), nil
}

// Overall ranks players by the sum of their per-level bests.
func (e *Engine) Overall(ctx context.Context) ([]types.Entry, error) {
	bests, err := e.src.PersonalBests(ctx, model.AllLevels)
	if err != nil {
		return nil, fmt.Errorf("personal bests: %w", err)
	}
	return Rank(OverallCandidates(bests), e.topN), nil
}

// Levels returns the distinct levels with recorded scores, ascending.
func (e *Engine) Levels(ctx context.Context) ([]int, error) {
	levels, err := e.src.Levels(ctx)
	if err != nil {
		return nil, fmt.Errorf("levels: %w", err)
	}
	if levels == nil {
		levels = []int{}
	}
	return levels, nil
}
