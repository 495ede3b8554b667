package service

import (
	"context"
	"errors"
	"time"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/cache"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/metrics"
)

// Query kinds used as metric labels.
const (
	kindLevel   = "level"
	kindOverall = "overall"
	kindLevels  = "levels"
)

// ByLevel returns the ranked board of one level.
func (s *Service) ByLevel(ctx context.Context, level int) ([]types.Entry, error) {
	return cached(ctx, s, kindLevel, cache.LevelKey(level), func(ctx context.Context) ([]types.Entry, error) {
		return s.engine.ByLevel(ctx, level)
	})
}

// Overall returns the board ranked by summed per-level bests.
func (s *Service) Overall(ctx context.Context) ([]types.Entry, error) {
	return cached(ctx, s, kindOverall, cache.OverallKey(), s.engine.Overall)
}

// Levels returns the levels that have at least one score, ascending.
func (s *Service) Levels(ctx context.Context) ([]int, error) {
	return cached(ctx, s, kindLevels, cache.LevelsKey(), s.engine.Levels)
}

// cached reads key from the cache, falling back to compute on a miss or a
// cache failure. Cache failures never fail the query. A board computed
// while a write landed is returned but not cached.
func cached[T any](ctx context.Context, s *Service, kind, key string, compute func(context.Context) ([]T, error)) ([]T, error) {
	start := time.Now()
	gen := s.writeGen.Load()

	var out []T
	err := s.cache.Get(ctx, key, &out)
	switch {
	case err == nil && out != nil:
		metrics.RecordCacheHit(kind)
		metrics.RecordLeaderboardQuery(kind, float64(time.Since(start).Microseconds())/1000, len(out))
		return out, nil
	case err != nil && !errors.Is(err, cache.ErrMiss):
		metrics.RecordCacheError()
		s.logger.Warn(ctx, "leaderboard cache read failed", logger.String("key", key), logger.Error(err))
	}
	metrics.RecordCacheMiss(kind)

	out, err = compute(ctx)
	if err != nil {
		metrics.RecordLeaderboardError(kind)
		return nil, err
	}

	if s.writeGen.Load() != gen {
		metrics.RecordLeaderboardQuery(kind, float64(time.Since(start).Microseconds())/1000, len(out))
		return out, nil
	}
	if err := s.cache.Set(ctx, key, out); err != nil {
		metrics.RecordCacheError()
		s.logger.Warn(ctx, "leaderboard cache write failed", logger.String("key", key), logger.Error(err))
	} else if s.writeGen.Load() != gen {
		// A write slipped in between the check and the Set.
		s.invalidate(ctx)
	}
	metrics.RecordLeaderboardQuery(kind, float64(time.Since(start).Microseconds())/1000, len(out))
	return out, nil
}

// invalidate drops every cached board after a write.
func (s *Service) invalidate(ctx context.Context) {
	s.writeGen.Add(1)
	if err := s.cache.InvalidateAll(ctx); err != nil {
		metrics.RecordCacheError()
		s.logger.Warn(ctx, "leaderboard cache invalidation failed", logger.Error(err))
		return
	}
	metrics.RecordCacheInvalidation()
}
