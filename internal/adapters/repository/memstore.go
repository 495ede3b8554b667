package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/ranking"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/metrics"
)

// timestampResolution matches the precision Postgres keeps for timestamptz,
// so both stores order the same history the same way.
const timestampResolution = time.Microsecond

// MemoryStore is an in-process Store. Records are kept in insertion order
// and stamped with strictly increasing timestamps.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[uuid.UUID]model.Player
	byName  map[string]uuid.UUID
	byEmail map[string]uuid.UUID
	scores  []model.ScoreRecord
	nextID  int64
	last    time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		players: make(map[uuid.UUID]model.Player),
		byName:  make(map[string]uuid.UUID),
		byEmail: make(map[string]uuid.UUID),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases nothing; it exists to satisfy Store.
func (s *MemoryStore) Close() error { return nil }

// stamp returns the next record timestamp. Must be called with s.mu held.
func (s *MemoryStore) stamp() time.Time {
	ts := s.now().UTC().Truncate(timestampResolution)
	if !ts.After(s.last) {
		ts = s.last.Add(timestampResolution)
	}
	s.last = ts
	return ts
}

// CreatePlayer implements PlayerStore.
func (s *MemoryStore) CreatePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if err := ctx.Err(); err != nil {
		return model.Player{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[p.Username]; ok {
		return model.Player{}, fmt.Errorf("%w: %s", ErrPlayerExists, p.Username)
	}
	if _, ok := s.byEmail[p.Email]; ok && p.Email != "" {
		return model.Player{}, fmt.Errorf("%w: %s", ErrEmailExists, p.Email)
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}

	s.players[p.ID] = p
	s.byName[p.Username] = p.ID
	if p.Email != "" {
		s.byEmail[p.Email] = p.ID
	}
	return p, nil
}

// PlayerByName implements PlayerStore.
func (s *MemoryStore) PlayerByName(ctx context.Context, username string) (model.Player, error) {
	if err := ctx.Err(); err != nil {
		return model.Player{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return model.Player{}, fmt.Errorf("player %q: %w", username, ErrNotFound)
	}
	return s.players[id], nil
}

// PlayerByID implements PlayerStore.
func (s *MemoryStore) PlayerByID(ctx context.Context, id uuid.UUID) (model.Player, error) {
	if err := ctx.Err(); err != nil {
		return model.Player{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// DeletePlayer implements PlayerStore. Records and player go under a single
// write lock, so no reader observes records of a deleted player.
func (s *MemoryStore) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("player %s: %w", id, ErrNotFound)
	}

	s.scores = slices.DeleteFunc(s.scores, func(r model.ScoreRecord) bool {
		return r.PlayerID == id
	})
	delete(s.players, id)
	delete(s.byName, p.Username)
	delete(s.byEmail, p.Email)

	metrics.UpdateScoreRecordsTotal(len(s.scores))
	return nil
}

// AppendScore implements ScoreStore.
func (s *MemoryStore) AppendScore(ctx context.Context, playerID uuid.UUID, level int, score int64) (model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoreAppendLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ctx.Err(); err != nil {
		return model.ScoreRecord{}, err
	}
	if err := model.ValidateScore(level, score); err != nil {
		return model.ScoreRecord{}, fmt.Errorf("%w: %w", ErrInvalidScore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[playerID]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.ScoreRecord{}, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}

	s.nextID++
	rec := model.ScoreRecord{
		ID:        s.nextID,
		PlayerID:  playerID,
		Level:     level,
		Score:     score,
		CreatedAt: s.stamp(),
	}
	s.scores = append(s.scores, rec)

	metrics.UpdateScoreRecordsTotal(len(s.scores))
	return rec, nil
}

// PersonalBests implements ScoreStore.
func (s *MemoryStore) PersonalBests(ctx context.Context, level int) ([]model.PersonalBest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	records := make([]ranking.Record, 0, len(s.scores))
	for _, r := range s.scores {
		if level != model.AllLevels && r.Level != level {
			continue
		}
		records = append(records, ranking.Record{
			PlayerID: r.PlayerID,
			Username: s.players[r.PlayerID].Username,
			Level:    r.Level,
			Score:    r.Score,
			At:       r.CreatedAt,
		})
	}
	s.mu.RUnlock()

	return ranking.PersonalBests(records), nil
}

// Levels implements ScoreStore.
func (s *MemoryStore) Levels(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	levels := make([]int, 0, len(s.scores))
	for _, r := range s.scores {
		levels = append(levels, r.Level)
	}
	s.mu.RUnlock()

	slices.Sort(levels)
	return slices.Compact(levels), nil
}

// PlayerScores implements ScoreStore.
func (s *MemoryStore) PlayerScores(ctx context.Context, playerID uuid.UUID) ([]model.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.players[playerID]; !ok {
		return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}

	out := make([]model.ScoreRecord, 0)
	for i := len(s.scores) - 1; i >= 0; i-- {
		if s.scores[i].PlayerID == playerID {
			out = append(out, s.scores[i])
		}
	}
	return out, nil
}

// Count implements ScoreStore.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scores), nil
}
