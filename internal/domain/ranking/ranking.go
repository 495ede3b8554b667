// Package ranking computes leaderboards from score history.
//
// Every board is built in two steps: score records are reduced to personal
// bests, one per (player, level), and the resulting candidates are ordered by
// Rank. Rank is the only place ordering and rank numbers are decided, so the
// per-level and overall boards share one tie-break policy:
//
//  1. higher score first
//  2. earlier tie-break timestamp first
//  3. username ascending
//
// Ranks are 1-based and dense: equal keys still get distinct, consecutive
// ranks.
package ranking

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
)

// Candidate is an unranked leaderboard row.
type Candidate struct {
	Username string
	Score    int64
	TieBreak time.Time
}

// Record is a score attributed to a named player.
type Record struct {
	PlayerID uuid.UUID
	Username string
	Level    int
	Score    int64
	At       time.Time
}

// compare orders candidates best first.
func compare(a, b Candidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := a.TieBreak.Compare(b.TieBreak); c != 0 {
		return c
	}
	return strings.Compare(a.Username, b.Username)
}

// Rank orders candidates, numbers them from 1 and keeps at most limit rows.
// A non-positive limit keeps every row. The input slice is not modified.
func Rank(cands []Candidate, limit int) []types.Entry {
	sorted := slices.Clone(cands)
	slices.SortFunc(sorted, compare)

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]types.Entry, 0, len(sorted))
	for i, c := range sorted {
		out = append(out, types.Entry{
			Rank:      i + 1,
			Username:  c.Username,
			Score:     c.Score,
			Timestamp: c.TieBreak,
		})
	}
	return out
}

type bestKey struct {
	player uuid.UUID
	level  int
}

// PersonalBests reduces records to one best per (player, level). AchievedAt is
// the earliest time the best score was recorded. The result is ordered by
// level, then username.
func PersonalBests(records []Record) []model.PersonalBest {
	index := make(map[bestKey]int, len(records))
	bests := make([]model.PersonalBest, 0)

	for _, r := range records {
		k := bestKey{player: r.PlayerID, level: r.Level}
		i, ok := index[k]
		if !ok {
			index[k] = len(bests)
			bests = append(bests, model.PersonalBest{
				PlayerID:   r.PlayerID,
				Username:   r.Username,
				Level:      r.Level,
				Score:      r.Score,
				AchievedAt: r.At,
			})
			continue
		}

		b := &bests[i]
		switch {
		case r.Score > b.Score:
			b.Score = r.Score
			b.AchievedAt = r.At
		case r.Score == b.Score && r.At.Before(b.AchievedAt):
			b.AchievedAt = r.At
		}
	}

	slices.SortFunc(bests, func(a, b model.PersonalBest) int {
		if c := cmp.Compare(a.Level, b.Level); c != 0 {
			return c
		}
		return strings.Compare(a.Username, b.Username)
	})
	return bests
}

// LevelCandidates turns the bests recorded on level into candidates.
func LevelCandidates(bests []model.PersonalBest, level int) []Candidate {
	out := make([]Candidate, 0, len(bests))
	for _, b := range bests {
		if b.Level != level {
			continue
		}
		out = append(out, Candidate{Username: b.Username, Score: b.Score, TieBreak: b.AchievedAt})
	}
	return out
}

// OverallCandidates sums each player's bests across levels. The tie-break
// timestamp is the earliest of the player's per-level best timestamps.
func OverallCandidates(bests []model.PersonalBest) []Candidate {
	index := make(map[uuid.UUID]int)
	out := make([]Candidate, 0)

	for _, b := range bests {
		i, ok := index[b.PlayerID]
		if !ok {
			index[b.PlayerID] = len(out)
			out = append(out, Candidate{Username: b.Username, Score: b.Score, TieBreak: b.AchievedAt})
			continue
		}
		c := &out[i]
		c.Score += b.Score
		if b.AchievedAt.Before(c.TieBreak) {
			c.TieBreak = b.AchievedAt
		}
	}
	return out
}

// DistinctLevels returns the levels present in bests, ascending.
func DistinctLevels(bests []model.PersonalBest) []int {
	levels := make([]int, 0)
	for _, b := range bests {
		levels = append(levels, b.Level)
	}
	slices.Sort(levels)
	return slices.Compact(levels)
}
