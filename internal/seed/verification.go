package seed

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/ranking"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// errForeignPlayers means a board lists players this run did not create, so
// it cannot be predicted locally.
var errForeignPlayers = errors.New("board contains players from other runs")

// snapshot is one read of every board.
type snapshot struct {
	levels  []int
	overall []types.Entry
	byLevel map[int][]types.Entry
}

// check verifies properties every board must have regardless of content:
// dense ranks from 1, best first ordering and truncation to topN.
func (s *snapshot) check(topN int) error {
	if !slices.IsSorted(s.levels) || len(slices.Compact(slices.Clone(s.levels))) != len(s.levels) {
		return fmt.Errorf("levels not strictly ascending: %v", s.levels)
	}
	if err := checkBoard(s.overall, topN); err != nil {
		return fmt.Errorf("overall: %w", err)
	}
	for _, lvl := range s.levels {
		if err := checkBoard(s.byLevel[lvl], topN); err != nil {
			return fmt.Errorf("level %d: %w", lvl, err)
		}
	}
	return nil
}

func checkBoard(board []types.Entry, topN int) error {
	if len(board) > topN {
		return fmt.Errorf("%d entries exceed the limit of %d", len(board), topN)
	}
	seen := make(map[string]struct{}, len(board))
	for i, e := range board {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i, e.Rank)
		}
		if _, dup := seen[e.Username]; dup {
			return fmt.Errorf("player %q listed twice", e.Username)
		}
		seen[e.Username] = struct{}{}
		if i == 0 {
			continue
		}
		if !ordered(board[i-1], e) {
			return fmt.Errorf("entries %d and %d out of order", i, i+1)
		}
	}
	return nil
}

// ordered reports whether a may precede b.
func ordered(a, b types.Entry) bool {
	switch {
	case a.Score != b.Score:
		return a.Score > b.Score
	case !a.Timestamp.Equal(b.Timestamp):
		return a.Timestamp.Before(b.Timestamp)
	default:
		return strings.Compare(a.Username, b.Username) < 0
	}
}

// expectation is the set of boards predicted from the accepted scores.
type expectation struct {
	players map[string]struct{}
	levels  []int
	overall []types.Entry
	byLevel map[int][]types.Entry
	// exact also compares names and timestamps. It needs the server
	// timestamps, which only synchronous submissions return.
	exact bool
}

func newExpectation(acks []accepted, sessions []types.Session, topN int, exact bool) *expectation {
	bests := ranking.PersonalBests(localRecords(acks, sessions))

	exp := &expectation{
		players: make(map[string]struct{}, len(sessions)),
		levels:  ranking.DistinctLevels(bests),
		overall: ranking.Rank(ranking.OverallCandidates(bests), topN),
		byLevel: make(map[int][]types.Entry),
		exact:   exact,
	}
	for _, s := range sessions {
		if s.Username != "" {
			exp.players[s.Username] = struct{}{}
		}
	}
	for _, lvl := range exp.levels {
		exp.byLevel[lvl] = ranking.Rank(ranking.LevelCandidates(bests, lvl), topN)
	}
	return exp
}

// compare checks a snapshot against the expectation.
func (e *expectation) compare(s *snapshot) error {
	for _, b := range append([][]types.Entry{s.overall}, boards(s.byLevel)...) {
		for _, entry := range b {
			if _, ok := e.players[entry.Username]; !ok {
				return errForeignPlayers
			}
		}
	}

	if !slices.Equal(s.levels, e.levels) {
		return fmt.Errorf("levels: got %v, want %v", s.levels, e.levels)
	}
	if err := e.compareBoard(s.overall, e.overall); err != nil {
		return fmt.Errorf("overall: %w", err)
	}
	for _, lvl := range e.levels {
		if err := e.compareBoard(s.byLevel[lvl], e.byLevel[lvl]); err != nil {
			return fmt.Errorf("level %d: %w", lvl, err)
		}
	}
	return nil
}

func (e *expectation) compareBoard(got, want []types.Entry) error {
	if len(got) != len(want) {
		return fmt.Errorf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Score != w.Score {
			return fmt.Errorf("rank %d: got score %d, want %d", i+1, g.Score, w.Score)
		}
		if e.exact && (g.Username != w.Username || !g.Timestamp.Equal(w.Timestamp)) {
			return fmt.Errorf("rank %d: got %s@%s, want %s@%s", i+1,
				g.Username, g.Timestamp, w.Username, w.Timestamp)
		}
	}
	return nil
}

func boards(m map[int][]types.Entry) [][]types.Entry {
	out := make([][]types.Entry, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	return out
}

// savedRun is the on-disk form of a run.
type savedRun struct {
	Seed        int64        `json:"seed"`
	Players     []FakePlayer `json:"players"`
	Submissions []Submission `json:"submissions"`
}

// saveRun writes the generated players and scores as JSON.
func saveRun(filename string, seed int64, players []FakePlayer, subs []Submission) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(savedRun{Seed: seed, Players: players, Submissions: subs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}
	return nil
}
