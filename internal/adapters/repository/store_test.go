package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
)

// exerciseStore runs the behavior every Store implementation shares. Player
// names are prefixed so the suite can run against a shared database.
func exerciseStore(t *testing.T, s Store, prefix string) {
	t.Helper()
	ctx := context.Background()

	newPlayer := func(name string) model.Player {
		t.Helper()
		p, err := s.CreatePlayer(ctx, model.Player{
			Username:     prefix + name,
			Email:        prefix + name + "@example.com",
			PasswordHash: "hash",
		})
		if err != nil {
			t.Fatalf("create player %s: %v", name, err)
		}
		if p.ID == uuid.Nil || p.CreatedAt.IsZero() {
			t.Fatalf("create player %s: id and created_at must be assigned, got %+v", name, p)
		}
		return p
	}

	alice := newPlayer("alice")
	bob := newPlayer("bob")

	t.Run("duplicate username", func(t *testing.T) {
		_, err := s.CreatePlayer(ctx, model.Player{Username: alice.Username, Email: prefix + "other@example.com", PasswordHash: "x"})
		if !errors.Is(err, ErrPlayerExists) {
			t.Fatalf("expected ErrPlayerExists, got %v", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := s.CreatePlayer(ctx, model.Player{Username: prefix + "carol", Email: alice.Email, PasswordHash: "x"})
		if !errors.Is(err, ErrEmailExists) {
			t.Fatalf("expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("lookup", func(t *testing.T) {
		byName, err := s.PlayerByName(ctx, alice.Username)
		if err != nil || byName.ID != alice.ID {
			t.Fatalf("PlayerByName: %+v, %v", byName, err)
		}
		byID, err := s.PlayerByID(ctx, bob.ID)
		if err != nil || byID.Username != bob.Username {
			t.Fatalf("PlayerByID: %+v, %v", byID, err)
		}
		if _, err := s.PlayerByName(ctx, prefix+"nobody"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("append validates", func(t *testing.T) {
		if _, err := s.AppendScore(ctx, alice.ID, 0, 10); !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("level 0: expected ErrInvalidScore, got %v", err)
		}
		if _, err := s.AppendScore(ctx, alice.ID, 1, -1); !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("negative score: expected ErrInvalidScore, got %v", err)
		}
		if _, err := s.AppendScore(ctx, uuid.New(), 1, 10); !errors.Is(err, ErrNotFound) {
			t.Fatalf("unknown player: expected ErrNotFound, got %v", err)
		}
	})

	appendScore := func(p model.Player, level int, score int64) model.ScoreRecord {
		t.Helper()
		rec, err := s.AppendScore(ctx, p.ID, level, score)
		if err != nil {
			t.Fatalf("append %s L%d %d: %v", p.Username, level, score, err)
		}
		return rec
	}

	first := appendScore(alice, 1, 100)
	appendScore(alice, 1, 90)
	second := appendScore(bob, 1, 100)
	appendScore(alice, 3, 50)
	appendScore(bob, 2, 70)

	t.Run("timestamps increase", func(t *testing.T) {
		if !second.CreatedAt.After(first.CreatedAt) {
			t.Fatalf("expected %v after %v", second.CreatedAt, first.CreatedAt)
		}
	})

	t.Run("personal bests per level", func(t *testing.T) {
		bests, err := s.PersonalBests(ctx, 1)
		if err != nil {
			t.Fatalf("PersonalBests: %v", err)
		}
		mine := only(bests, prefix)
		if len(mine) != 2 {
			t.Fatalf("expected 2 bests on level 1, got %d", len(mine))
		}
		for _, b := range mine {
			if b.Level != 1 || b.Score != 100 {
				t.Errorf("unexpected best %+v", b)
			}
			if b.PlayerID == alice.ID && !b.AchievedAt.Equal(first.CreatedAt) {
				t.Errorf("alice best should date from her first 100, got %v want %v", b.AchievedAt, first.CreatedAt)
			}
		}
	})

	t.Run("personal bests all levels", func(t *testing.T) {
		bests, err := s.PersonalBests(ctx, model.AllLevels)
		if err != nil {
			t.Fatalf("PersonalBests: %v", err)
		}
		if n := len(only(bests, prefix)); n != 4 {
			t.Fatalf("expected 4 bests, got %d", n)
		}
	})

	t.Run("levels", func(t *testing.T) {
		levels, err := s.Levels(ctx)
		if err != nil {
			t.Fatalf("Levels: %v", err)
		}
		for _, want := range []int{1, 2, 3} {
			if !containsInt(levels, want) {
				t.Errorf("expected level %d in %v", want, levels)
			}
		}
		for i := 1; i < len(levels); i++ {
			if levels[i] <= levels[i-1] {
				t.Fatalf("levels not strictly ascending: %v", levels)
			}
		}
	})

	t.Run("player scores newest first", func(t *testing.T) {
		recs, err := s.PlayerScores(ctx, alice.ID)
		if err != nil {
			t.Fatalf("PlayerScores: %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("expected 3 records, got %d", len(recs))
		}
		if recs[0].Level != 3 || recs[2].Score != 100 {
			t.Errorf("unexpected order: %+v", recs)
		}
	})

	t.Run("delete player removes records", func(t *testing.T) {
		before, err := s.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if err := s.DeletePlayer(ctx, alice.ID); err != nil {
			t.Fatalf("DeletePlayer: %v", err)
		}
		after, err := s.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if before-after != 3 {
			t.Fatalf("expected 3 records removed, got %d", before-after)
		}
		if _, err := s.PlayerByID(ctx, alice.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		bests, _ := s.PersonalBests(ctx, model.AllLevels)
		for _, b := range bests {
			if b.PlayerID == alice.ID {
				t.Fatalf("orphaned best for deleted player: %+v", b)
			}
		}
		if err := s.DeletePlayer(ctx, alice.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("second delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("name is reusable after delete", func(t *testing.T) {
		p, err := s.CreatePlayer(ctx, model.Player{Username: alice.Username, Email: alice.Email, PasswordHash: "x"})
		if err != nil {
			t.Fatalf("re-create: %v", err)
		}
		if p.ID == alice.ID {
			t.Fatal("expected a fresh id")
		}
	})
}

func only(bests []model.PersonalBest, prefix string) []model.PersonalBest {
	var out []model.PersonalBest
	for _, b := range bests {
		if len(b.Username) >= len(prefix) && b.Username[:len(prefix)] == prefix {
			out = append(out, b)
		}
	}
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func uniquePrefix() string {
	return fmt.Sprintf("t%s_", uuid.NewString()[:8])
}
