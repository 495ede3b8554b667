package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
)

func TestMemoryStore_Contract(t *testing.T) {
	exerciseStore(t, NewMemoryStore(), "")
}

func TestMemoryStore_MonotonicTimestamps(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return frozen }))

	p, err := s.CreatePlayer(ctx, model.Player{Username: "ace", Email: "ace@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var last time.Time
	for i := 0; i < 100; i++ {
		rec, err := s.AppendScore(ctx, p.ID, 1, int64(i))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if !rec.CreatedAt.After(last) {
			t.Fatalf("record %d: %v not after %v", i, rec.CreatedAt, last)
		}
		if rec.CreatedAt.Location() != time.UTC {
			t.Fatalf("record %d: timestamp not UTC", i)
		}
		last = rec.CreatedAt
	}
}

func TestMemoryStore_EmptyQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	bests, err := s.PersonalBests(ctx, 999)
	if err != nil || len(bests) != 0 {
		t.Fatalf("expected no bests, got %v, %v", bests, err)
	}
	levels, err := s.Levels(ctx)
	if err != nil || levels == nil || len(levels) != 0 {
		t.Fatalf("expected empty non-nil levels, got %v, %v", levels, err)
	}
	if _, err := s.PlayerScores(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()

	if _, err := s.PersonalBests(ctx, model.AllLevels); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := s.Levels(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := s.AppendScore(ctx, uuid.New(), 1, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const players = 8
	const perPlayer = 250

	ids := make([]uuid.UUID, players)
	for i := range ids {
		p, err := s.CreatePlayer(ctx, model.Player{Username: uuid.NewString(), Email: uuid.NewString()})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids[i] = p.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPlayer; j++ {
				if _, err := s.AppendScore(ctx, id, 1+j%3, int64(j)); err != nil {
					t.Errorf("append: %v", err)
					return
				}
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := s.PersonalBests(ctx, model.AllLevels); err != nil {
					t.Errorf("bests: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	n, _ := s.Count(ctx)
	if n != players*perPlayer {
		t.Fatalf("expected %d records, got %d", players*perPlayer, n)
	}
	bests, _ := s.PersonalBests(ctx, model.AllLevels)
	if len(bests) != players*3 {
		t.Fatalf("expected %d bests, got %d", players*3, len(bests))
	}
}

func BenchmarkMemoryStore_PersonalBests(b *testing.B) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 200; i++ {
		p, _ := s.CreatePlayer(ctx, model.Player{Username: uuid.NewString(), Email: uuid.NewString()})
		for j := 0; j < 50; j++ {
			_, _ = s.AppendScore(ctx, p.ID, 1+j%5, int64(j*7%100))
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.PersonalBests(ctx, model.AllLevels); err != nil {
			b.Fatal(err)
		}
	}
}
