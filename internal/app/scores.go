package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/repository"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/metrics"
)

// SubmitScore appends a score for the player. It is the single write path
// for scores: the HTTP handler and the ingestion workers both call it.
func (s *Service) SubmitScore(ctx context.Context, playerID uuid.UUID, level int, score int64) (model.ScoreRecord, error) {
	rec, err := s.store.AppendScore(ctx, playerID, level, score)
	if err != nil {
		metrics.RecordScoreRejected(rejectReason(err))
		return model.ScoreRecord{}, fmt.Errorf("submit score: %w", err)
	}

	metrics.RecordScoreSubmitted()
	s.invalidate(ctx)
	s.logger.Debug(ctx, "score appended",
		logger.String("player_id", playerID.String()),
		logger.Int("level", level),
		logger.Int64("score", score),
	)
	return rec, nil
}

// Enqueue hands ev to the ingestion workers. Returns true when the player
// already sent this event id, in which case nothing is queued. A full queue yields
// queue.ErrFull.
func (s *Service) Enqueue(ctx context.Context, ev model.ScoreEvent) (bool, error) {
	if _, err := ev.Validate(); err != nil {
		metrics.RecordEventInvalid()
		return false, err
	}

	if s.deduper.SeenAndRecord(ctx, ev.DedupeKey()) {
		metrics.RecordEventDuplicate()
		return true, nil
	}
	if err := s.eventQueue.Enqueue(ctx, ev); err != nil {
		s.deduper.Unrecord(ctx, ev.DedupeKey())
		return false, fmt.Errorf("enqueue event %s: %w", ev.EventID, err)
	}
	return false, nil
}

// IngestPayload queues a raw JSON event the way the Kafka consumer does.
func (s *Service) IngestPayload(ctx context.Context, payload []byte) error {
	return s.ingestor.Ingest(ctx, payload)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "unknown_player"
	case errors.Is(err, repository.ErrInvalidScore):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "store_error"
	}
}
