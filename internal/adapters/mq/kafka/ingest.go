package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/mq/queue"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/dedupe"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/metrics"
)

const defaultRetryInterval = 10 * time.Millisecond

// Enqueuer accepts decoded events.
type Enqueuer interface {
	Enqueue(ctx context.Context, e model.ScoreEvent) error
}

// Ingestor turns raw message payloads into queued score events. A payload
// is either queued, skipped (malformed or duplicate), or rejected with an
// error so the broker redelivers it.
type Ingestor struct {
	queue         Enqueuer
	deduper       dedupe.Deduper
	retryInterval time.Duration
	logger        logger.Logger
}

// NewIngestor creates an Ingestor feeding q.
func NewIngestor(q Enqueuer, d dedupe.Deduper) *Ingestor {
	return &Ingestor{
		queue:         q,
		deduper:       d,
		retryInterval: defaultRetryInterval,
		logger:        logger.Named("kafka-ingest"),
	}
}

// Ingest decodes payload and queues it. A full queue is retried until ctx
// ends. Returns nil for payloads that should be acknowledged.
func (in *Ingestor) Ingest(ctx context.Context, payload []byte) error {
	metrics.RecordEventConsumed()

	var ev model.ScoreEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		metrics.RecordEventInvalid()
		in.logger.Warn(ctx, "failed to unmarshal score event", logger.Error(err))
		return nil
	}
	if _, err := ev.Validate(); err != nil {
		metrics.RecordEventInvalid()
		in.logger.Warn(ctx, "invalid score event",
			logger.String("event_id", ev.EventID),
			logger.Error(err),
		)
		return nil
	}

	if in.deduper.SeenAndRecord(ctx, ev.DedupeKey()) {
		metrics.RecordEventDuplicate()
		in.logger.Debug(ctx, "duplicate score event", logger.String("event_id", ev.EventID))
		return nil
	}

	if err := in.enqueue(ctx, ev); err != nil {
		in.deduper.Unrecord(ctx, ev.DedupeKey())
		return fmt.Errorf("enqueue event %s: %w", ev.EventID, err)
	}
	return nil
}

func (in *Ingestor) enqueue(ctx context.Context, ev model.ScoreEvent) error {
	for {
		err := in.queue.Enqueue(ctx, ev)
		if !errors.Is(err, queue.ErrFull) {
			return err
		}

		t := time.NewTimer(in.retryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
