// Package worker drains the score event queue and appends the scores.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Submitter appends a validated score. The service's submission path
// implements it so that queued and synchronous scores share one write path.
type Submitter interface {
	SubmitScore(ctx context.Context, playerID uuid.UUID, level int, score int64) (model.ScoreRecord, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Next(ctx context.Context) (model.ScoreEvent, error)
	Close() error
}

// Worker processes events until the queue is drained or ctx is canceled.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing events.
type InMemoryWorker struct {
	queue     Queue
	submitter Submitter
	name      string
	active    *atomic.Int64

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, submitter Submitter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		submitter: submitter,
		name:      "worker",
		active:    &atomic.Int64{},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run pulls events until the queue reports closed and empty, or ctx ends.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		ev, err := w.queue.Next(ctx)
		if err != nil {
			return
		}

		n := w.active.Add(1)
		metrics.UpdateWorkerActiveCount(int(n))
		if err := w.process(ctx, ev); err != nil {
			w.logger.Error(ctx, "error processing score event",
				logger.String("event_id", ev.EventID),
				logger.Error(err),
			)
		}
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
	}
}

// Shutdown waits for Run to return. The caller stops the feed by closing the
// queue or canceling Run's context.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, ev model.ScoreEvent) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	playerID, err := ev.Validate()
	if err != nil {
		metrics.RecordEventInvalid()
		metrics.RecordErrorByComponent("worker", "invalid_event")
		w.logger.Warn(ctx, "dropping invalid score event",
			logger.String("event_id", ev.EventID),
			logger.Error(err),
		)
		return nil
	}

	rec, err := w.submitter.SubmitScore(ctx, playerID, ev.Level, ev.Score)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "submit_error")
		return fmt.Errorf("submit score for event %s: %w", ev.EventID, err)
	}

	w.logger.Debug(ctx, "score event appended",
		logger.String("event_id", ev.EventID),
		logger.Int64("record_id", rec.ID),
		logger.Int("level", rec.Level),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	started sync.Once
	running atomic.Bool

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers (at least one).
func NewPool(workerCount int, queue Queue, submitter Submitter) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		name := "worker-" + strconv.Itoa(i)
		w := NewInMemoryWorker(queue, submitter, WithName(name), WithLogger(p.logger.Named(name)))
		w.active = &p.active
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool. Subsequent calls are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.started.Do(func() {
		p.running.Store(true)
		for _, w := range p.workers {
			go w.Run(ctx)
		}
		p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
	})
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	if !p.running.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for _, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}
