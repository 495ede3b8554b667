// Package service wires the score store, the ranking engine, the cache and
// the ingestion pipeline into the operations the HTTP API exposes.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/cache"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/mq/kafka"
	eventqueue "github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/mq/queue"
	workerpool "github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/mq/worker"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/repository"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/auth"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/dedupe"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/ranking"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/metrics"
)

const devSecret = "planewar-dev-secret"

// consumer is the broker side of ingestion.
type consumer interface {
	Start(ctx context.Context)
	Stop() error
}

// Service implements the API dependencies for the score server.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	engine     *ranking.Engine
	cache      cache.Cache
	issuer     *auth.Issuer
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	ingestor   *kafka.Ingestor
	consumer   consumer

	// Configuration
	bcryptCost   int
	topN         int
	strictLevels bool
	workerCount  int
	queueSize    int
	dedupeSize   int
	kafkaCfg     *kafka.Config

	// State
	started bool
	// writeGen counts score writes so a board computed across a write is
	// not cached.
	writeGen atomic.Uint64

	logger logger.Logger
}

// New constructs a Service. Components not supplied through options get
// in-process defaults.
func New(opts ...Option) *Service {
	s := &Service{
		bcryptCost:  10,
		topN:        ranking.DefaultTopN,
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  100_000,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.issuer == nil {
		s.issuer = auth.NewIssuer(devSecret)
	}

	s.engine = ranking.NewEngine(s.store,
		ranking.WithTopN(s.topN),
		ranking.WithStrictLevels(s.strictLevels),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.ingestor = kafka.NewIngestor(s.eventQueue, s.deduper)
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s)

	return s
}

// Start launches the ingestion workers and, when configured, the Kafka
// consumer. Canceling ctx stops the consumer but not the workers: they run
// until Stop closes the queue, so accepted events are still appended.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting score service...")

	if s.kafkaCfg != nil && s.consumer == nil {
		c, err := kafka.NewConsumer(*s.kafkaCfg, s.ingestor)
		if err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		s.consumer = c
	}

	s.workerPool.Start(context.WithoutCancel(ctx))
	if s.consumer != nil {
		s.consumer.Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "score service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("topN", s.topN),
		logger.Bool("kafka", s.consumer != nil),
	)
	return nil
}

// Stop stops consuming, drains the ingestion queue and closes the cache and
// the store. The service cannot be restarted afterwards.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info(ctx, "stopping score service...")

	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error(ctx, "error stopping kafka consumer", logger.Error(err))
		}
	}
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "error draining workers", logger.Error(err))
	}
	if err := s.cache.Close(); err != nil {
		s.logger.Error(ctx, "error closing cache", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	s.started = false
	s.logger.Info(ctx, "score service stopped")
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"topN":        s.topN,
		"kafka":       s.consumer != nil,
		"queueLength": s.eventQueue.Len(),
		"dedupeCount": s.deduper.Size(),
	}

	if count, err := s.store.Count(ctx); err == nil {
		stats["scoreRecords"] = count
		metrics.UpdateScoreRecordsTotal(count)
	} else {
		s.logger.Warn(ctx, "failed to count score records", logger.Error(err))
	}
	return stats
}
