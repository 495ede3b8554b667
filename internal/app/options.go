package service

import (
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/cache"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/mq/kafka"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/repository"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/auth"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCache puts a leaderboard cache in front of the ranking engine.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithIssuer sets the token issuer used by Login and Authenticate.
func WithIssuer(issuer *auth.Issuer) Option {
	return func(s *Service) {
		if issuer != nil {
			s.issuer = issuer
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithTopN sets how many rows each leaderboard keeps.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithStrictLevels makes ByLevel fail for levels without records.
func WithStrictLevels(strict bool) Option {
	return func(s *Service) {
		s.strictLevels = strict
	}
}

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the ingestion queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many event ids are remembered for deduplication.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithKafka enables the Kafka score event consumer.
func WithKafka(cfg kafka.Config) Option {
	return func(s *Service) {
		s.kafkaCfg = &cfg
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
