// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) returns a Config holding every default.
//   - Load(ctx) layers an optional YAML file and PLANEWAR_ env vars on top.
//   - Validate reports problems wrapped with ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// LeaderboardTopN truncates every leaderboard.
	LeaderboardTopN int `koanf:"leaderboard_top_n"`

	// StrictLevels makes per-level queries fail with ErrUnknownLevel for
	// levels without records instead of returning an empty board.
	StrictLevels bool `koanf:"strict_levels"`

	// Storage selects the score store: memory or postgres.
	Storage string `koanf:"storage"`

	// DatabaseURL is the pgx connection string used when Storage is postgres.
	DatabaseURL string `koanf:"database_url"`
	DBMaxConns  int32  `koanf:"db_max_conns"`
	DBMinConns  int32  `koanf:"db_min_conns"`

	// JWTSecret signs session tokens (HS256).
	JWTSecret string        `koanf:"jwt_secret"`
	JWTIssuer string        `koanf:"jwt_issuer"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	// BcryptCost is the work factor for password hashes.
	BcryptCost int `koanf:"bcrypt_cost"`

	// CacheEnabled turns on the redis leaderboard cache.
	CacheEnabled  bool          `koanf:"cache_enabled"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`

	// KafkaEnabled starts the score event consumer.
	KafkaEnabled bool     `koanf:"kafka_enabled"`
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
	KafkaGroupID string   `koanf:"kafka_group_id"`

	// EventQueueSize bounds the in-memory score event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":5000",
		LeaderboardTopN: 30,
		Storage:         StorageMemory,
		DBMaxConns:      10,
		DBMinConns:      2,
		JWTSecret:       "planewar-dev-secret",
		JWTIssuer:       "planewar",
		TokenTTL:        24 * time.Hour,
		BcryptCost:      10,
		RedisAddr:       "localhost:6379",
		CacheTTL:        5 * time.Second,
		KafkaBrokers:    []string{"localhost:9092"},
		KafkaTopic:      "planewar.scores",
		KafkaGroupID:    "planewar-server",
		EventQueueSize:  10_000,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      100_000,
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LeaderboardTopN <= 0:
		return fmt.Errorf("%w: leaderboard_top_n must be positive, got %d", ErrInvalidConfig, c.LeaderboardTopN)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.JWTSecret == "":
		return fmt.Errorf("%w: jwt_secret must not be empty", ErrInvalidConfig)
	case c.TokenTTL <= 0:
		return fmt.Errorf("%w: token_ttl must be positive", ErrInvalidConfig)
	case c.EventQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	}

	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for postgres storage", ErrInvalidConfig)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("%w: db_min_conns exceeds db_max_conns", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, c.Storage)
	}

	if c.CacheEnabled && c.RedisAddr == "" {
		return fmt.Errorf("%w: redis_addr is required when cache is enabled", ErrInvalidConfig)
	}
	if c.KafkaEnabled && (len(c.KafkaBrokers) == 0 || c.KafkaTopic == "") {
		return fmt.Errorf("%w: kafka_brokers and kafka_topic are required when kafka is enabled", ErrInvalidConfig)
	}
	return nil
}
