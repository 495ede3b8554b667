package repository

import "time"

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the wall clock used to stamp records.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*postgresOptions)

type postgresOptions struct {
	maxConns        int32
	minConns        int32
	maxConnLifetime time.Duration
	maxConnIdleTime time.Duration
	migrate         bool
}

// WithPoolSize bounds the connection pool.
func WithPoolSize(minConns, maxConns int32) PostgresOption {
	return func(o *postgresOptions) {
		if maxConns > 0 {
			o.maxConns = maxConns
		}
		if minConns >= 0 && minConns <= o.maxConns {
			o.minConns = minConns
		}
	}
}

// WithConnLifetime sets how long pooled connections live and may idle.
func WithConnLifetime(lifetime, idle time.Duration) PostgresOption {
	return func(o *postgresOptions) {
		if lifetime > 0 {
			o.maxConnLifetime = lifetime
		}
		if idle > 0 {
			o.maxConnIdleTime = idle
		}
	}
}

// WithMigrations controls whether the schema is created on startup.
func WithMigrations(enabled bool) PostgresOption {
	return func(o *postgresOptions) {
		o.migrate = enabled
	}
}
