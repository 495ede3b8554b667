package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/metrics"
)

// SQLSTATE codes mapped to repository sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	usernameConstraint = "players_username_key"
	emailConstraint    = "players_email_key"
)

// PostgresStore is a Store backed by PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// NewPostgresStore connects to url, pings the server and, unless disabled,
// creates the schema.
func NewPostgresStore(ctx context.Context, url string, opts ...PostgresOption) (*PostgresStore, error) {
	o := postgresOptions{
		maxConns:        10,
		minConns:        2,
		maxConnLifetime: time.Hour,
		maxConnIdleTime: 30 * time.Minute,
		migrate:         true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = o.maxConns
	poolConfig.MinConns = o.minConns
	poolConfig.MaxConnLifetime = o.maxConnLifetime
	poolConfig.MaxConnIdleTime = o.maxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &PostgresStore{pool: pool, log: logger.Named("postgres")}
	if o.migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the tables and indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id UUID PRIMARY KEY,
			username VARCHAR(80) NOT NULL UNIQUE,
			email VARCHAR(120) NOT NULL UNIQUE,
			password_hash VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS score_records (
			id BIGSERIAL PRIMARY KEY,
			player_id UUID NOT NULL REFERENCES players(id),
			level INT NOT NULL CHECK (level > 0),
			score BIGINT NOT NULL CHECK (score >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_score_records_level ON score_records(level, player_id, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_score_records_player ON score_records(player_id, created_at DESC)`,
	}

	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	s.log.Info(ctx, "database migrations completed", logger.Int("count", len(migrations)))
	return nil
}

// CreatePlayer implements PlayerStore.
func (s *PostgresStore) CreatePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	query := `
		INSERT INTO players (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, query, p.ID, p.Username, p.Email, p.PasswordHash).Scan(&p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			switch pgErr.ConstraintName {
			case usernameConstraint:
				return model.Player{}, fmt.Errorf("%w: %s", ErrPlayerExists, p.Username)
			case emailConstraint:
				return model.Player{}, fmt.Errorf("%w: %s", ErrEmailExists, p.Email)
			}
		}
		return model.Player{}, fmt.Errorf("creating player: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s *PostgresStore) playerBy(ctx context.Context, column string, arg any) (model.Player, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM players WHERE ` + column + ` = $1`

	var p model.Player
	err := s.pool.QueryRow(ctx, query, arg).Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Player{}, fmt.Errorf("player %v: %w", arg, ErrNotFound)
		}
		return model.Player{}, fmt.Errorf("getting player: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// PlayerByName implements PlayerStore.
func (s *PostgresStore) PlayerByName(ctx context.Context, username string) (model.Player, error) {
	return s.playerBy(ctx, "username", username)
}

// PlayerByID implements PlayerStore.
func (s *PostgresStore) PlayerByID(ctx context.Context, id uuid.UUID) (model.Player, error) {
	return s.playerBy(ctx, "id", id)
}

// DeletePlayer implements PlayerStore. Score records are removed before the
// player row inside one transaction; the foreign key has no cascade.
func (s *PostgresStore) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	scores, err := tx.Exec(ctx, `DELETE FROM score_records WHERE player_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting score records: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	if result.RowsAffected() == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("player %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing player deletion: %w", err)
	}

	s.log.Debug(ctx, "player deleted",
		logger.String("player_id", id.String()),
		logger.Int64("score_records", scores.RowsAffected()),
	)
	return nil
}

// AppendScore implements ScoreStore.
func (s *PostgresStore) AppendScore(ctx context.Context, playerID uuid.UUID, level int, score int64) (model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoreAppendLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := model.ValidateScore(level, score); err != nil {
		return model.ScoreRecord{}, fmt.Errorf("%w: %w", ErrInvalidScore, err)
	}

	rec := model.ScoreRecord{PlayerID: playerID, Level: level, Score: score}
	query := `
		INSERT INTO score_records (player_id, level, score)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query, playerID, level, score).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			metrics.RecordErrorByComponent("repository", "not_found")
			return model.ScoreRecord{}, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
		}
		return model.ScoreRecord{}, fmt.Errorf("appending score: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

// PersonalBests implements ScoreStore. The first stage finds each player's
// max per level, the second the earliest record reaching it.
func (s *PostgresStore) PersonalBests(ctx context.Context, level int) ([]model.PersonalBest, error) {
	query := `
		WITH bests AS (
			SELECT player_id, level, MAX(score) AS score
			FROM score_records
			WHERE $1::int = 0 OR level = $1::int
			GROUP BY player_id, level
		)
		SELECT b.player_id, p.username, b.level, b.score, MIN(r.created_at)
		FROM bests b
		JOIN score_records r
			ON r.player_id = b.player_id AND r.level = b.level AND r.score = b.score
		JOIN players p ON p.id = b.player_id
		GROUP BY b.player_id, p.username, b.level, b.score
		ORDER BY b.level, p.username
	`
	rows, err := s.pool.Query(ctx, query, level)
	if err != nil {
		return nil, fmt.Errorf("querying personal bests: %w", err)
	}
	defer rows.Close()

	bests := make([]model.PersonalBest, 0)
	for rows.Next() {
		var b model.PersonalBest
		if err := rows.Scan(&b.PlayerID, &b.Username, &b.Level, &b.Score, &b.AchievedAt); err != nil {
			return nil, fmt.Errorf("scanning personal best: %w", err)
		}
		b.AchievedAt = b.AchievedAt.UTC()
		bests = append(bests, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating personal bests: %w", err)
	}
	return bests, nil
}

// Levels implements ScoreStore.
func (s *PostgresStore) Levels(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT level FROM score_records ORDER BY level`)
	if err != nil {
		return nil, fmt.Errorf("querying levels: %w", err)
	}
	levels, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("collecting levels: %w", err)
	}
	if levels == nil {
		levels = []int{}
	}
	return levels, nil
}

// PlayerScores implements ScoreStore.
func (s *PostgresStore) PlayerScores(ctx context.Context, playerID uuid.UUID) ([]model.ScoreRecord, error) {
	if _, err := s.PlayerByID(ctx, playerID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, player_id, level, score, created_at
		FROM score_records
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("querying player scores: %w", err)
	}
	defer rows.Close()

	out := make([]model.ScoreRecord, 0)
	for rows.Next() {
		var r model.ScoreRecord
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.Level, &r.Score, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning score record: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating player scores: %w", err)
	}
	return out, nil
}

// Count implements ScoreStore.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM score_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting score records: %w", err)
	}
	return n, nil
}
