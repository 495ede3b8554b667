// Package seed drives a running server with fake players and scores and
// checks that the leaderboards it serves are consistent with what was sent.
package seed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/mq/kafka"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/client"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/ranking"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

// Runner configuration constants.
const (
	workerChannelMultiplier = 2
	progressInterval        = time.Second
	settlePollInterval      = 100 * time.Millisecond
	percentageMultiplier    = 100
)

// Publisher sends score events to the broker.
type Publisher interface {
	Publish(ev model.ScoreEvent) error
	Close() error
}

// Option configures a run.
type Option func(*runner)

// WithPublisher sets the broker publisher used in kafka mode instead of
// dialing Config.KafkaBrokers.
func WithPublisher(p Publisher) Option {
	return func(r *runner) { r.pub = p }
}

// WithClient replaces the API client built from Config.BaseURL.
func WithClient(c *client.Client) Option {
	return func(r *runner) { r.api = c }
}

type runner struct {
	cfg   *Config
	api   *client.Client
	pub   Publisher
	gen   *Generator
	log   logger.Logger
	stats *Stats
}

// accepted is a score the server acknowledged.
type accepted struct {
	sub Submission
	rec model.ScoreRecord // set in sync mode only
}

// Run executes a complete seed run: register, submit, wait, verify.
func Run(ctx context.Context, cfg *Config, opts ...Option) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed config: %w", err)
	}

	r := &runner{
		cfg:   cfg,
		gen:   NewGenerator(cfg.Seed),
		log:   logger.Named("seed"),
		stats: &Stats{StartTime: time.Now()},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.api == nil {
		r.api = client.New(cfg.BaseURL, client.WithTimeout(cfg.Timeout))
	}
	if cfg.Mode == ModeKafka && r.pub == nil {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		r.pub = p
	}
	if r.pub != nil {
		defer func() {
			if err := r.pub.Close(); err != nil {
				r.log.Warn(ctx, "failed to close publisher", logger.Error(err))
			}
		}()
	}

	r.log.Info(ctx, "starting seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("mode", cfg.Mode),
		logger.Int("players", cfg.Players),
		logger.Int("scoresPerPlayer", cfg.ScoresPerPlayer),
		logger.Int("levels", cfg.Levels),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", r.gen.Seed()))

	// Step 1: Check service health
	if err := r.api.Health(ctx); err != nil {
		return r.stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate players and scores
	players := r.gen.Players(cfg.Players)
	subs := r.gen.Submissions(cfg.Players, cfg.ScoresPerPlayer, cfg.Levels)
	r.stats.ScoresGenerated = len(subs)

	// Step 3: Register and log in
	sessions := r.registerPlayers(ctx, players)
	if r.stats.PlayersRegistered == 0 {
		return r.stats, errors.New("no player could be registered")
	}

	// Step 4: Submit scores concurrently
	acks := r.submitScores(ctx, subs, sessions)
	if err := ctx.Err(); err != nil {
		return r.stats, fmt.Errorf("submission interrupted: %w", err)
	}

	// Step 5: Wait for the boards to reflect the accepted scores, then verify
	exp := newExpectation(acks, sessions, cfg.TopN, cfg.Mode == ModeSync)
	if err := r.verify(ctx, exp); err != nil {
		return r.stats, fmt.Errorf("result verification failed: %w", err)
	}

	// Step 6: Save the run for replay
	if cfg.OutputFile != "" {
		if err := saveRun(cfg.OutputFile, r.gen.Seed(), players, subs); err != nil {
			r.log.Warn(ctx, "failed to save run", logger.Error(err))
		} else {
			r.log.Info(ctx, "run saved", logger.String("file", cfg.OutputFile))
		}
	}

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	r.displayFinalStats(ctx)
	return r.stats, nil
}

// registerPlayers registers and logs in every player. The returned sessions
// are index-aligned with players; failed players get an empty session.
func (r *runner) registerPlayers(ctx context.Context, players []FakePlayer) []types.Session {
	r.log.Info(ctx, "registering players", logger.Int("count", len(players)))

	sessions := make([]types.Session, len(players))
	var ok, failed atomic.Int64

	fanOut(ctx, r.cfg.Workers, len(players), func(i int) {
		p := players[i]
		if _, err := r.api.Register(ctx, p.Username, p.Email, p.Password); err != nil {
			failed.Add(1)
			r.debugFailure(ctx, "register failed", p.Username, err)
			return
		}
		sess, err := r.api.Login(ctx, p.Username, p.Password)
		if err != nil {
			failed.Add(1)
			r.debugFailure(ctx, "login failed", p.Username, err)
			return
		}
		sessions[i] = sess
		ok.Add(1)
	})

	r.stats.PlayersRegistered = int(ok.Load())
	r.stats.PlayersFailed = int(failed.Load())
	r.log.Info(ctx, "players registered",
		logger.Int("registered", r.stats.PlayersRegistered),
		logger.Int("failed", r.stats.PlayersFailed))
	return sessions
}

// submitScores sends every submission whose player has a session and
// returns the ones the server accepted.
func (r *runner) submitScores(ctx context.Context, subs []Submission, sessions []types.Session) []accepted {
	r.log.Info(ctx, "submitting scores",
		logger.Int("count", len(subs)),
		logger.String("mode", r.cfg.Mode))

	results := make([]*accepted, len(subs))
	var submitted, ok, dup, failed atomic.Int64
	prog := newProgress()

	fanOut(ctx, r.cfg.Workers, len(subs), func(i int) {
		sub := subs[i]
		sess := sessions[sub.Player]
		if sess.Token == "" {
			return
		}
		submitted.Add(1)

		rec, isDup, err := r.submitOne(ctx, sess, sub)
		switch {
		case err != nil:
			failed.Add(1)
			r.debugFailure(ctx, "submit failed", sess.Username, err)
		case isDup:
			dup.Add(1)
		default:
			ok.Add(1)
			results[i] = &accepted{sub: sub, rec: rec}
		}

		if prog.due() {
			r.log.Info(ctx, "submission progress",
				logger.Int64("submitted", submitted.Load()),
				logger.Int("total", len(subs)),
				logger.Int64("accepted", ok.Load()),
				logger.Int64("failed", failed.Load()))
		}
	})

	r.stats.ScoresSubmitted = int(submitted.Load())
	r.stats.ScoresAccepted = int(ok.Load())
	r.stats.ScoresDuplicate = int(dup.Load())
	r.stats.ScoresFailed = int(failed.Load())
	r.log.Info(ctx, "score submission completed",
		logger.Int("accepted", r.stats.ScoresAccepted),
		logger.Int("duplicate", r.stats.ScoresDuplicate),
		logger.Int("failed", r.stats.ScoresFailed))

	out := make([]accepted, 0, len(results))
	for _, a := range results {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

func (r *runner) submitOne(ctx context.Context, sess types.Session, sub Submission) (model.ScoreRecord, bool, error) {
	switch r.cfg.Mode {
	case ModeEvents:
		dup, err := r.api.PostEvent(ctx, sess, sub.EventID, sub.Level, sub.Score)
		return model.ScoreRecord{}, dup, err
	case ModeKafka:
		err := r.pub.Publish(model.ScoreEvent{
			EventID:  sub.EventID,
			PlayerID: sess.PlayerID.String(),
			Level:    sub.Level,
			Score:    sub.Score,
		})
		return model.ScoreRecord{}, false, err
	default:
		rec, err := r.api.SubmitScore(ctx, sess, sub.Level, sub.Score)
		return rec, false, err
	}
}

// verify polls the boards until they match the expectation or the settle
// window closes. Structural problems fail immediately.
func (r *runner) verify(ctx context.Context, exp *expectation) error {
	r.log.Info(ctx, "verifying leaderboards")

	deadline := time.Now().Add(r.cfg.Settle)
	for {
		snap, err := r.snapshot(ctx)
		if err != nil {
			return err
		}
		if err := snap.check(r.cfg.TopN); err != nil {
			return err
		}

		mismatch := exp.compare(snap)
		if errors.Is(mismatch, errForeignPlayers) {
			r.log.Warn(ctx, "server holds players from other runs; skipping exact comparison")
			mismatch = nil
		}
		if mismatch == nil {
			r.stats.LevelsVerified = len(snap.levels)
			r.stats.OverallEntries = len(snap.overall)
			r.log.Info(ctx, "leaderboards verified",
				logger.Int("levels", len(snap.levels)),
				logger.Int("overallEntries", len(snap.overall)))
			r.displayTop(ctx, snap.overall)
			return nil
		}
		if time.Now().After(deadline) {
			return mismatch
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePollInterval):
		}
	}
}

// snapshot fetches every board the server exposes.
func (r *runner) snapshot(ctx context.Context) (*snapshot, error) {
	levels, err := r.api.Levels(ctx)
	if err != nil {
		return nil, fmt.Errorf("levels: %w", err)
	}
	overall, err := r.api.Overall(ctx)
	if err != nil {
		return nil, fmt.Errorf("overall: %w", err)
	}
	snap := &snapshot{levels: levels, overall: overall, byLevel: make(map[int][]types.Entry, len(levels))}
	for _, lvl := range levels {
		board, err := r.api.LevelBoard(ctx, lvl)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", lvl, err)
		}
		snap.byLevel[lvl] = board
	}
	return snap, nil
}

func (r *runner) debugFailure(ctx context.Context, msg, username string, err error) {
	if r.cfg.Verbose {
		r.log.Warn(ctx, msg, logger.String("username", username), logger.Error(err))
	}
}

func (r *runner) displayTop(ctx context.Context, overall []types.Entry) {
	n := min(len(overall), 10)
	for _, e := range overall[:n] {
		r.log.Info(ctx, "overall leader",
			logger.Int("rank", e.Rank),
			logger.String("username", e.Username),
			logger.Int64("score", e.Score))
	}
}

// displayFinalStats logs the final run statistics.
func (r *runner) displayFinalStats(ctx context.Context) {
	s := r.stats
	var successRate, scoresPerSecond float64
	if s.ScoresSubmitted > 0 {
		successRate = float64(s.ScoresAccepted) / float64(s.ScoresSubmitted) * percentageMultiplier
	}
	if s.Duration > 0 {
		scoresPerSecond = float64(s.ScoresSubmitted) / s.Duration.Seconds()
	}

	r.log.Info(ctx, "final statistics",
		logger.Int("playersRegistered", s.PlayersRegistered),
		logger.Int("playersFailed", s.PlayersFailed),
		logger.Int("scoresGenerated", s.ScoresGenerated),
		logger.Int("scoresSubmitted", s.ScoresSubmitted),
		logger.Int("scoresAccepted", s.ScoresAccepted),
		logger.Int("scoresDuplicate", s.ScoresDuplicate),
		logger.Int("scoresFailed", s.ScoresFailed),
		logger.Int("levelsVerified", s.LevelsVerified),
		logger.Int("overallEntries", s.OverallEntries),
		logger.Duration("duration", s.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("scoresPerSecond", scoresPerSecond))
}

// fanOut calls fn(i) for i in [0, n) on up to workers goroutines and waits
// for all calls to return. Indexes not yet handed out when ctx ends are
// skipped.
func fanOut(ctx context.Context, workers, n int, fn func(i int)) {
	idx := make(chan int, workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for w := 0; w < min(workers, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				fn(i)
			}
		}()
	}

	go func() {
		defer close(idx)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case idx <- i:
			}
		}
	}()

	wg.Wait()
}

// progress rate-limits progress logs across workers.
type progress struct {
	last atomic.Int64
}

func newProgress() *progress {
	p := &progress{}
	p.last.Store(time.Now().UnixNano())
	return p
}

func (p *progress) due() bool {
	now := time.Now().UnixNano()
	last := p.last.Load()
	return now-last >= int64(progressInterval) && p.last.CompareAndSwap(last, now)
}

// localRecords converts accepted scores into ranking input.
func localRecords(acks []accepted, sessions []types.Session) []ranking.Record {
	recs := make([]ranking.Record, 0, len(acks))
	for _, a := range acks {
		sess := sessions[a.sub.Player]
		recs = append(recs, ranking.Record{
			PlayerID: sess.PlayerID,
			Username: sess.Username,
			Level:    a.sub.Level,
			Score:    a.sub.Score,
			At:       a.rec.CreatedAt,
		})
	}
	return recs
}
