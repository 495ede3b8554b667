package seed

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/http/api"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/mq/kafka"
	service "github.com/JimmyLuojun/PlaneWar-Sever/internal/app"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

const testTopN = 5

func startServer(t *testing.T) (*service.Service, string, func()) {
	t.Helper()
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	svc := service.New(
		service.WithBcryptCost(4),
		service.WithTopN(testTopN),
		service.WithWorkerCount(2),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	srv := httptest.NewServer(api.NewServer(svc).Router())
	return svc, srv.URL, func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	}
}

func testConfig(url, mode string) *Config {
	return &Config{
		BaseURL:         url,
		Players:         8,
		ScoresPerPlayer: 5,
		Levels:          3,
		TopN:            testTopN,
		Workers:         4,
		Timeout:         5 * time.Second,
		Settle:          3 * time.Second,
		Mode:            mode,
		KafkaBrokers:    []string{"unused:9092"},
		KafkaTopic:      "planewar.scores",
		Seed:            42,
	}
}

func TestGenerator(t *testing.T) {
	a := NewGenerator(7)
	b := NewGenerator(7)

	pa, pb := a.Players(20), b.Players(20)
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("player %d differs for the same seed: %+v vs %+v", i, pa[i], pb[i])
		}
	}

	names := make(map[string]bool)
	for _, p := range pa {
		if names[p.Username] {
			t.Fatalf("duplicate username %q", p.Username)
		}
		names[p.Username] = true
		if p.Email == "" || len(p.Password) != passwordLength {
			t.Fatalf("incomplete player %+v", p)
		}
	}

	subs := a.Submissions(4, 6, 3)
	if len(subs) != 24 {
		t.Fatalf("expected 24 submissions, got %d", len(subs))
	}
	perPlayer := make(map[int]int)
	for _, s := range subs {
		perPlayer[s.Player]++
		if s.Level < 1 || s.Level > 3 {
			t.Fatalf("level out of range: %d", s.Level)
		}
		if s.Score < 0 || s.Score > aceMax {
			t.Fatalf("score out of range: %d", s.Score)
		}
		if s.EventID == "" {
			t.Fatal("missing event id")
		}
	}
	for p := 0; p < 4; p++ {
		if perPlayer[p] != 6 {
			t.Fatalf("player %d got %d submissions", p, perPlayer[p])
		}
	}

	if NewGenerator(0).Seed() == 0 {
		t.Fatal("zero seed should be replaced")
	}
}

func TestFanOut(t *testing.T) {
	var calls atomic.Int64
	seen := make([]atomic.Bool, 100)

	fanOut(context.Background(), 8, len(seen), func(i int) {
		calls.Add(1)
		seen[i].Store(true)
	})

	if calls.Load() != 100 {
		t.Fatalf("expected 100 calls, got %d", calls.Load())
	}
	for i := range seen {
		if !seen[i].Load() {
			t.Fatalf("index %d never handled", i)
		}
	}

	fanOut(context.Background(), 4, 0, func(int) { t.Fatal("no calls expected") })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls.Store(0)
	fanOut(ctx, 2, 1000, func(int) { calls.Add(1) })
	if calls.Load() >= 1000 {
		t.Fatalf("cancelled fan out handled every index")
	}
}

func TestCheckBoard(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := func(rank int, name string, score int64, offset time.Duration) types.Entry {
		return types.Entry{Rank: rank, Username: name, Score: score, Timestamp: base.Add(offset)}
	}

	Convey("Given leaderboard boards", t, func() {
		Convey("A well formed board passes", func() {
			board := []types.Entry{
				entry(1, "a", 300, 0),
				entry(2, "b", 200, time.Second),
				entry(3, "c", 200, 2*time.Second),
				entry(4, "d", 200, 2*time.Second),
			}
			So(checkBoard(board, 5), ShouldBeNil)
		})

		Convey("An oversized board fails", func() {
			board := []types.Entry{entry(1, "a", 3, 0), entry(2, "b", 2, 0)}
			So(checkBoard(board, 1), ShouldNotBeNil)
		})

		Convey("Gaps in ranks fail", func() {
			board := []types.Entry{entry(1, "a", 3, 0), entry(3, "b", 2, 0)}
			So(checkBoard(board, 5), ShouldNotBeNil)
		})

		Convey("Ascending scores fail", func() {
			board := []types.Entry{entry(1, "a", 2, 0), entry(2, "b", 3, 0)}
			So(checkBoard(board, 5), ShouldNotBeNil)
		})

		Convey("Later timestamps first fail on equal scores", func() {
			board := []types.Entry{entry(1, "a", 3, time.Second), entry(2, "b", 3, 0)}
			So(checkBoard(board, 5), ShouldNotBeNil)
		})

		Convey("Username order breaks the last tie", func() {
			board := []types.Entry{entry(1, "b", 3, 0), entry(2, "a", 3, 0)}
			So(checkBoard(board, 5), ShouldNotBeNil)
		})

		Convey("A player listed twice fails", func() {
			board := []types.Entry{entry(1, "a", 3, 0), entry(2, "a", 2, 0)}
			So(checkBoard(board, 5), ShouldNotBeNil)
		})

		Convey("Unsorted levels fail the snapshot", func() {
			snap := &snapshot{levels: []int{2, 1}, byLevel: map[int][]types.Entry{}}
			So(snap.check(5), ShouldNotBeNil)
		})
	})
}

func TestExpectation(t *testing.T) {
	Convey("Given an expectation built from accepted scores", t, func() {
		sessions := []types.Session{{Username: "alice"}, {Username: "bob"}}
		sessions[0].PlayerID[0] = 1
		sessions[1].PlayerID[0] = 2
		acks := []accepted{
			{sub: Submission{Player: 0, Level: 1, Score: 100}},
			{sub: Submission{Player: 1, Level: 1, Score: 300}},
			{sub: Submission{Player: 0, Level: 2, Score: 250}},
		}
		exp := newExpectation(acks, sessions, 5, false)

		So(exp.levels, ShouldResemble, []int{1, 2})
		So(len(exp.overall), ShouldEqual, 2)
		So(exp.overall[0].Username, ShouldEqual, "alice")
		So(exp.overall[0].Score, ShouldEqual, 350)

		Convey("When the server agrees", func() {
			snap := &snapshot{
				levels:  []int{1, 2},
				overall: exp.overall,
				byLevel: exp.byLevel,
			}
			So(exp.compare(snap), ShouldBeNil)
		})

		Convey("When the server misses a score", func() {
			snap := &snapshot{
				levels:  []int{1},
				overall: exp.overall,
				byLevel: exp.byLevel,
			}
			So(exp.compare(snap), ShouldNotBeNil)
		})

		Convey("When the server lists strangers", func() {
			snap := &snapshot{
				levels:  []int{1, 2},
				overall: []types.Entry{{Rank: 1, Username: "mallory", Score: 999}},
				byLevel: exp.byLevel,
			}
			So(exp.compare(snap), ShouldEqual, errForeignPlayers)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given seed configs", t, func() {
		cfg := testConfig("http://x", ModeSync)
		So(cfg.Validate(), ShouldBeNil)

		cfg.Mode = "carrier-pigeon"
		So(cfg.Validate(), ShouldNotBeNil)

		cfg = testConfig("http://x", ModeKafka)
		cfg.KafkaBrokers = nil
		So(cfg.Validate(), ShouldNotBeNil)

		cfg = testConfig("", ModeSync)
		So(cfg.Validate(), ShouldNotBeNil)

		cfg = testConfig("http://x", ModeSync)
		cfg.Players = 0
		So(cfg.Validate(), ShouldNotBeNil)
	})
}

func TestRunSync(t *testing.T) {
	Convey("Given a fresh server", t, func() {
		_, url, done := startServer(t)
		defer done()

		out := filepath.Join(t.TempDir(), "runs", "seed.json")
		cfg := testConfig(url, ModeSync)
		cfg.OutputFile = out

		Convey("When seeding through the synchronous endpoint", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every score lands and the boards match exactly", func() {
				So(err, ShouldBeNil)
				So(stats.PlayersRegistered, ShouldEqual, 8)
				So(stats.ScoresAccepted, ShouldEqual, 40)
				So(stats.ScoresFailed, ShouldEqual, 0)
				So(stats.OverallEntries, ShouldEqual, testTopN)
				So(stats.LevelsVerified, ShouldBeGreaterThan, 0)
			})

			Convey("Then the run is saved for replay", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)

				var saved savedRun
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(saved.Seed, ShouldEqual, 42)
				So(len(saved.Players), ShouldEqual, 8)
				So(len(saved.Submissions), ShouldEqual, 40)
			})
		})

		Convey("When a second run seeds the same server", func() {
			_, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)

			cfg.Seed = 43
			cfg.OutputFile = ""
			stats, err := Run(context.Background(), cfg)

			Convey("Then foreign players only skip the exact comparison", func() {
				So(err, ShouldBeNil)
				So(stats.ScoresAccepted, ShouldEqual, 40)
			})
		})
	})
}

func TestRunEvents(t *testing.T) {
	Convey("Given a fresh server", t, func() {
		_, url, done := startServer(t)
		defer done()

		Convey("When seeding through the queued endpoint", func() {
			stats, err := Run(context.Background(), testConfig(url, ModeEvents))

			Convey("Then the boards settle on the expected scores", func() {
				So(err, ShouldBeNil)
				So(stats.ScoresAccepted, ShouldEqual, 40)
				So(stats.ScoresDuplicate, ShouldEqual, 0)
				So(stats.OverallEntries, ShouldEqual, testTopN)
			})
		})
	})
}

func TestRunKafka(t *testing.T) {
	Convey("Given a fresh server fed by a mocked broker", t, func() {
		svc, url, done := startServer(t)
		defer done()

		cfg := testConfig(url, ModeKafka)
		mock := mocks.NewSyncProducer(t, nil)
		for i := 0; i < cfg.Players*cfg.ScoresPerPlayer; i++ {
			mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
				return svc.IngestPayload(context.Background(), val)
			})
		}
		pub := kafka.NewProducerFrom(mock, cfg.KafkaTopic)

		Convey("When seeding through the topic", func() {
			stats, err := Run(context.Background(), cfg, WithPublisher(pub))

			Convey("Then the consumed events reach the boards", func() {
				So(err, ShouldBeNil)
				So(stats.ScoresAccepted, ShouldEqual, 40)
				So(stats.OverallEntries, ShouldEqual, testTopN)
			})
		})
	})
}

func TestRunServerDown(t *testing.T) {
	Convey("Given no server", t, func() {
		if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
			t.Fatalf("init logger: %v", err)
		}
		cfg := testConfig("http://127.0.0.1:1", ModeSync)
		cfg.Timeout = time.Second

		Convey("Then the health check fails the run", func() {
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}
