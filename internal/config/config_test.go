package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":5000")
			convey.So(cfg.LeaderboardTopN, convey.ShouldEqual, 30)
			convey.So(cfg.StrictLevels, convey.ShouldBeFalse)
			convey.So(cfg.Storage, convey.ShouldEqual, config.StorageMemory)
			convey.So(cfg.TokenTTL, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.CacheTTL, convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		cases := []struct {
			name   string
			mutate func(*config.Config)
			want   string
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }, "addr must not be empty"},
			{"zero top n", func(c *config.Config) { c.LeaderboardTopN = 0 }, "leaderboard_top_n"},
			{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
			{"empty secret", func(c *config.Config) { c.JWTSecret = "" }, "jwt_secret"},
			{"unknown storage", func(c *config.Config) { c.Storage = "sqlite" }, "unknown storage"},
			{"postgres without url", func(c *config.Config) { c.Storage = config.StoragePostgres }, "database_url"},
			{"cache without redis", func(c *config.Config) { c.CacheEnabled = true; c.RedisAddr = "" }, "redis_addr"},
			{"kafka without brokers", func(c *config.Config) { c.KafkaEnabled = true; c.KafkaBrokers = nil }, "kafka_brokers"},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }, "worker_count"},
		}

		for _, tc := range cases {
			convey.Convey("When the config has "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it should be rejected as invalid", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
				})
			})
		}

		convey.Convey("When postgres storage has a database url", func() {
			cfg.Storage = config.StoragePostgres
			cfg.DatabaseURL = "postgres://localhost/planewar"

			convey.Convey("Then it should validate", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
