package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/cache"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/http/api"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/http/swagger"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/mq/kafka"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/repository"
	service "github.com/JimmyLuojun/PlaneWar-Sever/internal/app"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/auth"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/config"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("planewar: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	// The signal context must not reach the workers; Stop drains them.
	if err := svc.Start(context.WithoutCancel(ctx)); err != nil {
		_ = svc.Stop(context.Background())
		return fmt.Errorf("start service: %w", err)
	}

	metrics.StartSystemCollector(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(serr))
	}
	if serr := svc.Stop(shutdownCtx); serr != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(serr))
	}

	log.Info(ctx, "server stopped")
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// buildService opens the configured backends and assembles the score service.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithTopN(cfg.LeaderboardTopN),
		service.WithStrictLevels(cfg.StrictLevels),
		service.WithBcryptCost(cfg.BcryptCost),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithIssuer(auth.NewIssuer(cfg.JWTSecret,
			auth.WithTTL(cfg.TokenTTL),
			auth.WithIssuerName(cfg.JWTIssuer),
		)),
	}

	if cfg.Storage == config.StoragePostgres {
		store, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL,
			repository.WithPoolSize(cfg.DBMinConns, cfg.DBMaxConns),
		)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		opts = append(opts, service.WithStore(store))
	}

	if cfg.CacheEnabled {
		c, err := cache.NewRedisCache(ctx, cfg.RedisAddr,
			cache.WithPassword(cfg.RedisPassword),
			cache.WithDB(cfg.RedisDB),
			cache.WithTTL(cfg.CacheTTL),
		)
		if err != nil {
			// The leaderboards stay correct without the cache.
			log.Warn(ctx, "redis unavailable; leaderboard cache disabled",
				logger.String("addr", cfg.RedisAddr), logger.Error(err))
		} else {
			opts = append(opts, service.WithCache(c))
		}
	}

	if cfg.KafkaEnabled {
		opts = append(opts, service.WithKafka(kafka.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}))
	}

	return service.New(opts...), nil
}

// newRouter mounts the API and the OpenAPI documentation on one router.
func newRouter(svc *service.Service) http.Handler {
	r := chi.NewRouter()
	swagger.Register(r)
	r.Mount("/", api.NewServer(svc).Router())
	return r
}
