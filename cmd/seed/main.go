package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/seed"
)

// Default configuration constants.
const (
	defaultPlayers  = 100
	defaultScores   = 10
	defaultLevels   = 5
	defaultTopN     = 30
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout  = 10 * time.Second
	defaultSettle   = 30 * time.Second
	defaultDeadline = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:5000", "Base URL of the server")
		players   = flag.Int("players", defaultPlayers, "Number of fake players to register")
		scores    = flag.Int("scores", defaultScores, "Scores submitted per player")
		levels    = flag.Int("levels", defaultLevels, "Scores are spread over levels 1..N")
		topN      = flag.Int("top", defaultTopN, "Leaderboard size the server is configured with")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		mode      = flag.String("mode", seed.ModeSync, "sync, events or kafka")
		brokers   = flag.String("brokers", "localhost:9092", "Comma separated Kafka brokers")
		topic     = flag.String("topic", "planewar.scores", "Kafka topic")
		settle    = flag.Duration("settle", defaultSettle, "How long queued scores may take to reach the boards")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		fakerSeed = flag.Int64("seed", 0, "Faker seed; 0 picks one from the clock")
		output    = flag.String("output", "", "Write the generated players and scores to this JSON file")
		logFile   = flag.String("log", "", "Also write logs to this file")
		logFormat = flag.String("log-format", "text", "text or json")
		verbose   = flag.Bool("verbose", false, "Log every failed request")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp()
		return
	}

	closer, err := seed.SetupLogging(*logFile, *logFormat)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultDeadline)
	defer cancel()

	cfg := &seed.Config{
		BaseURL:         *baseURL,
		Players:         *players,
		ScoresPerPlayer: *scores,
		Levels:          *levels,
		TopN:            *topN,
		Workers:         *workers,
		Timeout:         *timeout,
		Settle:          *settle,
		Mode:            *mode,
		KafkaBrokers:    strings.Split(*brokers, ","),
		KafkaTopic:      *topic,
		Seed:            *fakerSeed,
		OutputFile:      *output,
		Verbose:         *verbose,
	}

	if _, err := seed.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Seed run failed: " + err.Error() + "\n")
		cancel()
		stop()
		_ = closer.Close()
		os.Exit(1)
	}
}
