package seed

import (
	"fmt"
	"io"
	"os"

	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging initializes the global logger to write to stdout and, when
// logFile is set, to that file too. The returned closer releases the file.
func SetupLogging(logFile, format string) (io.Closer, error) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	if err := logger.Init(logger.WithFormat(format), logger.WithOutput(out)); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`PlaneWar Seed Tool
==================

Registers fake players, submits random scores and verifies the leaderboards
the server returns.

Usage:
  go run ./cmd/seed [options]

Options:
  -url string
        Base URL of the server (default "http://localhost:5000")
  -players int
        Number of fake players to register (default 100)
  -scores int
        Scores submitted per player (default 10)
  -levels int
        Scores are spread over levels 1..N (default 5)
  -top int
        Leaderboard size the server is configured with (default 30)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -mode string
        sync, events or kafka (default "sync")
  -brokers string
        Comma separated Kafka brokers for kafka mode (default "localhost:9092")
  -topic string
        Kafka topic for kafka mode (default "planewar.scores")
  -settle duration
        How long queued scores may take to reach the boards (default 30s)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed int
        Faker seed; 0 picks one from the clock
  -output string
        Write the generated players and scores to this JSON file
  -log string
        Also write logs to this file
  -verbose
        Log every failed request
  -help
        Show this help message

Examples:
  # Seed a local server through the synchronous endpoint
  go run ./cmd/seed -players 200 -scores 20

  # Exercise the queued path
  go run ./cmd/seed -mode events -workers 32

  # Publish through Kafka and give the consumer a minute
  go run ./cmd/seed -mode kafka -brokers kafka:9092 -settle 1m
`)
}
