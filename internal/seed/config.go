package seed

import (
	"fmt"
	"time"
)

// Submission modes.
const (
	// ModeSync posts every score to /api/submit_score.
	ModeSync = "sync"
	// ModeEvents posts every score to the queued /api/events endpoint.
	ModeEvents = "events"
	// ModeKafka publishes every score to the score topic.
	ModeKafka = "kafka"
)

// Config holds configuration for a seed run.
type Config struct {
	BaseURL         string        // Base URL of the server
	Players         int           // Number of fake players to register
	ScoresPerPlayer int           // Scores submitted by each player
	Levels          int           // Scores are spread over levels 1..Levels
	TopN            int           // Expected leaderboard size limit
	Workers         int           // Number of concurrent workers
	Timeout         time.Duration // HTTP request timeout
	Settle          time.Duration // How long to wait for queued scores to land
	Mode            string        // sync, events or kafka
	KafkaBrokers    []string      // Brokers used in kafka mode
	KafkaTopic      string        // Topic used in kafka mode
	Seed            int64         // Faker seed; zero picks one from the clock
	OutputFile      string        // Output file for the submitted scores
	Verbose         bool          // Log every failure
}

// Validate reports settings the run cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("base url must not be empty")
	case c.Players <= 0:
		return fmt.Errorf("players must be positive, got %d", c.Players)
	case c.ScoresPerPlayer <= 0:
		return fmt.Errorf("scores per player must be positive, got %d", c.ScoresPerPlayer)
	case c.Levels <= 0:
		return fmt.Errorf("levels must be positive, got %d", c.Levels)
	case c.TopN <= 0:
		return fmt.Errorf("top must be positive, got %d", c.TopN)
	case c.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	switch c.Mode {
	case ModeSync, ModeEvents:
	case ModeKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("kafka mode needs brokers and a topic")
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	PlayersRegistered int
	PlayersFailed     int
	ScoresGenerated   int
	ScoresSubmitted   int
	ScoresAccepted    int
	ScoresDuplicate   int
	ScoresFailed      int
	LevelsVerified    int
	OverallEntries    int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
