package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidLevel  = errors.New("level must be a positive integer")
	ErrNegativeScore = errors.New("score must not be negative")
	ErrMissingID     = errors.New("event id is required")
	ErrMissingFields = errors.New("missing required fields")
)

// ValidateScore checks the value constraints shared by every submission path.
func ValidateScore(level int, score int64) error {
	if level <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLevel, level)
	}
	if score < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeScore, score)
	}
	return nil
}

// Validate checks the event and returns the parsed player id.
func (e ScoreEvent) Validate() (uuid.UUID, error) {
	if e.EventID == "" {
		return uuid.Nil, ErrMissingID
	}
	id, err := uuid.Parse(e.PlayerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("player id %q: %w", e.PlayerID, err)
	}
	if err := ValidateScore(e.Level, e.Score); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
