// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Player is a registered account. Username is the display name shown on
// leaderboards and is unique, as is Email.
type Player struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// ScoreRecord is one appended score. Records are immutable; CreatedAt is
// assigned by the store at insertion and is the tie-break timestamp.
type ScoreRecord struct {
	ID        int64     `json:"id"`
	PlayerID  uuid.UUID `json:"player_id"`
	Level     int       `json:"level"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"timestamp"`
}

// PersonalBest is a player's best score on one level together with the
// earliest time that score was reached.
type PersonalBest struct {
	PlayerID   uuid.UUID
	Username   string
	Level      int
	Score      int64
	AchievedAt time.Time
}

// ScoreEvent is a score submission received over the message bus.
type ScoreEvent struct {
	EventID  string `json:"event_id"`
	PlayerID string `json:"player_id"`
	Level    int    `json:"level"`
	Score    int64  `json:"score"`
}

// DedupeKey identifies the event for redelivery detection. Event ids are
// chosen by clients, so they are only unique per player.
func (e ScoreEvent) DedupeKey() string {
	return e.PlayerID + ":" + e.EventID
}

// AllLevels is the level filter that selects every level.
const AllLevels = 0
