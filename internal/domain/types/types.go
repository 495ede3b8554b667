// Package types contains common types used across the application
package types

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one ranked leaderboard row. Score is the per-level best or the
// summed best across levels; Timestamp is the value used for tie-breaking.
type Entry struct {
	Rank      int       `json:"rank"`
	Username  string    `json:"username"`
	Score     int64     `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is an authenticated login: the player and their bearer token.
type Session struct {
	PlayerID uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Token    string    `json:"token"`
}
