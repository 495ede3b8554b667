// Package cache keeps recently computed leaderboards so that repeated reads
// skip the ranking computation until the next write or the TTL.
package cache

import (
	"context"
	"errors"
	"strconv"
)

const keyPrefix = "planewar:leaderboard:"

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

// Cache stores JSON-encoded leaderboard payloads.
type Cache interface {
	// Get decodes the cached value for key into dst. Returns ErrMiss when absent.
	Get(ctx context.Context, key string, dst any) error
	// Set stores v under key with the cache's TTL.
	Set(ctx context.Context, key string, v any) error
	// InvalidateAll drops every leaderboard key.
	InvalidateAll(ctx context.Context) error
	Close() error
}

// OverallKey is the key of the overall leaderboard.
func OverallKey() string { return keyPrefix + "overall" }

// LevelsKey is the key of the distinct levels list.
func LevelsKey() string { return keyPrefix + "levels" }

// LevelKey is the key of the leaderboard for one level.
func LevelKey(level int) string { return keyPrefix + "level:" + strconv.Itoa(level) }

// Noop never stores anything. Used when caching is disabled.
type Noop struct{}

// Get always reports a miss.
func (Noop) Get(context.Context, string, any) error { return ErrMiss }

// Set discards v.
func (Noop) Set(context.Context, string, any) error { return nil }

// InvalidateAll has nothing to drop.
func (Noop) InvalidateAll(context.Context) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }
