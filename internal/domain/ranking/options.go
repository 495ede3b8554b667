package ranking

// DefaultTopN is the number of rows a leaderboard keeps when not configured.
const DefaultTopN = 30

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithTopN sets how many rows every leaderboard keeps.
func WithTopN(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.topN = n
		}
	}
}

// WithStrictLevels makes ByLevel return ErrUnknownLevel for levels without
// records instead of an empty board.
func WithStrictLevels(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}
