package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Score tiers. Most players are regulars, a few are aces or rookies.
const (
	tierCount = 8

	aceMin     = 5_000
	aceMax     = 10_000
	regularMin = 1_000
	regularMax = 5_000
	rookieMax  = 1_000

	passwordLength = 12
)

// FakePlayer is a fake account.
type FakePlayer struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Submission is one generated score. Player indexes the generated players.
type Submission struct {
	Player  int    `json:"player"`
	EventID string `json:"event_id"`
	Level   int    `json:"level"`
	Score   int64  `json:"score"`
}

// Generator produces reproducible fake players and scores.
type Generator struct {
	faker *gofakeit.Faker
	seed  int64
}

// NewGenerator creates a generator. A zero seed is replaced by the clock.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{faker: gofakeit.New(uint64(seed)), seed: seed}
}

// Seed returns the seed in use, so a run can be repeated.
func (g *Generator) Seed() int64 { return g.seed }

// Players creates n players with unique usernames and emails.
func (g *Generator) Players(n int) []FakePlayer {
	players := make([]FakePlayer, n)
	for i := range players {
		name := fmt.Sprintf("%s_%d", strings.ToLower(g.faker.Username()), i)
		players[i] = FakePlayer{
			Username: name,
			Email:    name + "@" + g.faker.DomainName(),
			Password: g.faker.Password(true, true, true, false, false, passwordLength),
		}
	}
	return players
}

// Submissions creates perPlayer scores for each of players players, spread
// over levels 1..levels.
func (g *Generator) Submissions(players, perPlayer, levels int) []Submission {
	subs := make([]Submission, 0, players*perPlayer)
	for p := 0; p < players; p++ {
		for j := 0; j < perPlayer; j++ {
			subs = append(subs, Submission{
				Player:  p,
				EventID: g.faker.UUID(),
				Level:   g.faker.Number(1, levels),
				Score:   g.score(),
			})
		}
	}
	g.faker.ShuffleAnySlice(subs)
	return subs
}

func (g *Generator) score() int64 {
	switch g.faker.Number(0, tierCount-1) {
	case 0:
		return int64(g.faker.Number(aceMin, aceMax))
	case 1, 2:
		return int64(g.faker.Number(0, rookieMax))
	default:
		return int64(g.faker.Number(regularMin, regularMax))
	}
}
