package model

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValidateScore(t *testing.T) {
	Convey("Given score submissions", t, func() {
		Convey("When level and score are in range", func() {
			So(ValidateScore(1, 0), ShouldBeNil)
			So(ValidateScore(42, 1_000_000), ShouldBeNil)
		})

		Convey("When the level is not positive", func() {
			err := ValidateScore(0, 10)
			So(errors.Is(err, ErrInvalidLevel), ShouldBeTrue)
			So(errors.Is(ValidateScore(-3, 10), ErrInvalidLevel), ShouldBeTrue)
		})

		Convey("When the score is negative", func() {
			So(errors.Is(ValidateScore(1, -1), ErrNegativeScore), ShouldBeTrue)
		})
	})
}

func TestScoreEventValidate(t *testing.T) {
	Convey("Given a score event", t, func() {
		playerID := uuid.New()
		ev := ScoreEvent{EventID: "ev-1", PlayerID: playerID.String(), Level: 2, Score: 300}

		Convey("When it is well formed", func() {
			id, err := ev.Validate()

			Convey("Then the player id is parsed", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, playerID)
			})
		})

		Convey("When the event id is missing", func() {
			ev.EventID = ""
			_, err := ev.Validate()
			So(errors.Is(err, ErrMissingID), ShouldBeTrue)
		})

		Convey("When the player id is not a uuid", func() {
			ev.PlayerID = "player-7"
			_, err := ev.Validate()
			So(err, ShouldNotBeNil)
		})

		Convey("When the level is invalid", func() {
			ev.Level = 0
			_, err := ev.Validate()
			So(errors.Is(err, ErrInvalidLevel), ShouldBeTrue)
		})
	})
}

func TestScoreEventDedupeKey(t *testing.T) {
	alice := ScoreEvent{EventID: "1", PlayerID: uuid.NewString(), Level: 1, Score: 10}
	bob := ScoreEvent{EventID: "1", PlayerID: uuid.NewString(), Level: 1, Score: 99}

	if alice.DedupeKey() == bob.DedupeKey() {
		t.Fatalf("players sharing event id %q got the same key %q", alice.EventID, alice.DedupeKey())
	}

	again := alice
	again.Score = 20
	if alice.DedupeKey() != again.DedupeKey() {
		t.Fatalf("same player and event id gave %q and %q", alice.DedupeKey(), again.DedupeKey())
	}
}
