package ranking

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
)

// fakeSource serves personal bests computed from an in-memory record list.
type fakeSource struct {
	records []Record
	err     error
	calls   int
}

func (f *fakeSource) PersonalBests(_ context.Context, level int) ([]model.PersonalBest, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var filtered []Record
	for _, r := range f.records {
		if level == model.AllLevels || r.Level == level {
			filtered = append(filtered, r)
		}
	}
	return PersonalBests(filtered), nil
}

func (f *fakeSource) Levels(_ context.Context) ([]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return DistinctLevels(PersonalBests(f.records)), nil
}

func TestEngine(t *testing.T) {
	Convey("Given an engine over a populated source", t, func() {
		ctx := context.Background()
		r := roster{}
		src := &fakeSource{records: []Record{
			r.rec("alice", 1, 100, at(3)),
			r.rec("alice", 1, 90, at(4)),
			r.rec("bob", 1, 110, at(1)),
			r.rec("carol", 1, 80, at(2)),
			r.rec("alice", 2, 200, at(-30)),
			r.rec("bob", 2, 200, at(-60)),
			r.rec("alice", 3, 500, at(7)),
		}}
		engine := NewEngine(src)

		Convey("When level 1 is queried", func() {
			board, err := engine.ByLevel(ctx, 1)

			Convey("Then bob, alice and carol are ranked by best score", func() {
				So(err, ShouldBeNil)
				So(len(board), ShouldEqual, 3)
				So(board[0].Username, ShouldEqual, "bob")
				So(board[0].Score, ShouldEqual, 110)
				So(board[1].Username, ShouldEqual, "alice")
				So(board[1].Score, ShouldEqual, 100)
				So(board[2].Username, ShouldEqual, "carol")
				So(board[2].Rank, ShouldEqual, 3)
			})
		})

		Convey("When level 2 with tied bests is queried", func() {
			board, err := engine.ByLevel(ctx, 2)

			Convey("Then the earlier best ranks first", func() {
				So(err, ShouldBeNil)
				So(board[0].Username, ShouldEqual, "bob")
				So(board[1].Username, ShouldEqual, "alice")
			})
		})

		Convey("When the overall board is queried", func() {
			board, err := engine.Overall(ctx)

			Convey("Then totals are summed bests", func() {
				So(err, ShouldBeNil)
				So(board[0].Username, ShouldEqual, "alice")
				So(board[0].Score, ShouldEqual, 800)
				So(board[1].Username, ShouldEqual, "bob")
				So(board[1].Score, ShouldEqual, 310)
				So(board[2].Username, ShouldEqual, "carol")
			})
		})

		Convey("When a level without records is queried", func() {
			board, err := engine.ByLevel(ctx, 999)

			Convey("Then the board is empty without error", func() {
				So(err, ShouldBeNil)
				So(board, ShouldNotBeNil)
				So(board, ShouldBeEmpty)
			})
		})

		Convey("When levels are listed", func() {
			levels, err := engine.Levels(ctx)
			So(err, ShouldBeNil)
			So(levels, ShouldResemble, []int{1, 2, 3})
		})

		Convey("When top N is smaller than the field", func() {
			engine = NewEngine(src, WithTopN(2))
			board, err := engine.Overall(ctx)

			So(err, ShouldBeNil)
			So(len(board), ShouldEqual, 2)
			So(engine.TopN(), ShouldEqual, 2)
		})

		Convey("When strict levels are enabled", func() {
			engine = NewEngine(src, WithStrictLevels(true))

			Convey("Then known levels still rank", func() {
				board, err := engine.ByLevel(ctx, 3)
				So(err, ShouldBeNil)
				So(len(board), ShouldEqual, 1)
			})

			Convey("And unknown levels fail", func() {
				_, err := engine.ByLevel(ctx, 999)
				So(errors.Is(err, ErrUnknownLevel), ShouldBeTrue)
			})
		})
	})

	Convey("Given an engine over an empty source", t, func() {
		ctx := context.Background()
		engine := NewEngine(&fakeSource{})

		Convey("Then every query is empty", func() {
			overall, err := engine.Overall(ctx)
			So(err, ShouldBeNil)
			So(overall, ShouldBeEmpty)

			levels, err := engine.Levels(ctx)
			So(err, ShouldBeNil)
			So(levels, ShouldNotBeNil)
			So(levels, ShouldBeEmpty)
		})
	})

	Convey("Given a failing source", t, func() {
		ctx := context.Background()
		storeErr := errors.New("connection refused")
		src := &fakeSource{err: storeErr}
		engine := NewEngine(src)

		Convey("Then the storage error is wrapped, not swallowed", func() {
			_, err := engine.ByLevel(ctx, 1)
			So(errors.Is(err, storeErr), ShouldBeTrue)

			_, err = engine.Overall(ctx)
			So(errors.Is(err, storeErr), ShouldBeTrue)

			_, err = engine.Levels(ctx)
			So(errors.Is(err, storeErr), ShouldBeTrue)
		})
	})

	Convey("Given a level of zero", t, func() {
		src := &fakeSource{}
		engine := NewEngine(src)

		Convey("Then the source is not asked for every level", func() {
			board, err := engine.ByLevel(context.Background(), model.AllLevels)
			So(err, ShouldBeNil)
			So(board, ShouldBeEmpty)
			So(src.calls, ShouldEqual, 0)
		})
	})
}
