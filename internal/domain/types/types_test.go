package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryJSON(t *testing.T) {
	Convey("Given a ranked entry", t, func() {
		entry := types.Entry{
			Rank:      1,
			Username:  "alice",
			Score:     500,
			Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		}

		Convey("When it is encoded for the leaderboard API", func() {
			raw, err := json.Marshal(entry)
			So(err, ShouldBeNil)

			var fields map[string]any
			So(json.Unmarshal(raw, &fields), ShouldBeNil)

			Convey("Then it carries rank, username, score and timestamp", func() {
				So(fields, ShouldContainKey, "rank")
				So(fields, ShouldContainKey, "username")
				So(fields, ShouldContainKey, "score")
				So(fields["timestamp"], ShouldEqual, "2024-01-01T10:00:00Z")
				So(len(fields), ShouldEqual, 4)
			})
		})
	})
}
