package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/adapters/http/api"
	service "github.com/JimmyLuojun/PlaneWar-Sever/internal/app"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

func newTestClient(t *testing.T) (*Client, func()) {
	t.Helper()
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		t.Fatalf("init logger: %v", err)
	}

	svc := service.New(service.WithBcryptCost(4), service.WithWorkerCount(1))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	srv := httptest.NewServer(api.NewServer(svc).Router())

	return New(srv.URL, WithTimeout(5*time.Second)), func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	}
}

func TestClientAccounts(t *testing.T) {
	Convey("Given a running server", t, func() {
		c, done := newTestClient(t)
		defer done()
		ctx := context.Background()

		So(c.Health(ctx), ShouldBeNil)

		Convey("When a player registers and logs in", func() {
			id, err := c.Register(ctx, "ace", "ace@example.com", "hunter22")
			So(err, ShouldBeNil)
			So(id, ShouldNotEqual, uuid.Nil)

			sess, err := c.Login(ctx, "ace", "hunter22")
			So(err, ShouldBeNil)
			So(sess.PlayerID, ShouldEqual, id)
			So(sess.Username, ShouldEqual, "ace")
			So(sess.Token, ShouldNotBeEmpty)

			Convey("Then registering the same name again conflicts", func() {
				_, err := c.Register(ctx, "ace", "other@example.com", "hunter22")
				So(StatusOf(err), ShouldEqual, http.StatusConflict)

				var apiErr *APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.Message, ShouldEqual, "Username taken")
			})

			Convey("Then a wrong password is rejected", func() {
				_, err := c.Login(ctx, "ace", "nope")
				So(StatusOf(err), ShouldEqual, http.StatusUnauthorized)
			})

			Convey("Then deleting the account invalidates later submissions", func() {
				So(c.DeleteMe(ctx, sess), ShouldBeNil)

				_, err := c.SubmitScore(ctx, sess, 1, 10)
				So(StatusOf(err), ShouldEqual, http.StatusNotFound)

				_, err = c.MyScores(ctx, sess)
				So(StatusOf(err), ShouldEqual, http.StatusNotFound)

				_, err = c.Login(ctx, "ace", "hunter22")
				So(StatusOf(err), ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When an authenticated call has no session", func() {
			_, err := c.SubmitScore(ctx, types.Session{}, 1, 10)
			So(err, ShouldEqual, ErrNoSession)
			So(c.DeleteMe(ctx, types.Session{}), ShouldEqual, ErrNoSession)
		})

		Convey("When a session carries a forged token", func() {
			_, err := c.MyScores(ctx, types.Session{Token: "forged"})
			So(StatusOf(err), ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestClientScoresAndBoards(t *testing.T) {
	Convey("Given two registered players", t, func() {
		c, done := newTestClient(t)
		defer done()
		ctx := context.Background()

		login := func(name string) types.Session {
			_, err := c.Register(ctx, name, name+"@example.com", "password1")
			So(err, ShouldBeNil)
			sess, err := c.Login(ctx, name, "password1")
			So(err, ShouldBeNil)
			return sess
		}
		alice := login("alice")
		bob := login("bob")

		Convey("When they submit scores", func() {
			rec, err := c.SubmitScore(ctx, alice, 1, 300)
			So(err, ShouldBeNil)
			So(rec.Level, ShouldEqual, 1)
			So(rec.Score, ShouldEqual, 300)

			_, err = c.SubmitScore(ctx, bob, 1, 500)
			So(err, ShouldBeNil)
			_, err = c.SubmitScore(ctx, alice, 2, 400)
			So(err, ShouldBeNil)

			Convey("Then the boards reflect them", func() {
				levels, err := c.Levels(ctx)
				So(err, ShouldBeNil)
				So(levels, ShouldResemble, []int{1, 2})

				board, err := c.LevelBoard(ctx, 1)
				So(err, ShouldBeNil)
				So(len(board), ShouldEqual, 2)
				So(board[0].Username, ShouldEqual, "bob")
				So(board[0].Rank, ShouldEqual, 1)
				So(board[1].Username, ShouldEqual, "alice")

				overall, err := c.Overall(ctx)
				So(err, ShouldBeNil)
				So(overall[0].Username, ShouldEqual, "alice")
				So(overall[0].Score, ShouldEqual, 700)

				mine, err := c.MyScores(ctx, alice)
				So(err, ShouldBeNil)
				So(len(mine), ShouldEqual, 2)
				So(mine[0].Level, ShouldEqual, 2)
			})

			Convey("Then an unplayed level is not found", func() {
				_, err := c.LevelBoard(ctx, 9)
				So(StatusOf(err), ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a score is invalid", func() {
			_, err := c.SubmitScore(ctx, alice, 0, 10)
			So(StatusOf(err), ShouldEqual, http.StatusBadRequest)

			var apiErr *APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.Message, ShouldEqual, "Level must be a positive integer")
		})

		Convey("When the same event is posted twice", func() {
			dup, err := c.PostEvent(ctx, alice, "evt-1", 3, 50)
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)

			dup, err = c.PostEvent(ctx, alice, "evt-1", 3, 50)
			So(err, ShouldBeNil)
			So(dup, ShouldBeTrue)

			Convey("Then the event is eventually applied once", func() {
				var mine []int64
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					recs, err := c.MyScores(ctx, alice)
					So(err, ShouldBeNil)
					mine = mine[:0]
					for _, r := range recs {
						if r.Level == 3 {
							mine = append(mine, r.Score)
						}
					}
					if len(mine) > 0 {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(mine, ShouldResemble, []int64{50})
			})
		})
	})
}

func TestClientTransportErrors(t *testing.T) {
	Convey("Given a server that answers garbage", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		c := New(srv.URL + "/")

		Convey("Then decoding fails without an APIError", func() {
			_, err := c.Overall(context.Background())
			So(err, ShouldNotBeNil)
			So(StatusOf(err), ShouldEqual, 0)
		})
	})

	Convey("Given a server that is down", t, func() {
		c := New("http://127.0.0.1:1", WithTimeout(time.Second))

		Convey("Then calls fail", func() {
			So(c.Health(context.Background()), ShouldNotBeNil)
		})
	})

	Convey("Given an error without a JSON body", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := New(srv.URL).Health(context.Background())

		Convey("Then the status is still reported", func() {
			So(StatusOf(err), ShouldEqual, http.StatusBadGateway)
			So(err.Error(), ShouldContainSubstring, "502")
		})
	})
}
