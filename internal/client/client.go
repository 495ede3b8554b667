// Package client is a Go client for the PlaneWar score server API.
//
// Authenticated calls take the Session returned by Login; the client itself
// holds no login state and is safe for concurrent use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/types"
)

const defaultTimeout = 10 * time.Second

// ErrNoSession is returned by authenticated calls made without a token.
var ErrNoSession = errors.New("client: no session token")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("planewar api: HTTP %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("planewar api: HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client talks to one server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// New creates a client for the server at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks that the server answers GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

// Register creates an account and returns the new player id.
func (c *Client) Register(ctx context.Context, username, email, password string) (uuid.UUID, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var resp struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &resp); err != nil {
		return uuid.Nil, err
	}
	return resp.UserID, nil
}

// Login exchanges credentials for a Session.
func (c *Client) Login(ctx context.Context, username, password string) (types.Session, error) {
	body := map[string]string{"username": username, "password": password}
	var sess types.Session
	if err := c.do(ctx, http.MethodPost, "/api/login", "", body, &sess); err != nil {
		return types.Session{}, err
	}
	return sess, nil
}

// SubmitScore records a score synchronously.
func (c *Client) SubmitScore(ctx context.Context, sess types.Session, level int, score int64) (model.ScoreRecord, error) {
	if sess.Token == "" {
		return model.ScoreRecord{}, ErrNoSession
	}
	body := map[string]any{"level": level, "score": score}
	var resp struct {
		Record model.ScoreRecord `json:"record"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/submit_score", sess.Token, body, &resp); err != nil {
		return model.ScoreRecord{}, err
	}
	return resp.Record, nil
}

// PostEvent queues a score for asynchronous processing. It reports whether
// the server had already seen eventID.
func (c *Client) PostEvent(ctx context.Context, sess types.Session, eventID string, level int, score int64) (bool, error) {
	if sess.Token == "" {
		return false, ErrNoSession
	}
	body := map[string]any{"event_id": eventID, "level": level, "score": score}
	var ack struct {
		Duplicate bool `json:"duplicate"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/events", sess.Token, body, &ack); err != nil {
		return false, err
	}
	return ack.Duplicate, nil
}

// MyScores lists the session player's records, newest first.
func (c *Client) MyScores(ctx context.Context, sess types.Session) ([]model.ScoreRecord, error) {
	if sess.Token == "" {
		return nil, ErrNoSession
	}
	var recs []model.ScoreRecord
	if err := c.do(ctx, http.MethodGet, "/api/me/scores", sess.Token, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteMe deletes the session player and all of their scores.
func (c *Client) DeleteMe(ctx context.Context, sess types.Session) error {
	if sess.Token == "" {
		return ErrNoSession
	}
	return c.do(ctx, http.MethodDelete, "/api/me", sess.Token, nil, nil)
}

// Levels lists the levels that have scores.
func (c *Client) Levels(ctx context.Context) ([]int, error) {
	var levels []int
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard/levels", "", nil, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// Overall fetches the overall leaderboard.
func (c *Client) Overall(ctx context.Context) ([]types.Entry, error) {
	var entries []types.Entry
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard/overall", "", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LevelBoard fetches the leaderboard of one level.
func (c *Client) LevelBoard(ctx context.Context, level int) ([]types.Entry, error) {
	var entries []types.Entry
	path := "/api/leaderboard/levels/" + strconv.Itoa(level)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// do sends one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
