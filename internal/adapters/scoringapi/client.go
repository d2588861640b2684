// Package scoringapi is the HTTP client for the scoring API, the only writer
// of authoritative and derived game data.
package scoringapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
)

const (
	collaborator   = "scoring_api"
	maxErrorBody   = 64 << 10
	defaultTimeout = 10 * time.Second
)

// Client talks JSON over HTTP to the scoring API. Every privileged call takes
// the caller's bearer token; the client never stores one.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("scoringapi")
	}
	return c
}

// MessageResponse is the acknowledgment body of write endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	UserID  string `json:"user_id"`
	RaceID  int64  `json:"race_id"`
	QualiP1 string `json:"quali_p1_driver"`
	QualiP2 string `json:"quali_p2_driver"`
	QualiP3 string `json:"quali_p3_driver"`
	RaceP1  string `json:"race_p1_driver"`
	RaceP2  string `json:"race_p2_driver"`
	RaceP3  string `json:"race_p3_driver"`
	Bonus1  string `json:"bonus_1"`
	Bonus2  string `json:"bonus_2"`
	Bonus3  string `json:"bonus_3"`
}

// GradeRequest is the body of POST /admin/grade.
type GradeRequest struct {
	PredictionID int64  `json:"prediction_id"`
	ManualScore  int    `json:"manual_score"`
	LeagueID     *int64 `json:"league_id,omitempty"`
}

// LeagueInput is the body of POST /leagues.
type LeagueInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPublic    bool   `json:"is_public"`
}

// SubmitPrediction sends one ballot. It returns the server's message.
func (c *Client) SubmitPrediction(ctx context.Context, token string, b model.Ballot) (string, error) {
	req := PredictRequest{
		UserID: b.UserID, RaceID: b.RaceID,
		QualiP1: b.QualiP1, QualiP2: b.QualiP2, QualiP3: b.QualiP3,
		RaceP1: b.RaceP1, RaceP2: b.RaceP2, RaceP3: b.RaceP3,
		Bonus1: b.Bonus1, Bonus2: b.Bonus2, Bonus3: b.Bonus3,
	}
	var resp MessageResponse
	if err := c.do(ctx, "predict", http.MethodPost, "/predict", token, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Settle submits the authoritative result of a race.
func (c *Client) Settle(ctx context.Context, token string, result model.RaceResult) (string, error) {
	var resp MessageResponse
	if err := c.do(ctx, "settle", http.MethodPost, "/admin/settle", token, result, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Grade writes a ballot's manual score.
func (c *Client) Grade(ctx context.Context, token string, ballotID int64, score int) error {
	return c.do(ctx, "grade", http.MethodPost, "/admin/grade", token,
		GradeRequest{PredictionID: ballotID, ManualScore: score}, nil)
}

// AdminPredictions lists every ballot for a race with its grading state.
func (c *Client) AdminPredictions(ctx context.Context, token string, raceID int64) ([]model.Ballot, error) {
	var out []model.Ballot
	err := c.do(ctx, "admin_predictions", http.MethodGet, fmt.Sprintf("/admin/predictions/%d", raceID), token, nil, &out)
	return out, err
}

// Standings returns the global standings in server order.
func (c *Client) Standings(ctx context.Context) ([]model.Standing, error) {
	var out []model.Standing
	err := c.do(ctx, "standings", http.MethodGet, "/standings", "", nil, &out)
	return out, err
}

// CreateLeague creates a league owned by the caller.
func (c *Client) CreateLeague(ctx context.Context, token string, in LeagueInput) (model.League, error) {
	var out model.League
	err := c.do(ctx, "leagues_create", http.MethodPost, "/leagues", token, in, &out)
	return out, err
}

// PublicLeagues lists leagues anyone can join.
func (c *Client) PublicLeagues(ctx context.Context) ([]model.League, error) {
	var out []model.League
	err := c.do(ctx, "leagues_list", http.MethodGet, "/leagues", "", nil, &out)
	return out, err
}

// MyLeagues lists the caller's leagues.
func (c *Client) MyLeagues(ctx context.Context, token string) ([]model.League, error) {
	var out []model.League
	err := c.do(ctx, "leagues_mine", http.MethodGet, "/leagues/mine", token, nil, &out)
	return out, err
}

// JoinLeague joins by invite code.
func (c *Client) JoinLeague(ctx context.Context, token, inviteCode string) (model.League, error) {
	var out model.League
	err := c.do(ctx, "leagues_join", http.MethodPost, "/leagues/join", token,
		map[string]string{"invite_code": inviteCode}, &out)
	return out, err
}

// InviteToLeague invites a user by username.
func (c *Client) InviteToLeague(ctx context.Context, token string, leagueID int64, username string) (string, error) {
	var resp MessageResponse
	err := c.do(ctx, "leagues_invite", http.MethodPost, leaguePath(leagueID, "invite"), token,
		map[string]string{"username": username}, &resp)
	return resp.Message, err
}

// LeaveLeague removes the caller from a league.
func (c *Client) LeaveLeague(ctx context.Context, token string, leagueID int64) (string, error) {
	var resp MessageResponse
	err := c.do(ctx, "leagues_leave", http.MethodPost, leaguePath(leagueID, "leave"), token, nil, &resp)
	return resp.Message, err
}

// DeleteLeague deletes a league the caller owns.
func (c *Client) DeleteLeague(ctx context.Context, token string, leagueID int64) (string, error) {
	var resp MessageResponse
	err := c.do(ctx, "leagues_delete", http.MethodDelete, leaguePath(leagueID, ""), token, nil, &resp)
	return resp.Message, err
}

// LeagueStandings returns a league's table.
func (c *Client) LeagueStandings(ctx context.Context, token string, leagueID int64) ([]model.Membership, error) {
	var out []model.Membership
	err := c.do(ctx, "leagues_standings", http.MethodGet, leaguePath(leagueID, "standings"), token, nil, &out)
	return out, err
}

// LeagueMembers returns a league's members with roles.
func (c *Client) LeagueMembers(ctx context.Context, token string, leagueID int64) ([]model.Membership, error) {
	var out []model.Membership
	err := c.do(ctx, "leagues_members", http.MethodGet, leaguePath(leagueID, "members"), token, nil, &out)
	return out, err
}

// LeagueGradingQueue returns league ballots awaiting a grade.
func (c *Client) LeagueGradingQueue(ctx context.Context, token string, leagueID int64) ([]model.Ballot, error) {
	var out []model.Ballot
	err := c.do(ctx, "leagues_grading", http.MethodGet, leaguePath(leagueID, "grading"), token, nil, &out)
	return out, err
}

// LeagueActivity returns a league's activity feed.
func (c *Client) LeagueActivity(ctx context.Context, token string, leagueID int64) ([]model.LeagueActivity, error) {
	var out []model.LeagueActivity
	err := c.do(ctx, "leagues_activity", http.MethodGet, leaguePath(leagueID, "activity"), token, nil, &out)
	return out, err
}

// SyncLeaguePoints recomputes member season points.
func (c *Client) SyncLeaguePoints(ctx context.Context, token string, leagueID int64) (string, error) {
	var resp MessageResponse
	err := c.do(ctx, "leagues_sync", http.MethodPost, leaguePath(leagueID, "sync"), token, nil, &resp)
	return resp.Message, err
}

func leaguePath(id int64, sub string) string {
	p := "/leagues/" + url.PathEscape(fmt.Sprint(id))
	if sub != "" {
		p += "/" + sub
	}
	return p
}

// do performs one request. Non-2xx responses become *APIError, failures
// without a response become *TransportError.
func (c *Client) do(ctx context.Context, endpoint, method, path, token string, body, out any) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.RecordUpstream(collaborator, endpoint, outcome, float64(time.Since(start).Milliseconds()))
	}()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			outcome = "encode_error"
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		outcome = "encode_error"
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "transport_error"
		c.log.Warn(ctx, "scoring api request failed",
			logger.String("endpoint", endpoint),
			logger.Error(err))
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = fmt.Sprintf("http_%d", resp.StatusCode)
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := decodeError(resp.StatusCode, raw)
		c.log.Debug(ctx, "scoring api rejected request",
			logger.String("endpoint", endpoint),
			logger.Int("status", resp.StatusCode),
			logger.String("detail", apiErr.DetailText()))
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		outcome = "decode_error"
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
