package ballotsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/gridpick/internal/domain/confidence"
	"github.com/okian/gridpick/internal/domain/model"
)

// ErrUnexpectedStatus is returned when the BFF answers with a status the
// simulation does not expect for the request.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client talks to the BFF as a signed-in player would.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ballotBody struct {
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

type confidenceBody struct {
	Sample *confidence.Sample `json:"sample,omitempty"`
	NoData bool               `json:"no_data"`
	Seq    uint64             `json:"seq"`
}

// Health checks that the BFF answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// Submit posts p's ballot and classifies the answer. Transport errors are
// returned; HTTP-level rejections are reported through the outcome.
func (c *Client) Submit(ctx context.Context, p Player) (Outcome, string, error) {
	b := p.Ballot
	body := ballotBody{
		QualiP1: b.QualiP1, QualiP2: b.QualiP2, QualiP3: b.QualiP3,
		RaceP1: b.RaceP1, RaceP2: b.RaceP2, RaceP3: b.RaceP3,
		Bonus1: b.Bonus1, Bonus2: b.Bonus2, Bonus3: b.Bonus3,
	}
	path := "/races/" + strconv.FormatInt(b.RaceID, 10) + "/ballot"
	resp, err := c.do(ctx, http.MethodPost, path, p.Token, body)
	if err != nil {
		return OutcomeFailed, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return OutcomeFailed, "", fmt.Errorf("read submit response: %w", err)
	}

	if resp.StatusCode == http.StatusCreated {
		return OutcomeCreated, "", nil
	}
	var ae apiError
	_ = json.Unmarshal(data, &ae)
	return classifySubmit(resp.StatusCode, ae.Code), ae.Message, nil
}

func classifySubmit(status int, code string) Outcome {
	switch {
	case status == http.StatusCreated:
		return OutcomeCreated
	case status == http.StatusConflict && code == "duplicate":
		return OutcomeDuplicate
	case status == http.StatusConflict && code == "in_flight":
		return OutcomeInFlight
	case status >= 400 && status < 500:
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

// Confidence asks the BFF how many ballots pick driver in slot. The bool
// is false when the server has nothing to show.
func (c *Client) Confidence(ctx context.Context, token string, raceID int64, slot model.Slot, driver string, seq uint64) (confidence.Sample, bool, error) {
	q := url.Values{}
	q.Set("slot", string(slot))
	q.Set("driver", driver)
	q.Set("seq", strconv.FormatUint(seq, 10))
	path := "/races/" + strconv.FormatInt(raceID, 10) + "/confidence?" + q.Encode()

	resp, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return confidence.Sample{}, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var ae apiError
		_ = json.NewDecoder(resp.Body).Decode(&ae)
		return confidence.Sample{}, false, fmt.Errorf("%w: confidence %s returned %d %s", ErrUnexpectedStatus, slot, resp.StatusCode, ae.Code)
	}
	var out confidenceBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return confidence.Sample{}, false, fmt.Errorf("decode confidence: %w", err)
	}
	if out.NoData || out.Sample == nil {
		return confidence.Sample{}, false, nil
	}
	return *out.Sample, true, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
