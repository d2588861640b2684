package recordstore

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

	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
)

const restCollaborator = "record_store"

// RESTStore speaks the PostgREST dialect used by hosted backends:
// GET /rest/v1/{table}?col=eq.value&order=col.asc with apikey and bearer
// headers.
type RESTStore struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     logger.Logger
}

// NewRESTStore creates a store rooted at baseURL authenticating with apiKey.
func NewRESTStore(baseURL, apiKey string, opts ...RESTOption) *RESTStore {
	s := &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("recordstore")
	}
	return s
}

// Select runs q and returns matching rows.
func (s *RESTStore) Select(ctx context.Context, q Query) ([]Record, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	}
	for _, f := range q.Filters {
		params.Add(f.Column, string(f.Op)+"."+formatValue(f.Value))
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var out []Record
	err := s.do(ctx, "select_"+q.Table, http.MethodGet, q.Table, params, nil, "", &out)
	return out, err
}

// Insert adds rec and returns the stored row, including generated columns.
func (s *RESTStore) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkRecord(rec); err != nil {
		return nil, err
	}
	var out []Record
	if err := s.do(ctx, "insert_"+table, http.MethodPost, table, nil, rec, "return=representation", &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return rec, nil
	}
	return out[0], nil
}

// Update patches the rows matching key.
func (s *RESTStore) Update(ctx context.Context, table string, key Filter, patch Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkRecord(patch); err != nil {
		return err
	}
	params := url.Values{}
	params.Set(key.Column, string(key.Op)+"."+formatValue(key.Value))
	return s.do(ctx, "update_"+table, http.MethodPatch, table, params, patch, "return=minimal", nil)
}

func (s *RESTStore) do(ctx context.Context, endpoint, method, table string, params url.Values, body any, prefer string, out any) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.RecordUpstream(restCollaborator, endpoint, outcome, float64(time.Since(start).Milliseconds()))
	}()

	u := s.baseURL + "/rest/v1/" + url.PathEscape(table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			outcome = "encode_error"
			return fmt.Errorf("encode %s: %w", endpoint, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		outcome = "encode_error"
		return fmt.Errorf("build %s: %w", endpoint, err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		outcome = "transport_error"
		s.log.Warn(ctx, "record store request failed",
			logger.String("endpoint", endpoint),
			logger.Error(err))
		return fmt.Errorf("recordstore %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = fmt.Sprintf("http_%d", resp.StatusCode)
		return decodeBackendError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		outcome = "decode_error"
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func decodeBackendError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	be := &BackendError{Status: resp.StatusCode}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && (body.Code != "" || body.Message != "") {
		be.Code = body.Code
		be.Message = body.Message
		if body.Details != "" {
			be.Message += " (" + body.Details + ")"
		}
		return be
	}
	be.Message = strings.TrimSpace(string(raw))
	if be.Message == "" {
		be.Message = http.StatusText(resp.StatusCode)
	}
	return be
}

// formatValue renders a filter value the way PostgREST expects it.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return "null"
		}
		return t.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
