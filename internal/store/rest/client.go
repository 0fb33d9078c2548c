// Package rest talks to a PostgREST-compatible endpoint, such as the one a
// hosted Supabase project exposes under /rest/v1.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"waselni/internal/store"
)

const defaultTimeout = 15 * time.Second

// Client implements store.Client over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ store.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the project at baseURL. Outbound requests are
// recorded as external segments of the transaction in their context.
func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/rest/v1",
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the rows of c matching q.
func (c *Client) List(ctx context.Context, coll store.Collection, q store.Query) ([]json.RawMessage, error) {
	if err := store.ValidateQuery(coll, q); err != nil {
		return nil, err
	}

	params := encodeQuery(q)
	var rows []json.RawMessage
	if err := c.do(ctx, "list", coll, http.MethodGet, params, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert creates a row and returns its representation.
func (c *Client) Insert(ctx context.Context, coll store.Collection, v store.Values) (json.RawMessage, error) {
	if err := store.ValidateInsert(coll, v); err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := c.do(ctx, "insert", coll, http.MethodPost, url.Values{}, v, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &store.StoreError{Op: "insert", Collection: coll, Err: fmt.Errorf("empty representation")}
	}
	return rows[0], nil
}

// Update patches the row with id. An empty representation means no row
// matched the id and conditions.
func (c *Client) Update(ctx context.Context, coll store.Collection, id string, v store.Values, conds ...store.Filter) (json.RawMessage, error) {
	if err := store.ValidateUpdate(coll, id, v, conds); err != nil {
		return nil, err
	}

	params := url.Values{}
	addFilter(params, store.Eq("id", id))
	for _, f := range conds {
		addFilter(params, f)
	}

	var rows []json.RawMessage
	if err := c.do(ctx, "update", coll, http.MethodPatch, params, v, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &store.NotFoundError{Collection: coll, ID: id}
	}
	return rows[0], nil
}

func (c *Client) do(ctx context.Context, op string, coll store.Collection, method string, params url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return store.Invalid("", "encode body: "+err.Error())
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + "/" + string(coll)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &store.StoreError{Op: op, Collection: coll, Err: err}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &store.StoreError{Op: op, Collection: coll, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &store.StoreError{Op: op, Collection: coll, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(op, coll, resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return &store.StoreError{Op: op, Collection: coll, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// encodeQuery renders q as PostgREST query parameters.
func encodeQuery(q store.Query) url.Values {
	params := url.Values{}

	sel := "*"
	for _, e := range q.Embed {
		sel += "," + string(e) + "(*)"
	}
	params.Set("select", sel)

	for _, f := range q.Filters {
		addFilter(params, f)
	}

	if len(q.Any) > 0 {
		parts := make([]string, len(q.Any))
		for i, f := range q.Any {
			// Inside or=(...) the column and operator are joined by a dot.
			parts[i] = strings.Replace(f.String(), "=", ".", 1)
		}
		params.Set("or", "("+strings.Join(parts, ",")+")")
	}

	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}

	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params
}

func addFilter(params url.Values, f store.Filter) {
	col, expr, _ := strings.Cut(f.String(), "=")
	params.Add(col, expr)
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func decodeError(op string, coll store.Collection, status int, payload []byte) error {
	var ae apiError
	if err := json.Unmarshal(payload, &ae); err != nil || ae.Message == "" {
		ae.Message = strings.TrimSpace(string(payload))
	}

	// Constraint violations are reported as validation failures.
	switch ae.Code {
	case "23502", "23503", "23514", "22P02", "PGRST204":
		return &store.ValidationError{Reason: ae.Message}
	}
	return &store.StoreError{
		Op:         op,
		Collection: coll,
		Err:        fmt.Errorf("http %d: %s", status, ae.Message),
	}
}
