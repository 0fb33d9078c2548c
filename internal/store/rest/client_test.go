package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"waselni/internal/store"
)

// recorder captures the requests a fake PostgREST server receives.
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string

	status int
	body   string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	b, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.bodies = append(r.bodies, string(b))
	status, body := r.status, r.body
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (r *recorder) last() (*http.Request, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1], r.bodies[len(r.bodies)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func newTestClient(t *testing.T, rec *recorder) *Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return New(srv.URL, "anon-key", 0, WithHTTPClient(srv.Client()))
}

func TestEncodeQuery(t *testing.T) {
	t.Parallel()

	q := store.NewQuery().
		Where(store.Eq("is_online", true), store.Eq("background_check_status", "approved")).
		Or(store.Eq("passenger_id", "u1"), store.In("driver_id", "d1", "d2")).
		OrderBy("created_at", true).
		WithLimit(20).
		Embedding(store.Profiles)

	params := encodeQuery(q)

	tests := map[string]string{
		"select":                  "*,profiles(*)",
		"is_online":               "eq.true",
		"background_check_status": "eq.approved",
		"or":                      "(passenger_id.eq.u1,driver_id.in.(d1,d2))",
		"order":                   "created_at.desc",
		"limit":                   "20",
	}
	for key, want := range tests {
		if got := params.Get(key); got != want {
			t.Errorf("%s: expected %q, got %q", key, want, got)
		}
	}
}

func TestClient_ListSendsAuthHeaders(t *testing.T) {
	t.Parallel()

	rec := &recorder{body: `[{"id":"u-1","name":"AUBH"},{"id":"u-2","name":"UOB"}]`}
	c := newTestClient(t, rec)

	rows, err := c.List(context.Background(), store.Universities,
		store.NewQuery().Where(store.Eq("is_active", true)).OrderBy("name", false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	req, _ := rec.last()
	if req.Method != http.MethodGet {
		t.Errorf("expected GET, got %s", req.Method)
	}
	if req.URL.Path != "/rest/v1/universities" {
		t.Errorf("unexpected path %s", req.URL.Path)
	}
	if req.Header.Get("apikey") != "anon-key" || req.Header.Get("Authorization") != "Bearer anon-key" {
		t.Errorf("missing auth headers: %v", req.Header)
	}
	if got := req.URL.Query().Get("order"); got != "name.asc" {
		t.Errorf("expected order name.asc, got %s", got)
	}
}

func TestClient_InsertReturnsRepresentation(t *testing.T) {
	t.Parallel()

	rec := &recorder{status: http.StatusCreated, body: `[{"id":"t1","status":"pending"}]`}
	c := newTestClient(t, rec)

	raw, err := c.Insert(context.Background(), store.SafetyReports, store.Values{
		"reporter_id": "u1", "report_type": "other", "description": "Driver was late",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"id":"t1","status":"pending"}` {
		t.Errorf("unexpected row %s", raw)
	}

	req, body := rec.last()
	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if req.Header.Get("Prefer") != "return=representation" {
		t.Errorf("expected representation preference, got %q", req.Header.Get("Prefer"))
	}
	var sent map[string]any
	if err := json.Unmarshal([]byte(body), &sent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent["description"] != "Driver was late" {
		t.Errorf("unexpected body %s", body)
	}
}

func TestClient_InsertValidationNeverSent(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := newTestClient(t, rec)

	_, err := c.Insert(context.Background(), store.SafetyReports, store.Values{"reporter_id": "u1"})
	var ve *store.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected no request, got %d", rec.count())
	}
}

func TestClient_UpdateCompareAndSet(t *testing.T) {
	t.Parallel()

	rec := &recorder{body: `[{"id":"t1","status":"cancelled"}]`}
	c := newTestClient(t, rec)

	_, err := c.Update(context.Background(), store.Trips, "t1",
		store.Values{"status": "cancelled"}, store.Eq("status", "pending"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, _ := rec.last()
	if req.Method != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", req.Method)
	}
	q := req.URL.Query()
	if q.Get("id") != "eq.t1" || q.Get("status") != "eq.pending" {
		t.Errorf("unexpected filters %v", q)
	}
}

func TestClient_UpdateNoRowsIsNotFound(t *testing.T) {
	t.Parallel()

	rec := &recorder{body: `[]`}
	c := newTestClient(t, rec)

	_, err := c.Update(context.Background(), store.Trips, "t1", store.Values{"status": "accepted"}, store.Eq("status", "pending"))
	if !store.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		validation bool
	}{
		{"check violation", http.StatusBadRequest, `{"code":"23514","message":"violates check constraint"}`, true},
		{"permission denied", http.StatusUnauthorized, `{"code":"42501","message":"permission denied"}`, false},
		{"server error", http.StatusBadGateway, `upstream unavailable`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{status: tt.status, body: tt.body}
			c := newTestClient(t, rec)

			_, err := c.List(context.Background(), store.Trips, store.NewQuery())
			var ve *store.ValidationError
			var se *store.StoreError
			if tt.validation {
				if !errors.As(err, &ve) {
					t.Errorf("expected ValidationError, got %v", err)
				}
				return
			}
			if !errors.As(err, &se) {
				t.Errorf("expected StoreError, got %v", err)
			}
		})
	}
}
