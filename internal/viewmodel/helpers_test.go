package viewmodel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"waselni/internal/realtime"
	"waselni/internal/store"
	"waselni/internal/store/memory"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// tickingClock returns strictly increasing times, one second apart.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newMemoryStore() *memory.Store {
	return memory.New().WithClock(newTickingClock().Now)
}

// flakyClient fails List calls while failing is set.
type flakyClient struct {
	store.Client

	mu      sync.Mutex
	failing error
	lists   int
}

func (f *flakyClient) fail(err error) {
	f.mu.Lock()
	f.failing = err
	f.mu.Unlock()
}

func (f *flakyClient) List(ctx context.Context, c store.Collection, q store.Query) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.lists++
	err := f.failing
	f.mu.Unlock()
	if err != nil {
		return nil, &store.StoreError{Op: "list", Collection: c, Err: err}
	}
	return f.Client.List(ctx, c, q)
}

// gatedClient parks List calls on one collection after the rows are read,
// until release is closed.
type gatedClient struct {
	store.Client
	coll    store.Collection
	listed  chan struct{}
	release chan struct{}
}

func newGatedClient(c store.Client, coll store.Collection) *gatedClient {
	return &gatedClient{Client: c, coll: coll, listed: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedClient) List(ctx context.Context, c store.Collection, q store.Query) ([]json.RawMessage, error) {
	rows, err := g.Client.List(ctx, c, q)
	if c == g.coll {
		select {
		case g.listed <- struct{}{}:
		default:
		}
		<-g.release
	}
	return rows, err
}

// flappingSource serves memory store streams. drop ends every open stream
// and refuses new ones until restore.
type flappingSource struct {
	*memory.Store

	mu         sync.Mutex
	open       []realtime.Stream
	down       bool
	subscribes int
}

func (f *flappingSource) Subscribe(ctx context.Context, sub realtime.Subscription) (realtime.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("connection refused")
	}
	st, err := f.Store.Subscribe(ctx, sub)
	if err != nil {
		return nil, err
	}
	f.open = append(f.open, st)
	f.subscribes++
	return st, nil
}

func (f *flappingSource) drop() {
	f.mu.Lock()
	open := f.open
	f.open = nil
	f.down = true
	f.mu.Unlock()
	for _, st := range open {
		_ = st.Close()
	}
}

func (f *flappingSource) restore() {
	f.mu.Lock()
	f.down = false
	f.mu.Unlock()
}

func (f *flappingSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

// tripParties is a passenger and a driver sharing one store.
type tripParties struct {
	store     *memory.Store
	passenger *Trips
	driver    *Trips
	driverID  string
}

func newTripParties(t *testing.T) tripParties {
	t.Helper()
	s := newMemoryStore()
	seedProfile(t, s, "passenger-1", "Maryam")
	seedProfile(t, s, "driver-user", "Ali")
	driverID := seed(t, s, store.Drivers, store.Values{
		"profile_id": "driver-user", "vehicle_type": "minibus", "vehicle_plate": "55123", "license_number": "L-9",
	})
	return tripParties{
		store:     s,
		passenger: NewTrips("passenger-1", s, s, quietLogger()),
		driver:    NewTrips("driver-user", s, s, quietLogger()),
		driverID:  driverID,
	}
}

func seed(t *testing.T, s *memory.Store, c store.Collection, v store.Values) string {
	t.Helper()
	raw, err := s.Insert(context.Background(), c, v)
	if err != nil {
		t.Fatalf("seed %s: %v", c, err)
	}
	var row struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		t.Fatalf("seed %s: %v", c, err)
	}
	return row.ID
}

func seedProfile(t *testing.T, s *memory.Store, id, name string) {
	t.Helper()
	seed(t, s, store.Profiles, store.Values{"id": id, "email": id + "@uob.edu.bh", "full_name": name})
}

// eventually polls cond until it holds or two seconds pass.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func ptr[T any](v T) *T {
	return &v
}
