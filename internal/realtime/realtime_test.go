package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"waselni/internal/store"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func subscribers(b *Broadcaster) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams)
}

func tripEvent(kind Kind, row string) Event {
	e := Event{Kind: kind, Collection: store.Trips}
	if kind == KindDelete {
		e.Old = json.RawMessage(row)
	} else {
		e.New = json.RawMessage(row)
	}
	return e
}

func TestSubscription_Matches(t *testing.T) {
	t.Parallel()

	sub := Subscription{Collection: store.Trips, Filter: "passenger_id=eq.u1"}

	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"insert for user", tripEvent(KindInsert, `{"id":"t1","passenger_id":"u1"}`), true},
		{"insert for other user", tripEvent(KindInsert, `{"id":"t2","passenger_id":"u2"}`), false},
		{"update for user", tripEvent(KindUpdate, `{"id":"t1","passenger_id":"u1","status":"accepted"}`), true},
		{"delete with full image", tripEvent(KindDelete, `{"id":"t1","passenger_id":"u1"}`), true},
		{"delete of other user", tripEvent(KindDelete, `{"id":"t2","passenger_id":"u2"}`), false},
		{"delete with key only", tripEvent(KindDelete, `{"id":"t3"}`), true},
		{"other collection", Event{Kind: KindInsert, Collection: store.Drivers, New: json.RawMessage(`{"passenger_id":"u1"}`)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sub.Matches(tt.event); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSubscription_Validate(t *testing.T) {
	t.Parallel()

	valid := []Subscription{
		{Collection: store.Trips},
		{Collection: store.Trips, Filter: "passenger_id=eq.u1"},
		{Collection: store.Drivers, Filter: "current_latitude=is.null"},
	}
	for _, s := range valid {
		if err := s.Validate(); err != nil {
			t.Errorf("%+v: unexpected error: %v", s, err)
		}
	}

	invalid := []Subscription{
		{Collection: "payments"},
		{Collection: store.Trips, Filter: "fare=eq.3"},
		{Collection: store.Trips, Filter: "passenger_id"},
	}
	for _, s := range invalid {
		if err := s.Validate(); err == nil {
			t.Errorf("%+v: expected error", s)
		}
	}
}

func TestBroadcaster_DeliversOnlyMatchingEvents(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	defer b.Close()

	ctx := context.Background()
	mine, err := b.Subscribe(ctx, Subscription{Collection: store.Trips, Filter: "passenger_id=eq.u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all, err := b.Subscribe(ctx, Subscription{Collection: store.Trips})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.Publish(tripEvent(KindInsert, `{"id":"t1","passenger_id":"u2"}`))
	b.Publish(tripEvent(KindInsert, `{"id":"t2","passenger_id":"u1"}`))

	got := <-mine.Events()
	var row struct{ ID string }
	if err := got.Decode(&row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "t2" {
		t.Errorf("expected t2, got %s", row.ID)
	}
	if n := len(all.Events()); n != 2 {
		t.Errorf("expected 2 events on unfiltered stream, got %d", n)
	}
}

func TestBroadcaster_CloseEndsStreams(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	s, err := b.Subscribe(context.Background(), Subscription{Collection: store.Trips})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.Close()

	if _, ok := <-s.Events(); ok {
		t.Error("expected events channel to be closed")
	}
	if _, err := b.Subscribe(context.Background(), Subscription{Collection: store.Trips}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should be harmless: %v", err)
	}
}

func TestBroadcaster_StreamCloseUnregisters(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	defer b.Close()

	s, err := b.Subscribe(context.Background(), Subscription{Collection: store.Trips})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subscribers(b) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", subscribers(b))
	}
	s.Close()
	if subscribers(b) != 0 {
		t.Errorf("expected 0 subscribers, got %d", subscribers(b))
	}

	// Publishing after close must not block or panic.
	b.Publish(tripEvent(KindInsert, `{"id":"t1"}`))
}

func TestListener_DeliversAndStops(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	defer b.Close()

	l := NewListener(b, Subscription{Collection: store.Trips, Filter: "passenger_id=eq.u1"}, quietLogger())

	var mu sync.Mutex
	var got []Event
	received := make(chan struct{}, 1)

	err := l.Start(context.Background(), func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		received <- struct{}{}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Running() {
		t.Error("expected listener to be running")
	}

	b.Publish(tripEvent(KindInsert, `{"id":"t1","passenger_id":"u1"}`))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	l.Stop()
	l.Stop()

	if l.Running() {
		t.Error("expected listener to be stopped")
	}
	if subscribers(b) != 0 {
		t.Errorf("expected subscription to be released, got %d", subscribers(b))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Errorf("expected 1 event, got %d", len(got))
	}
}

func TestListener_StartTwice(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	defer b.Close()

	l := NewListener(b, Subscription{Collection: store.Trips}, quietLogger())
	if err := l.Start(context.Background(), func(Event) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Stop()

	if err := l.Start(context.Background(), func(Event) {}); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestListener_StopWithoutStart(t *testing.T) {
	t.Parallel()

	l := NewListener(Unavailable{}, Subscription{Collection: store.Trips}, quietLogger())
	l.Stop()
}

func TestListener_UnavailableSource(t *testing.T) {
	t.Parallel()

	l := NewListener(Unavailable{}, Subscription{Collection: store.Trips}, quietLogger())
	if err := l.Start(context.Background(), func(Event) {}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if l.Running() {
		t.Error("listener must not run after a failed start")
	}
}

// droppingSource hands out broadcaster streams and can end them all, the
// way a lost websocket or LISTEN connection does.
type droppingSource struct {
	*Broadcaster

	mu         sync.Mutex
	open       []Stream
	subscribes int
}

func (d *droppingSource) Subscribe(ctx context.Context, sub Subscription) (Stream, error) {
	s, err := d.Broadcaster.Subscribe(ctx, sub)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.open = append(d.open, s)
	d.subscribes++
	d.mu.Unlock()
	return s, nil
}

func (d *droppingSource) drop() {
	d.mu.Lock()
	open := d.open
	d.open = nil
	d.mu.Unlock()
	for _, s := range open {
		s.Close()
	}
}

func (d *droppingSource) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscribes
}

func TestListener_ResubscribesWhenStreamEnds(t *testing.T) {
	t.Parallel()

	src := &droppingSource{Broadcaster: NewBroadcaster()}
	defer src.Close()

	resynced := make(chan struct{}, 1)
	received := make(chan Event, 1)

	l := NewListener(src, Subscription{Collection: store.Trips}, quietLogger()).
		WithRetryDelay(time.Millisecond).
		WithResync(func(context.Context) { resynced <- struct{}{} })
	if err := l.Start(context.Background(), func(e Event) { received <- e }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Stop()

	src.drop()

	select {
	case <-resynced:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resync")
	}
	if n := src.count(); n != 2 {
		t.Errorf("expected a second subscription, got %d", n)
	}
	if !l.Running() {
		t.Error("expected listener to keep running")
	}

	src.Publish(tripEvent(KindInsert, `{"id":"t9"}`))
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event on the new stream")
	}
}

func TestListener_GivesUpOnClosedSource(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	l := NewListener(b, Subscription{Collection: store.Trips}, quietLogger()).WithRetryDelay(time.Millisecond)
	if err := l.Start(context.Background(), func(Event) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.Close()

	deadline := time.Now().Add(2 * time.Second)
	for l.Running() {
		if time.Now().After(deadline) {
			t.Fatal("expected listener to stop once the source is closed")
		}
		time.Sleep(time.Millisecond)
	}
	l.Stop()
}
