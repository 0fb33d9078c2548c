// Package realtime delivers row change events from the record store.
//
// Delivery is at-least-once and unordered relative to local writes. There
// is no replay: events emitted while no stream is open are lost, so callers
// refresh their caches after (re)subscribing.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"waselni/internal/store"
)

// Kind is the kind of row change.
type Kind string

const (
	KindInsert Kind = "INSERT"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
)

var (
	// ErrUnavailable is returned by sources that cannot deliver events.
	ErrUnavailable = errors.New("realtime unavailable")

	// ErrClosed is returned when subscribing to a closed source.
	ErrClosed = errors.New("realtime source closed")

	// ErrAlreadyStarted is returned when a listener is started twice.
	ErrAlreadyStarted = errors.New("listener already started")
)

// Event is a single row change with full row images.
type Event struct {
	Kind       Kind             `json:"type"`
	Collection store.Collection `json:"table"`
	New        json.RawMessage  `json:"record,omitempty"`
	Old        json.RawMessage  `json:"old_record,omitempty"`
	CommitTime time.Time        `json:"commit_timestamp"`
}

// Row returns the image describing the row: the new image, or the old one
// for deletes.
func (e Event) Row() json.RawMessage {
	if e.Kind == KindDelete {
		return e.Old
	}
	return e.New
}

// Decode unmarshals the row image into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Row(), v)
}

// Subscription selects the events of one collection, optionally narrowed by
// a "column=eq.value" filter.
type Subscription struct {
	Collection store.Collection
	Filter     string
}

// Validate checks the collection and filter syntax.
func (s Subscription) Validate() error {
	schema, err := store.Lookup(s.Collection)
	if err != nil {
		return err
	}
	if s.Filter == "" {
		return nil
	}
	f, err := store.ParseFilter(s.Filter)
	if err != nil {
		return err
	}
	if !schema.HasColumn(f.Column) {
		return store.Invalid(f.Column, "unknown column")
	}
	return nil
}

// Matches reports whether e belongs to the subscription. Delete images that
// lack the filtered column are delivered, since the old image of a delete
// may carry only the primary key.
func (s Subscription) Matches(e Event) bool {
	if e.Collection != s.Collection {
		return false
	}
	if s.Filter == "" {
		return true
	}
	f, err := store.ParseFilter(s.Filter)
	if err != nil {
		return false
	}
	row, err := store.DecodeRow(e.Row())
	if err != nil {
		return false
	}
	if _, ok := row[f.Column]; !ok && e.Kind == KindDelete {
		return true
	}
	return row.Matches(f)
}

// Stream is an open subscription.
type Stream interface {
	// Events is closed when the stream ends.
	Events() <-chan Event
	Close() error
}

// Source opens subscriptions.
type Source interface {
	Subscribe(ctx context.Context, sub Subscription) (Stream, error)
}

// Unavailable is the source used when no store is configured.
type Unavailable struct{}

func (Unavailable) Subscribe(context.Context, Subscription) (Stream, error) {
	return nil, ErrUnavailable
}
