// Package store defines the record store client shared by every backend.
//
// A backend exposes five collections as rows of JSON. Reads take a Query made
// of ANDed filters, an optional OR group, ordering and a limit. Writes are
// single-row and single-shot: nothing is retried, cached or batched.
package store

import (
	"context"
	"encoding/json"
)

// Collection names a remote table.
type Collection string

const (
	Profiles      Collection = "profiles"
	Drivers       Collection = "drivers"
	Trips         Collection = "trips"
	Universities  Collection = "universities"
	SafetyReports Collection = "safety_reports"
)

// Values holds column values for an insert or update.
type Values map[string]any

// Client is implemented by every record store backend.
type Client interface {
	// List returns the rows of c matching q.
	List(ctx context.Context, c Collection, q Query) ([]json.RawMessage, error)

	// Insert persists a new row and returns it with its server-assigned fields.
	Insert(ctx context.Context, c Collection, v Values) (json.RawMessage, error)

	// Update applies v to the row with the given id. When conds are given the
	// row must also satisfy them; otherwise a *NotFoundError is returned.
	Update(ctx context.Context, c Collection, id string, v Values, conds ...Filter) (json.RawMessage, error)
}
