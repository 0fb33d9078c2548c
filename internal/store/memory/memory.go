// Package memory is an in-process record store for local development and
// tests. It applies the same column defaults as the database and publishes
// every write as a realtime event.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"waselni/internal/realtime"
	"waselni/internal/store"
)

// Store keeps rows per collection in insertion order.
type Store struct {
	mu     sync.RWMutex
	tables map[store.Collection][]store.Row
	hub    *realtime.Broadcaster
	now    func() time.Time
}

var (
	_ store.Client    = (*Store)(nil)
	_ realtime.Source = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		tables: make(map[store.Collection][]store.Row),
		hub:    realtime.NewBroadcaster(),
		now:    time.Now,
	}
}

// WithClock replaces the server clock. It is meant for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// List returns the rows of c matching q.
func (s *Store) List(ctx context.Context, c store.Collection, q store.Query) ([]json.RawMessage, error) {
	if err := store.ValidateQuery(c, q); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &store.StoreError{Op: "list", Collection: c, Err: err}
	}

	s.mu.RLock()
	var matched []store.Row
	for _, row := range s.tables[c] {
		if row.MatchesQuery(q) {
			matched = append(matched, row)
		}
	}
	embedded := make([]store.Row, len(matched))
	for i, row := range matched {
		embedded[i] = s.embed(c, row, q.Embed)
	}
	s.mu.RUnlock()

	sortRows(embedded, q.Order)
	if q.Limit > 0 && len(embedded) > q.Limit {
		embedded = embedded[:q.Limit]
	}

	out := make([]json.RawMessage, 0, len(embedded))
	for _, row := range embedded {
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, &store.StoreError{Op: "list", Collection: c, Err: err}
		}
		out = append(out, raw)
	}
	return out, nil
}

// embed attaches related rows. Callers hold s.mu.
func (s *Store) embed(c store.Collection, row store.Row, embeds []store.Collection) store.Row {
	if len(embeds) == 0 {
		return row
	}
	schema, _ := store.Lookup(c)
	out := make(store.Row, len(row)+len(embeds))
	for k, v := range row {
		out[k] = v
	}
	for _, e := range embeds {
		fk := schema.Relations[e]
		out[string(e)] = nil
		for _, rel := range s.tables[e] {
			if rel.Matches(store.Eq("id", row[fk])) {
				out[string(e)] = rel
				break
			}
		}
	}
	return out
}

// Insert stores a new row, filling server defaults.
func (s *Store) Insert(ctx context.Context, c store.Collection, v store.Values) (json.RawMessage, error) {
	if err := store.ValidateInsert(c, v); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &store.StoreError{Op: "insert", Collection: c, Err: err}
	}
	schema, _ := store.Lookup(c)

	incoming, err := normalize(v)
	if err != nil {
		return nil, &store.StoreError{Op: "insert", Collection: c, Err: err}
	}

	now := s.now().UTC().Format(time.RFC3339Nano)
	row := make(store.Row, len(schema.Columns))
	for _, col := range schema.Columns {
		row[col] = nil
	}
	for col, def := range schema.Defaults {
		row[col] = def
	}
	for _, col := range schema.Stamped {
		row[col] = now
	}
	row["id"] = uuid.NewString()
	for col, val := range incoming {
		row[col] = val
	}
	row = roundTrip(row)

	s.mu.Lock()
	for _, existing := range s.tables[c] {
		if existing.Matches(store.Eq("id", row["id"])) {
			s.mu.Unlock()
			return nil, &store.StoreError{Op: "insert", Collection: c, Err: fmt.Errorf("duplicate id %v", row["id"])}
		}
	}
	s.tables[c] = append(s.tables[c], row)
	s.mu.Unlock()

	raw, err := json.Marshal(row)
	if err != nil {
		return nil, &store.StoreError{Op: "insert", Collection: c, Err: err}
	}
	s.hub.Publish(realtime.Event{Kind: realtime.KindInsert, Collection: c, New: raw, CommitTime: s.now()})
	return raw, nil
}

// Update applies v to the row with id when it satisfies conds.
func (s *Store) Update(ctx context.Context, c store.Collection, id string, v store.Values, conds ...store.Filter) (json.RawMessage, error) {
	if err := store.ValidateUpdate(c, id, v, conds); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &store.StoreError{Op: "update", Collection: c, Err: err}
	}
	schema, _ := store.Lookup(c)

	incoming, err := normalize(v)
	if err != nil {
		return nil, &store.StoreError{Op: "update", Collection: c, Err: err}
	}

	s.mu.Lock()
	rows := s.tables[c]
	idx := -1
	for i, row := range rows {
		if row.Matches(store.Eq("id", id)) && row.MatchesAll(conds) {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil, &store.NotFoundError{Collection: c, ID: id}
	}

	old := rows[idx]
	updated := make(store.Row, len(old))
	for k, val := range old {
		updated[k] = val
	}
	for col, val := range incoming {
		updated[col] = val
	}
	if schema.Touched {
		updated["updated_at"] = s.now().UTC().Format(time.RFC3339Nano)
	}
	rows[idx] = updated
	s.mu.Unlock()

	newRaw, err := json.Marshal(updated)
	if err != nil {
		return nil, &store.StoreError{Op: "update", Collection: c, Err: err}
	}
	oldRaw, _ := json.Marshal(old)
	s.hub.Publish(realtime.Event{Kind: realtime.KindUpdate, Collection: c, New: newRaw, Old: oldRaw, CommitTime: s.now()})
	return newRaw, nil
}

// Delete removes the row with id. Deletes are not part of the client
// surface; this exists to seed and exercise delete events.
func (s *Store) Delete(ctx context.Context, c store.Collection, id string) error {
	if _, err := store.Lookup(c); err != nil {
		return err
	}
	s.mu.Lock()
	rows := s.tables[c]
	for i, row := range rows {
		if row.Matches(store.Eq("id", id)) {
			s.tables[c] = append(rows[:i:i], rows[i+1:]...)
			s.mu.Unlock()

			oldRaw, err := json.Marshal(row)
			if err != nil {
				return err
			}
			s.hub.Publish(realtime.Event{Kind: realtime.KindDelete, Collection: c, Old: oldRaw, CommitTime: s.now()})
			return nil
		}
	}
	s.mu.Unlock()
	return &store.NotFoundError{Collection: c, ID: id}
}

// Subscribe opens a stream of the matching writes.
func (s *Store) Subscribe(ctx context.Context, sub realtime.Subscription) (realtime.Stream, error) {
	return s.hub.Subscribe(ctx, sub)
}

// Close ends every open stream.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

// normalize converts typed values into their JSON representation so stored
// rows compare the same way rows read back from the network do.
func normalize(v store.Values) (store.Row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var row store.Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func roundTrip(row store.Row) store.Row {
	raw, err := json.Marshal(row)
	if err != nil {
		return row
	}
	var out store.Row
	if err := json.Unmarshal(raw, &out); err != nil {
		return row
	}
	return out
}

func sortRows(rows []store.Row, order []store.Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			c := compare(rows[i][o.Column], rows[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compare orders JSON scalars; NULL sorts last ascending, as in PostgreSQL.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	case string:
		if y, ok := b.(string); ok {
			if tx, err := time.Parse(time.RFC3339Nano, x); err == nil {
				if ty, err := time.Parse(time.RFC3339Nano, y); err == nil {
					return tx.Compare(ty)
				}
			}
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	sa, sb := store.FormatValue(a), store.FormatValue(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
