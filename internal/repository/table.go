// Package repository gives typed access to the record store collections.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"waselni/internal/store"
)

// Table is typed access to one collection.
type Table[T any] struct {
	client store.Client
	coll   store.Collection
}

// NewTable creates a typed table over client.
func NewTable[T any](client store.Client, coll store.Collection) *Table[T] {
	return &Table[T]{client: client, coll: coll}
}

// Collection returns the collection the table reads and writes.
func (t *Table[T]) Collection() store.Collection {
	return t.coll
}

// List returns the rows matching q.
func (t *Table[T]) List(ctx context.Context, q store.Query) ([]T, error) {
	rows, err := t.client.List(ctx, t.coll, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		v, err := decode[T](t.coll, "list", raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Get returns the row with id or a *store.NotFoundError.
func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	rows, err := t.List(ctx, store.NewQuery().Where(store.Eq("id", id)).WithLimit(1))
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, &store.NotFoundError{Collection: t.coll, ID: id}
	}
	return rows[0], nil
}

// Insert creates a row and returns it as stored.
func (t *Table[T]) Insert(ctx context.Context, v store.Values) (T, error) {
	raw, err := t.client.Insert(ctx, t.coll, v)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](t.coll, "insert", raw)
}

// Update writes v to the row with id, guarded by conds.
func (t *Table[T]) Update(ctx context.Context, id string, v store.Values, conds ...store.Filter) (T, error) {
	raw, err := t.client.Update(ctx, t.coll, id, v, conds...)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](t.coll, "update", raw)
}

func decode[T any](coll store.Collection, op string, raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &store.StoreError{Op: op, Collection: coll, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	return v, nil
}
