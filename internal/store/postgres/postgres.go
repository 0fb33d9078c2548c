// Package postgres implements the record store directly on PostgreSQL.
// Rows are rendered to JSON by the database so they have the same shape as
// rows served by the hosted REST endpoint.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"waselni/internal/store"
)

// Client is a PostgreSQL implementation of store.Client.
type Client struct {
	q Querier
}

var _ store.Client = (*Client)(nil)

// New creates a client on a connection pool.
func New(db *sql.DB) *Client {
	return &Client{q: db}
}

// List returns the rows of c matching q.
func (c *Client) List(ctx context.Context, coll store.Collection, q store.Query) ([]json.RawMessage, error) {
	if err := store.ValidateQuery(coll, q); err != nil {
		return nil, err
	}
	schema, _ := store.Lookup(coll)

	query, args := buildSelect(coll, schema, q)
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list", coll, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, mapError("list", coll, err)
		}
		out = append(out, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list", coll, err)
	}
	return out, nil
}

// Insert persists a new row.
func (c *Client) Insert(ctx context.Context, coll store.Collection, v store.Values) (json.RawMessage, error) {
	if err := store.ValidateInsert(coll, v); err != nil {
		return nil, err
	}

	query, args := buildInsert(coll, v)
	var raw []byte
	if err := c.q.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return nil, mapError("insert", coll, err)
	}
	return json.RawMessage(raw), nil
}

// Update applies v to the row with id when it satisfies conds.
func (c *Client) Update(ctx context.Context, coll store.Collection, id string, v store.Values, conds ...store.Filter) (json.RawMessage, error) {
	if err := store.ValidateUpdate(coll, id, v, conds); err != nil {
		return nil, err
	}
	schema, _ := store.Lookup(coll)

	query, args := buildUpdate(coll, schema, id, v, conds)
	var raw []byte
	err := c.q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{Collection: coll, ID: id}
		}
		return nil, mapError("update", coll, err)
	}
	return json.RawMessage(raw), nil
}

// mapError reports constraint and input-syntax violations as validation
// failures and everything else as a store error.
func mapError(op string, coll store.Collection, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "not_null_violation", "foreign_key_violation", "check_violation", "invalid_text_representation":
			return &store.ValidationError{Field: pqErr.Column, Reason: pqErr.Message}
		}
	}
	return &store.StoreError{Op: op, Collection: coll, Err: err}
}
