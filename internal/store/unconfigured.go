package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Unconfigured is the client used when no backend is configured. Every
// operation fails with a *StoreError wrapping ErrUnconfigured.
type Unconfigured struct {
	Reason string
}

var _ Client = Unconfigured{}

func (u Unconfigured) err(op string, c Collection) error {
	cause := ErrUnconfigured
	if u.Reason != "" {
		cause = fmt.Errorf("%w: %s", ErrUnconfigured, u.Reason)
	}
	return &StoreError{Op: op, Collection: c, Err: cause}
}

func (u Unconfigured) List(_ context.Context, c Collection, _ Query) ([]json.RawMessage, error) {
	return nil, u.err("list", c)
}

func (u Unconfigured) Insert(_ context.Context, c Collection, _ Values) (json.RawMessage, error) {
	return nil, u.err("insert", c)
}

func (u Unconfigured) Update(_ context.Context, c Collection, _ string, _ Values, _ ...Filter) (json.RawMessage, error) {
	return nil, u.err("update", c)
}
