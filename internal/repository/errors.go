package repository

import "errors"

var (
	// ErrDecode is wrapped when a row does not decode into its entity type.
	ErrDecode = errors.New("decode row")
)
