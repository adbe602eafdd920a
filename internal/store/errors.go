package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert hits a uniqueness
	// constraint (key hash, admin email, provider name).
	ErrDuplicate = errors.New("duplicate record")
)
