package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCatalogue marks a sources file with a missing id or URL or
	// a repeated id.
	ErrInvalidCatalogue = errors.New("invalid sources catalogue")
)
