package storage

import "errors"

// Sentinel errors shared by all store implementations. Callers match with
// errors.Is so the SQLite and ClickHouse backends stay interchangeable.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
)
