package store

import "errors"

var (
	// ErrNotFound is returned by reads and strict mutations for ids the
	// store does not hold. Operator-facing tooling treats it as a no-op.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned by Put when the id is already indexed.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrInvalid wraps construction and validation failures.
	ErrInvalid = errors.New("invalid record")
)
