package engine

import "errors"

var (
	// ErrNotFound is returned when no record matches a single-record lookup
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a write violates a unique index
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNoIdentity is returned by Save when the record has no _id
	ErrNoIdentity = errors.New("record has no identity")

	// ErrUnknownCollection is returned when a reference points at a collection
	// that was never bound
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrUnknownPath is returned when a populate path names a non-reference field
	ErrUnknownPath = errors.New("unknown populate path")

	// ErrUnsupportedOperator is returned by the in-process evaluator for
	// operators it does not implement
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrNotConnected is returned when an engine is used before Connect
	ErrNotConnected = errors.New("engine not connected")

	// ErrUnsupported is returned for database-level operations an engine
	// does not implement
	ErrUnsupported = errors.New("operation not supported by engine")
)
