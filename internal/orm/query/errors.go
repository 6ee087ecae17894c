package query

import "errors"

var (
	// ErrUnknownField is returned when a query names a field the class
	// does not declare
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidDirection is returned for a sort direction other than asc
	// or desc
	ErrInvalidDirection = errors.New("invalid sort direction")

	// ErrUnknownScope is returned when a named scope is not registered
	ErrUnknownScope = errors.New("unknown scope")
)
