package schema

import (
	"errors"
	"strings"
)

var (
	// ErrMissingCollectionName is returned when a class without a collection
	// name is used for persistence
	ErrMissingCollectionName = errors.New("collection name is missing")

	// ErrNotBound is returned when a class is used before a connection bound
	// its collection
	ErrNotBound = errors.New("class is not bound to a collection")

	// ErrUnknownClass is returned when a name does not resolve in the registry
	ErrUnknownClass = errors.New("unknown document class")

	// ErrUnknownCallback is returned when a callback names no method
	ErrUnknownCallback = errors.New("unknown callback")

	// ErrDuplicateClass is returned when a class name is defined twice
	ErrDuplicateClass = errors.New("document class already defined")

	// ErrInvalidDeclaration is returned for structurally invalid declarations
	ErrInvalidDeclaration = errors.New("invalid declaration")
)

// ConfigError is a fatal configuration error. It is never retried.
type ConfigError struct {
	Class   string
	Field   string
	Err     error
	Message string
	Hint    string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	var b strings.Builder

	if e.Class != "" {
		b.WriteString(e.Class)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}

	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	}

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// Unwrap returns the sentinel error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is a configuration error
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
