package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ErrValidationFailed matches every *Errors with errors.Is
var ErrValidationFailed = errors.New("validation failed")

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

// Error implements the error interface
func (fe *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
}

// NewFieldError creates a new FieldError
func NewFieldError(field, rule, message string) *FieldError {
	return &FieldError{Field: field, Rule: rule, Message: message}
}

// Errors aggregates every violation found on one document
type Errors struct {
	Class string
	errs  error
}

// NewErrors creates an empty error set for class
func NewErrors(class string) *Errors {
	return &Errors{Class: class}
}

// Add records a violation of rule on field
func (ve *Errors) Add(field, rule, message string) {
	ve.errs = multierr.Append(ve.errs, NewFieldError(field, rule, message))
}

// Fields returns the violations in the order they were found
func (ve *Errors) Fields() []*FieldError {
	var out []*FieldError
	for _, err := range multierr.Errors(ve.errs) {
		var fe *FieldError
		if errors.As(err, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

// ByField groups the violation messages by field
func (ve *Errors) ByField() map[string][]string {
	out := make(map[string][]string)
	for _, fe := range ve.Fields() {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// HasErrors returns true if there are any validation errors
func (ve *Errors) HasErrors() bool {
	return ve.errs != nil
}

// Count returns the total number of violations
func (ve *Errors) Count() int {
	return len(multierr.Errors(ve.errs))
}

// Error implements the error interface
func (ve *Errors) Error() string {
	fields := ve.Fields()
	if len(fields) == 0 {
		return "validation failed"
	}

	prefix := "validation failed"
	if ve.Class != "" {
		prefix = ve.Class + " validation failed"
	}
	if len(fields) == 1 {
		return fmt.Sprintf("%s: %s", prefix, fields[0].Error())
	}

	messages := make([]string, len(fields))
	for i, fe := range fields {
		messages[i] = "  - " + fe.Error()
	}
	return fmt.Sprintf("%s:\n%s", prefix, strings.Join(messages, "\n"))
}

// Is reports whether target is ErrValidationFailed
func (ve *Errors) Is(target error) bool {
	return target == ErrValidationFailed
}

// Unwrap returns the individual field errors
func (ve *Errors) Unwrap() []error {
	return multierr.Errors(ve.errs)
}

// MarshalJSON implements json.Marshaler for custom JSON serialization
func (ve *Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Class  string              `json:"class,omitempty"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "validation_failed",
		Class:  ve.Class,
		Fields: ve.ByField(),
	})
}
