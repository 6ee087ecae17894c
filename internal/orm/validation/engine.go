// Package validation checks document instances against the constraints
// declared on their fields and aggregates every violation into one error.
package validation

import (
	"context"

	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Engine validates instances against the constraints of their class
type Engine struct{}

// NewEngine creates a new validation engine
func NewEngine() *Engine {
	return &Engine{}
}

// Validate checks every declared field of the instance and returns an
// *Errors holding all violations, or nil.
func (e *Engine) Validate(ctx context.Context, inst schema.Instance) error {
	class := inst.Class()
	errs := NewErrors(class.Name())

	for _, field := range class.Metadata().Fields.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.validateField(field, inst.Get(field.Name), errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateField checks a single value against a field definition. This is
// useful for field-level feedback before a save.
func (e *Engine) ValidateField(class string, field *schema.FieldDefinition, value any) error {
	errs := NewErrors(class)
	e.validateField(field, value, errs)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateField runs the constraints of one field. Only required runs on
// nil values and absent references.
func (e *Engine) validateField(field *schema.FieldDefinition, value any, errs *Errors) {
	missing := value == nil
	if a, ok := value.(absent); ok && a.IsAbsent() {
		missing = true
	}
	for _, c := range field.Constraints {
		if _, required := c.(*RequiredValidator); missing && !required {
			continue
		}
		if err := c.Check(value); err != nil {
			errs.Add(field.Name, c.Name(), err.Error())
		}
	}
}
