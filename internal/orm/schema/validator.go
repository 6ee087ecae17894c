package schema

import (
	"go.uber.org/multierr"
)

// DeclarationValidator checks a declaration for structural problems before
// it is composed. Reference targets are not checked here so that classes
// may refer to classes defined later.
type DeclarationValidator struct{}

// NewDeclarationValidator creates a new declaration validator
func NewDeclarationValidator() *DeclarationValidator {
	return &DeclarationValidator{}
}

// Validate returns every structural problem of d combined into one error
func (v *DeclarationValidator) Validate(d *Declaration) error {
	var errs error

	if d.name == "" {
		errs = multierr.Append(errs, &ConfigError{Err: ErrInvalidDeclaration, Message: "class name is empty"})
	}
	if d.parent != "" && d.parent == d.name {
		errs = multierr.Append(errs, &ConfigError{Class: d.name, Err: ErrInvalidDeclaration, Message: "class cannot extend itself"})
	}

	for _, f := range d.fields.All() {
		errs = multierr.Append(errs, v.validateField(d, f))
	}

	for _, idx := range d.indexes {
		if len(idx.Keys) == 0 {
			errs = multierr.Append(errs, &ConfigError{
				Class:   d.name,
				Err:     ErrInvalidDeclaration,
				Message: "index " + idx.Name + " has no keys",
			})
		}
	}

	return errs
}

func (v *DeclarationValidator) validateField(d *Declaration, f *FieldDefinition) error {
	if f.Name == "" {
		return &ConfigError{Class: d.name, Err: ErrInvalidDeclaration, Message: "field name is empty"}
	}
	if f.Name == "_id" {
		return &ConfigError{
			Class:   d.name,
			Field:   f.Name,
			Err:     ErrInvalidDeclaration,
			Message: "_id is reserved for the document identity",
		}
	}
	if f.IsRef() && f.Target == "" {
		return &ConfigError{
			Class:   d.name,
			Field:   f.Name,
			Err:     ErrInvalidDeclaration,
			Message: "reference has no target class",
			Hint:    "use Ref(name, target) or Refs(name, target)",
		}
	}
	return nil
}
