package schema

import (
	"sync/atomic"

	"github.com/conduit-lang/docmap/internal/engine"
)

// Class is a defined document class. Its metadata is composed once at
// definition; the only mutable state is the collection handle bound at
// connect time.
type Class struct {
	name     string
	parent   *Class
	decl     *Declaration
	meta     *Metadata
	registry *Registry
	binding  atomic.Pointer[binding]
}

type binding struct {
	coll engine.Collection
}

// Name returns the class name
func (c *Class) Name() string {
	return c.name
}

// Parent returns the extended class or nil
func (c *Class) Parent() *Class {
	return c.parent
}

// Metadata returns the composed metadata. Callers must not modify it.
func (c *Class) Metadata() *Metadata {
	return c.meta
}

// Field returns the composed field definition with the given name
func (c *Class) Field(name string) (*FieldDefinition, bool) {
	return c.meta.Fields.Get(name)
}

// Registry returns the registry the class was defined in
func (c *Class) Registry() *Registry {
	return c.registry
}

// IsA reports whether c is other or extends it
func (c *Class) IsA(other *Class) bool {
	for k := c; k != nil; k = k.parent {
		if k == other {
			return true
		}
	}
	return false
}

// ModelName returns the collection name the class is stored in
func (c *Class) ModelName() (string, error) {
	if c.meta.Collection == "" {
		return "", &ConfigError{
			Class: c.name,
			Err:   ErrMissingCollectionName,
			Hint:  "declare a collection on the class or one of its ancestors",
		}
	}
	return c.meta.Collection, nil
}

// Bind sets the collection handle used for persistence
func (c *Class) Bind(coll engine.Collection) {
	c.binding.Store(&binding{coll: coll})
}

// Unbind clears the collection handle
func (c *Class) Unbind() {
	c.binding.Store(nil)
}

// IsBound reports whether a collection handle is bound
func (c *Class) IsBound() bool {
	return c.binding.Load() != nil
}

// Collection returns the bound collection handle. Using a class without a
// collection name or before binding is a configuration error.
func (c *Class) Collection() (engine.Collection, error) {
	if _, err := c.ModelName(); err != nil {
		return nil, err
	}
	b := c.binding.Load()
	if b == nil || b.coll == nil {
		return nil, &ConfigError{
			Class: c.name,
			Err:   ErrNotBound,
			Hint:  "connect before using the class",
		}
	}
	return b.coll, nil
}

// Target resolves the class referenced by a field
func (c *Class) Target(f *FieldDefinition) (*Class, error) {
	if !f.IsRef() {
		return nil, &ConfigError{Class: c.name, Field: f.Name, Err: ErrInvalidDeclaration, Message: "field is not a reference"}
	}
	if f.Target == c.name {
		return c, nil
	}
	target, ok := c.registry.Get(f.Target)
	if !ok {
		return nil, &ConfigError{
			Class:   c.name,
			Field:   f.Name,
			Err:     ErrUnknownClass,
			Message: "reference target " + f.Target + " is not defined",
		}
	}
	return target, nil
}

// CollectionSpec materializes the storage schema of the class. Reference
// targets are resolved here, not at definition.
func (c *Class) CollectionSpec() (engine.CollectionSpec, error) {
	name, err := c.ModelName()
	if err != nil {
		return engine.CollectionSpec{}, err
	}

	spec := engine.CollectionSpec{
		Name:    name,
		Fields:  make([]engine.FieldSpec, 0, c.meta.Fields.Len()),
		Indexes: append([]engine.Index(nil), c.meta.Indexes...),
	}
	for _, f := range c.meta.Fields.All() {
		fs := engine.FieldSpec{Name: f.Name, Options: f.Options}
		if f.IsRef() {
			target, err := c.Target(f)
			if err != nil {
				return engine.CollectionSpec{}, err
			}
			coll, err := target.ModelName()
			if err != nil {
				return engine.CollectionSpec{}, err
			}
			fs.RefCollection = coll
			fs.Multi = f.IsMulti()
		}
		spec.Fields = append(spec.Fields, fs)
	}
	return spec, nil
}
