// Package schema provides a registry for managing document classes
package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the arena of defined document classes. Classes refer to each
// other by name and are resolved through the registry when needed.
type Registry struct {
	classes   map[string]*Class
	order     []string
	validator *DeclarationValidator
	mu        sync.RWMutex
}

// NewRegistry creates a new class registry
func NewRegistry() *Registry {
	return &Registry{
		classes:   make(map[string]*Class),
		validator: NewDeclarationValidator(),
	}
}

// Define validates and composes a declaration and registers the resulting
// class. Defining the same declaration again returns the existing class.
func (r *Registry) Define(d *Declaration) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.classes[d.name]; ok {
		if existing.decl == d {
			return existing, nil
		}
		return nil, &ConfigError{Class: d.name, Err: ErrDuplicateClass}
	}

	if err := r.validator.Validate(d); err != nil {
		return nil, fmt.Errorf("declaration of %s failed validation: %w", d.name, err)
	}

	var parent *Class
	var parentMeta *Metadata
	if d.parent != "" {
		p, ok := r.classes[d.parent]
		if !ok {
			return nil, &ConfigError{
				Class:   d.name,
				Err:     ErrUnknownClass,
				Message: "parent class " + d.parent + " is not defined",
				Hint:    "define ancestors before their subclasses",
			}
		}
		parent = p
		parentMeta = p.meta
	}

	meta, err := Compose(parentMeta, d)
	if err != nil {
		return nil, err
	}

	class := &Class{
		name:     d.name,
		parent:   parent,
		decl:     d,
		meta:     meta,
		registry: r,
	}
	r.classes[d.name] = class
	r.order = append(r.order, d.name)
	return class, nil
}

// MustDefine is like Define but panics on error
func (r *Registry) MustDefine(d *Declaration) *Class {
	c, err := r.Define(d)
	if err != nil {
		panic(err)
	}
	return c
}

// Get retrieves a class by name
func (r *Registry) Get(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// Lookup retrieves a class by name, returning a configuration error when it
// is not defined
func (r *Registry) Lookup(name string) (*Class, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, &ConfigError{Class: name, Err: ErrUnknownClass}
	}
	return c, nil
}

// All returns the classes in definition order
func (r *Registry) All() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Class, len(r.order))
	for i, name := range r.order {
		out[i] = r.classes[name]
	}
	return out
}

// List returns all class names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of defined classes
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}

// Exists checks if a class is defined
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[name]
	return ok
}

// Clear removes all classes
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = make(map[string]*Class)
	r.order = nil
}

// Graph returns the reference graph of all defined classes
func (r *Registry) Graph() *RefGraph {
	return NewRefGraph(r.All())
}

// ValidateAll checks that every class can be materialized: it has a
// collection name and every reference target resolves.
func (r *Registry) ValidateAll() error {
	for _, c := range r.All() {
		if _, err := c.CollectionSpec(); err != nil {
			return err
		}
	}
	return nil
}
