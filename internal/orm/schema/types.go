// Package schema provides type definitions for docmap document classes.
// It defines fields, references, indexes and lifecycle callbacks, and the
// composed metadata a class inherits from its ancestors.
package schema

import (
	"context"
	"fmt"

	"github.com/conduit-lang/docmap/internal/engine"
)

// Phase is a lifecycle point at which callbacks run
type Phase int

const (
	BeforeCreate Phase = iota
	AfterCreate
	BeforeUpdate
	AfterUpdate
	AfterLoad
	BeforePopulate
	AfterPopulate
)

// Phases returns every phase in declaration order
func Phases() []Phase {
	return []Phase{BeforeCreate, AfterCreate, BeforeUpdate, AfterUpdate, AfterLoad, BeforePopulate, AfterPopulate}
}

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case BeforeCreate:
		return "beforeCreate"
	case AfterCreate:
		return "afterCreate"
	case BeforeUpdate:
		return "beforeUpdate"
	case AfterUpdate:
		return "afterUpdate"
	case AfterLoad:
		return "afterLoad"
	case BeforePopulate:
		return "beforePopulate"
	case AfterPopulate:
		return "afterPopulate"
	default:
		return "unknown"
	}
}

// ParsePhase parses the string form of a phase
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases() {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown lifecycle phase %q", s)
}

// FieldKind distinguishes scalar fields from references
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindReference
)

// String returns the string representation of the field kind
func (k FieldKind) String() string {
	if k == KindReference {
		return "reference"
	}
	return "scalar"
}

// Multiplicity is the arity of a reference field
type Multiplicity int

const (
	Single Multiplicity = iota
	Multi
)

// String returns the string representation of the multiplicity
func (m Multiplicity) String() string {
	if m == Multi {
		return "multi"
	}
	return "single"
}

// Constraint is a validation rule attached to a field
type Constraint interface {
	// Name identifies the rule in error messages
	Name() string
	// Check returns nil when value satisfies the rule
	Check(value any) error
}

// FieldDefinition describes one declared field
type FieldDefinition struct {
	Name         string
	Kind         FieldKind
	Multiplicity Multiplicity
	// Target names the referenced class. It is resolved through the
	// registry when first needed, so it may name the class itself or a
	// class defined later.
	Target      string
	Constraints []Constraint
	// Options are raw storage options forwarded to the engine unchanged.
	Options map[string]any
}

// IsRef reports whether the field holds references
func (f *FieldDefinition) IsRef() bool {
	return f.Kind == KindReference
}

// IsMulti reports whether the field holds a list of references
func (f *FieldDefinition) IsMulti() bool {
	return f.Kind == KindReference && f.Multiplicity == Multi
}

// TypeString returns a short description used by the CLI
func (f *FieldDefinition) TypeString() string {
	if !f.IsRef() {
		return "scalar"
	}
	if f.IsMulti() {
		return "[]ref(" + f.Target + ")"
	}
	return "ref(" + f.Target + ")"
}

func (f *FieldDefinition) clone() *FieldDefinition {
	c := *f
	c.Constraints = append([]Constraint(nil), f.Constraints...)
	if f.Options != nil {
		c.Options = make(map[string]any, len(f.Options))
		for k, v := range f.Options {
			c.Options[k] = v
		}
	}
	return &c
}

// FieldSet is an ordered set of field definitions. Iteration order is the
// order fields were first declared, parent fields first.
type FieldSet struct {
	order  []string
	byName map[string]*FieldDefinition
}

// NewFieldSet creates an empty field set
func NewFieldSet() *FieldSet {
	return &FieldSet{byName: make(map[string]*FieldDefinition)}
}

// Put adds a field or replaces the definition with the same name in place
func (s *FieldSet) Put(f *FieldDefinition) {
	if _, ok := s.byName[f.Name]; !ok {
		s.order = append(s.order, f.Name)
	}
	s.byName[f.Name] = f
}

// Get returns the field with the given name
func (s *FieldSet) Get(name string) (*FieldDefinition, bool) {
	if s == nil {
		return nil, false
	}
	f, ok := s.byName[name]
	return f, ok
}

// Len returns the number of fields
func (s *FieldSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Names returns the field names in order
func (s *FieldSet) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// All returns the fields in order
func (s *FieldSet) All() []*FieldDefinition {
	if s == nil {
		return nil
	}
	out := make([]*FieldDefinition, len(s.order))
	for i, name := range s.order {
		out[i] = s.byName[name]
	}
	return out
}

// Refs returns the reference fields in order
func (s *FieldSet) Refs() []*FieldDefinition {
	var out []*FieldDefinition
	for _, f := range s.All() {
		if f.IsRef() {
			out = append(out, f)
		}
	}
	return out
}

func (s *FieldSet) clone() *FieldSet {
	c := NewFieldSet()
	for _, f := range s.All() {
		c.Put(f.clone())
	}
	return c
}

// Method is a named instance method. Lifecycle callbacks are methods
// registered against a phase.
type Method func(ctx context.Context, inst Instance) error

// Instance is the view of a document that callbacks and validators work on
type Instance interface {
	Class() *Class
	ID() any
	IsNew() bool
	Get(field string) any
	Set(field string, value any)
}

// Metadata is the composed, immutable description of a document class
type Metadata struct {
	Collection string
	Indexes    []engine.Index
	Fields     *FieldSet
	Callbacks  map[Phase][]string
	Methods    map[string]Method
	Options    map[string]any
}

func newMetadata() *Metadata {
	return &Metadata{
		Fields:    NewFieldSet(),
		Callbacks: make(map[Phase][]string),
		Methods:   make(map[string]Method),
		Options:   make(map[string]any),
	}
}

// CallbacksFor returns a copy of the callback names registered for phase
func (m *Metadata) CallbacksFor(p Phase) []string {
	return append([]string(nil), m.Callbacks[p]...)
}

// Method returns the most derived method declared with the given name
func (m *Metadata) Method(name string) (Method, bool) {
	fn, ok := m.Methods[name]
	return fn, ok
}
