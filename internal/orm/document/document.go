// Package document maps raw engine records to typed document instances and
// back. It provides hydration of records, including populated references,
// and active-record saving with lifecycle callbacks and validation.
package document

import (
	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/schema"
	"github.com/conduit-lang/docmap/internal/orm/tracking"
)

// Document is a live instance of a document class.
//
// Typed values are a projection of the backing record. They are filled on
// hydration and written back only by Save; setting a value never touches
// the backing record. A Document is not safe for concurrent use: two Saves
// racing on the same instance are not synchronized and the last
// reconciliation wins.
type Document struct {
	class  *schema.Class
	mapper *Mapper
	record engine.Record

	values map[string]any
	refs   map[string]Ref
	multi  map[string][]Ref

	// mapped is set once the document was produced or refreshed by the
	// mapper. Nested documents carrying it are reused, not rebuilt.
	mapped  bool
	tracker *tracking.ChangeTracker
}

var (
	_ schema.Instance   = (*Document)(nil)
	_ engine.Identifier = (*Document)(nil)
)

func newDocument(m *Mapper, class *schema.Class) *Document {
	d := &Document{
		class:  class,
		mapper: m,
		values: make(map[string]any),
		refs:   make(map[string]Ref),
		multi:  make(map[string][]Ref),
	}
	d.tracker = tracking.NewChangeTracker(nil, equalValues)
	return d
}

// New returns a transient document of class using a mapper without logging
func New(class *schema.Class) *Document {
	return defaultMapper.New(class)
}

// Class returns the document class
func (d *Document) Class() *schema.Class {
	return d.class
}

// ID returns the identity from the backing record, or nil while transient
func (d *Document) ID() any {
	return d.record.ID()
}

// Identity implements engine.Identifier so engines can reduce a document
// stored in a reference field to its identity
func (d *Document) Identity() any {
	return d.ID()
}

// IsNew reports whether the document has not been persisted
func (d *Document) IsNew() bool {
	return d.ID() == nil
}

// Record returns the backing record. It is nil while transient and must
// not be modified by callers.
func (d *Document) Record() engine.Record {
	return d.record
}

// Get returns the typed value of a field. Single references return a Ref,
// multi-valued references a []Ref.
func (d *Document) Get(field string) any {
	if f, ok := d.class.Field(field); ok && f.IsRef() {
		if f.IsMulti() {
			return d.Refs(field)
		}
		return d.Ref(field)
	}
	if field == engine.IDField {
		return d.ID()
	}
	return d.values[field]
}

// Set assigns the typed value of a field. Reference fields accept a Ref,
// a *Document, an identifier or nil; multi-valued ones a list of those.
// Values of undeclared fields are kept on the instance but never saved.
func (d *Document) Set(field string, value any) {
	if f, ok := d.class.Field(field); ok && f.IsRef() {
		if f.IsMulti() {
			d.SetRefs(field, value)
		} else {
			d.SetRef(field, value)
		}
		return
	}
	if field == engine.IDField {
		return
	}
	d.values[field] = value
	d.tracker.Set(field, value)
}

// Ref returns a single-valued reference
func (d *Document) Ref(field string) Ref {
	return d.refs[field]
}

// SetRef assigns a single-valued reference
func (d *Document) SetRef(field string, value any) {
	r := RefOf(value)
	d.refs[field] = r
	d.tracker.Set(field, r)
}

// Refs returns a copy of a multi-valued reference list in order
func (d *Document) Refs(field string) []Ref {
	return append([]Ref{}, d.multi[field]...)
}

// SetRefs replaces a multi-valued reference list
func (d *Document) SetRefs(field string, value any) {
	refs := refsOf(value)
	d.multi[field] = refs
	d.tracker.Set(field, append([]Ref{}, refs...))
}

// AppendRef adds references to the end of a multi-valued reference list
func (d *Document) AppendRef(field string, values ...any) {
	refs := append(d.Refs(field), refsOf(values)...)
	d.SetRefs(field, refs)
}

// Modified returns the names of fields set to a different value since the
// document was loaded or saved, sorted
func (d *Document) Modified() []string {
	d.syncValues()
	return d.tracker.ChangedFields()
}

// IsModified reports whether a field, or with no argument any field, was
// modified since the document was loaded or saved
func (d *Document) IsModified(fields ...string) bool {
	d.syncValues()
	if len(fields) == 0 {
		return d.tracker.HasChanges()
	}
	for _, f := range fields {
		if d.tracker.Changed(f) {
			return true
		}
	}
	return false
}

// syncValues hands the scalar values to the tracker so lists and maps
// edited in place are compared against the baseline
func (d *Document) syncValues() {
	for _, f := range d.class.Metadata().Fields.All() {
		if f.IsRef() {
			continue
		}
		if v, ok := d.values[f.Name]; ok {
			d.tracker.Set(f.Name, v)
		}
	}
}

// snapshot returns the typed values of all declared fields
func (d *Document) snapshot() map[string]any {
	out := make(map[string]any, d.class.Metadata().Fields.Len())
	for _, f := range d.class.Metadata().Fields.All() {
		switch {
		case f.IsMulti():
			if refs, ok := d.multi[f.Name]; ok {
				out[f.Name] = append([]Ref{}, refs...)
			}
		case f.IsRef():
			if r, ok := d.refs[f.Name]; ok {
				out[f.Name] = r
			}
		default:
			if v, ok := d.values[f.Name]; ok {
				out[f.Name] = engine.CloneValue(v)
			}
		}
	}
	return out
}

func (d *Document) resetTracking() {
	d.tracker.Reset(d.snapshot())
}

func equalValues(a, b any) bool {
	switch av := a.(type) {
	case Ref:
		bv, ok := b.(Ref)
		return ok && av.Equal(bv)
	case []Ref:
		bv, ok := b.([]Ref)
		return ok && equalRefs(av, bv)
	}
	return engine.Equal(a, b)
}
