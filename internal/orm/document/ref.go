package document

import (
	"fmt"

	"github.com/conduit-lang/docmap/internal/engine"
)

// RefState is the variant of a reference value
type RefState int

const (
	// RefAbsent is an unset reference
	RefAbsent RefState = iota
	// RefUnresolved holds the identifier of a document that was not populated
	RefUnresolved
	// RefResolved holds a hydrated document
	RefResolved
)

// String returns the string representation of the state
func (s RefState) String() string {
	switch s {
	case RefUnresolved:
		return "unresolved"
	case RefResolved:
		return "resolved"
	default:
		return "absent"
	}
}

// Ref is the typed value of a reference field: absent, an unresolved
// identifier or a resolved document. The zero value is absent.
type Ref struct {
	state RefState
	id    any
	doc   *Document
}

// Absent returns an unset reference
func Absent() Ref {
	return Ref{}
}

// Unresolved returns a reference to the document with the given identity.
// A nil id is absent.
func Unresolved(id any) Ref {
	if id == nil {
		return Ref{}
	}
	return Ref{state: RefUnresolved, id: id}
}

// Resolved returns a reference holding doc. A nil doc is absent.
func Resolved(doc *Document) Ref {
	if doc == nil {
		return Ref{}
	}
	return Ref{state: RefResolved, doc: doc}
}

// RefOf converts a value assigned to a reference field: documents resolve,
// Refs pass through, nil is absent and anything else is an identifier.
func RefOf(v any) Ref {
	switch val := v.(type) {
	case nil:
		return Ref{}
	case Ref:
		return val
	case *Ref:
		if val == nil {
			return Ref{}
		}
		return *val
	case *Document:
		return Resolved(val)
	}
	return Unresolved(v)
}

// State returns the variant
func (r Ref) State() RefState { return r.state }

// IsAbsent reports whether the reference is unset
func (r Ref) IsAbsent() bool { return r.state == RefAbsent }

// IsResolved reports whether the reference holds a document
func (r Ref) IsResolved() bool { return r.state == RefResolved }

// IsUnresolved reports whether the reference holds a bare identifier
func (r Ref) IsUnresolved() bool { return r.state == RefUnresolved }

// Document returns the referenced document, or nil unless resolved
func (r Ref) Document() *Document { return r.doc }

// ID returns the identity of the referenced document. It is nil when absent
// or when a resolved document has not been saved yet.
func (r Ref) ID() any {
	switch r.state {
	case RefUnresolved:
		return r.id
	case RefResolved:
		return r.doc.ID()
	}
	return nil
}

// Equal reports whether two references are in the same state and point at
// the same identity. Unsaved resolved documents compare by pointer.
func (r Ref) Equal(o Ref) bool {
	if r.state != o.state {
		return false
	}
	switch r.state {
	case RefAbsent:
		return true
	case RefResolved:
		if r.doc == o.doc {
			return true
		}
		return r.doc.ID() != nil && engine.SameID(r.doc.ID(), o.doc.ID())
	}
	return engine.SameID(r.id, o.id)
}

// value is the form written to a record: the identifier, the document
// itself, or nil.
func (r Ref) value() any {
	switch r.state {
	case RefUnresolved:
		return r.id
	case RefResolved:
		return r.doc
	}
	return nil
}

// String implements fmt.Stringer
func (r Ref) String() string {
	switch r.state {
	case RefUnresolved:
		return fmt.Sprintf("Ref(%s)", engine.IDKey(r.id))
	case RefResolved:
		return fmt.Sprintf("Ref(%s %s)", r.doc.Class().Name(), engine.IDKey(r.doc.ID()))
	}
	return "Ref(absent)"
}

// refsOf converts a list assigned to a multi-valued reference field
func refsOf(v any) []Ref {
	if refs, ok := v.([]Ref); ok {
		return append([]Ref{}, refs...)
	}
	if docs, ok := v.([]*Document); ok {
		out := make([]Ref, len(docs))
		for i, d := range docs {
			out[i] = Resolved(d)
		}
		return out
	}
	items, _ := engine.AsList(v)
	out := make([]Ref, len(items))
	for i, item := range items {
		out[i] = RefOf(item)
	}
	return out
}

func equalRefs(a, b []Ref) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
