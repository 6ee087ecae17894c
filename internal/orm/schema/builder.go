package schema

import (
	"github.com/conduit-lang/docmap/internal/engine"
)

// Declaration collects the own declarations of one document class. It is
// built fluently and handed to Registry.Define.
type Declaration struct {
	name       string
	parent     string
	collection string
	indexes    []engine.Index
	fields     *FieldSet
	callbacks  map[Phase][]string
	methods    map[string]Method
	options    map[string]any
}

// Declare starts a declaration for the class with the given name
func Declare(name string) *Declaration {
	return &Declaration{
		name:      name,
		fields:    NewFieldSet(),
		callbacks: make(map[Phase][]string),
		methods:   make(map[string]Method),
		options:   make(map[string]any),
	}
}

// Name returns the declared class name
func (d *Declaration) Name() string {
	return d.name
}

// ParentName returns the name of the extended class, if any
func (d *Declaration) ParentName() string {
	return d.parent
}

// Extends makes the class inherit the composed metadata of parent
func (d *Declaration) Extends(parent string) *Declaration {
	d.parent = parent
	return d
}

// Collection sets the stored collection name
func (d *Declaration) Collection(name string) *Declaration {
	d.collection = name
	return d
}

// Index declares an index
func (d *Declaration) Index(idx engine.Index) *Declaration {
	d.indexes = append(d.indexes, idx)
	return d
}

// Field declares a field from a full definition
func (d *Declaration) Field(f FieldDefinition) *Declaration {
	d.fields.Put(f.clone())
	return d
}

// Property declares a scalar field
func (d *Declaration) Property(name string, constraints ...Constraint) *Declaration {
	return d.Field(FieldDefinition{Name: name, Kind: KindScalar, Constraints: constraints})
}

// Ref declares a single-valued reference to the target class
func (d *Declaration) Ref(name, target string, constraints ...Constraint) *Declaration {
	return d.Field(FieldDefinition{
		Name:         name,
		Kind:         KindReference,
		Multiplicity: Single,
		Target:       target,
		Constraints:  constraints,
	})
}

// Refs declares a multi-valued reference to the target class
func (d *Declaration) Refs(name, target string, constraints ...Constraint) *Declaration {
	return d.Field(FieldDefinition{
		Name:         name,
		Kind:         KindReference,
		Multiplicity: Multi,
		Target:       target,
		Constraints:  constraints,
	})
}

// On registers the named method as a callback for phase. Registering the
// same name twice moves it to the end of this class's list.
func (d *Declaration) On(phase Phase, method string) *Declaration {
	d.callbacks[phase] = append(without(d.callbacks[phase], method), method)
	return d
}

// Method declares a named method. A method declared on a subclass overrides
// the inherited one, including when it runs as a callback.
func (d *Declaration) Method(name string, fn Method) *Declaration {
	d.methods[name] = fn
	return d
}

// Options merges raw schema options into the declaration
func (d *Declaration) Options(opts map[string]any) *Declaration {
	for k, v := range opts {
		d.options[k] = v
	}
	return d
}

// Compose merges the own declarations of a class over the composed metadata
// of its parent. parent may be nil. The result shares nothing with either
// input.
//
// Merge rules: the collection name falls back to the parent's, indexes are
// appended after the parent's, fields overlay the parent's (own definition
// wins and keeps the parent's position), callbacks per phase are the parent
// list followed by the own list with repeated names dropped, methods and
// options overlay the parent's.
func Compose(parent *Metadata, own *Declaration) (*Metadata, error) {
	if parent == nil {
		parent = newMetadata()
	}
	meta := newMetadata()

	meta.Collection = parent.Collection
	if own.collection != "" {
		meta.Collection = own.collection
	}

	meta.Indexes = make([]engine.Index, 0, len(parent.Indexes)+len(own.indexes))
	meta.Indexes = append(meta.Indexes, parent.Indexes...)
	meta.Indexes = append(meta.Indexes, own.indexes...)

	meta.Fields = parent.Fields.clone()
	for _, f := range own.fields.All() {
		meta.Fields.Put(f.clone())
	}

	for _, p := range Phases() {
		merged := appendUnique(nil, parent.Callbacks[p]...)
		merged = appendUnique(merged, own.callbacks[p]...)
		if len(merged) > 0 {
			meta.Callbacks[p] = merged
		}
	}

	for name, fn := range parent.Methods {
		meta.Methods[name] = fn
	}
	for name, fn := range own.methods {
		meta.Methods[name] = fn
	}

	for k, v := range parent.Options {
		meta.Options[k] = v
	}
	for k, v := range own.options {
		meta.Options[k] = v
	}

	for _, p := range Phases() {
		for _, name := range meta.Callbacks[p] {
			if _, ok := meta.Methods[name]; !ok {
				return nil, &ConfigError{
					Class:   own.name,
					Field:   name,
					Err:     ErrUnknownCallback,
					Message: "callback " + name + " (" + p.String() + ") has no method",
					Hint:    "declare it with Method or in an ancestor",
				}
			}
		}
	}

	return meta, nil
}

func appendUnique(list []string, names ...string) []string {
	for _, name := range names {
		if !contains(list, name) {
			list = append(list, name)
		}
	}
	return list
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func without(list []string, name string) []string {
	out := list[:0:0]
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
