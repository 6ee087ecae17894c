package document

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/hooks"
	"github.com/conduit-lang/docmap/internal/orm/schema"
	"github.com/conduit-lang/docmap/internal/orm/validation"
)

// Mapper turns raw records into documents and carries the collaborators a
// document needs to save itself.
type Mapper struct {
	log       *zap.SugaredLogger
	hooks     *hooks.Executor
	validator *validation.Engine
}

var defaultMapper = NewMapper(nil)

// NewMapper creates a mapper. A nil logger disables logging.
func NewMapper(log *zap.SugaredLogger) *Mapper {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Mapper{
		log:       log,
		hooks:     hooks.NewExecutor(log),
		validator: validation.NewEngine(),
	}
}

// New returns a transient document of class
func (m *Mapper) New(class *schema.Class) *Document {
	return newDocument(m, class)
}

// hydration tracks the documents built during one mapping pass. loaded
// holds newly built documents, nested ones first.
type hydration struct {
	loaded []*Document
}

// Hydrate builds a document from a record returned by the engine and runs
// afterLoad on it and on every nested document it built, nested first.
func (m *Mapper) Hydrate(ctx context.Context, class *schema.Class, record engine.Record) (*Document, error) {
	d := m.New(class)
	h := &hydration{}
	if err := m.fill(h, d, record, nil); err != nil {
		return nil, err
	}
	h.loaded = append(h.loaded, d)
	if err := m.afterLoad(ctx, h); err != nil {
		return nil, err
	}
	return d, nil
}

// HydrateAll hydrates records in order
func (m *Mapper) HydrateAll(ctx context.Context, class *schema.Class, records []engine.Record) ([]*Document, error) {
	docs := make([]*Document, 0, len(records))
	for _, rec := range records {
		d, err := m.Hydrate(ctx, class, rec)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// HydrateInto refreshes d from record without running callbacks. Nested
// documents d already holds are reused when the record carries the same
// identity.
func (m *Mapper) HydrateInto(d *Document, record engine.Record) error {
	return m.fill(&hydration{}, d, record, nil)
}

// fill copies record into d. When only is non-empty just those fields are
// mapped, otherwise every declared field is.
func (m *Mapper) fill(h *hydration, d *Document, record engine.Record, only []string) error {
	d.record = record.Clone()
	d.mapped = true

	for _, f := range d.class.Metadata().Fields.All() {
		if len(only) > 0 && !containsName(only, f.Name) {
			continue
		}
		raw, present := record[f.Name]

		switch {
		case !f.IsRef():
			if present {
				d.values[f.Name] = engine.CloneValue(raw)
			} else {
				delete(d.values, f.Name)
			}

		case f.IsMulti():
			target, err := d.class.Target(f)
			if err != nil {
				return err
			}
			items, _ := engine.AsList(raw)
			prior := resolvedByID(d.multi[f.Name])
			refs := make([]Ref, len(items))
			for i, item := range items {
				r, err := m.mapRef(h, target, item, prior)
				if err != nil {
					return err
				}
				refs[i] = r
			}
			d.multi[f.Name] = refs

		default:
			target, err := d.class.Target(f)
			if err != nil {
				return err
			}
			r, err := m.mapRef(h, target, raw, resolvedByID([]Ref{d.refs[f.Name]}))
			if err != nil {
				return err
			}
			d.refs[f.Name] = r
		}
	}

	if len(only) == 0 {
		d.resetTracking()
	}
	return nil
}

// mapRef maps one raw reference value. prior holds the resolved documents
// the field held before, keyed by identity. A prior document with the same
// identity is refilled from the sub-record so deeper populated paths reach
// it, unless it has unsaved changes, in which case it is kept as is.
func (m *Mapper) mapRef(h *hydration, target *schema.Class, raw any, prior map[string]*Document) (Ref, error) {
	switch val := raw.(type) {
	case nil:
		return Absent(), nil
	case Ref:
		return val, nil
	case *Document:
		return Resolved(val), nil
	}

	if engine.IsIdentifier(raw) {
		return Unresolved(raw), nil
	}

	sub, ok := engine.AsRecord(raw)
	if !ok {
		return Unresolved(raw), nil
	}

	if existing, ok := prior[engine.IDKey(sub.ID())]; ok && sub.ID() != nil && existing.mapped {
		if existing.IsModified() {
			return Resolved(existing), nil
		}
		if err := m.fill(h, existing, sub, nil); err != nil {
			return Ref{}, err
		}
		return Resolved(existing), nil
	}

	child := m.New(target)
	if err := m.fill(h, child, sub, nil); err != nil {
		return Ref{}, err
	}
	h.loaded = append(h.loaded, child)
	return Resolved(child), nil
}

func (m *Mapper) afterLoad(ctx context.Context, h *hydration) error {
	for _, d := range h.loaded {
		if err := m.hooks.Run(ctx, d, schema.AfterLoad); err != nil {
			return err
		}
		d.resetTracking()
	}
	return nil
}

func resolvedByID(refs []Ref) map[string]*Document {
	out := make(map[string]*Document)
	for _, r := range refs {
		if r.IsResolved() && r.ID() != nil {
			out[engine.IDKey(r.ID())] = r.Document()
		}
	}
	return out
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
