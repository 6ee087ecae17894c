package document

import (
	"context"
	"fmt"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/hooks"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// SaveOptions controls Save
type SaveOptions struct {
	// SkipValidation saves without checking field constraints
	SkipValidation bool
	// Session is handed to callbacks and the engine unchanged
	Session any
}

// Save persists the document and returns it. A document without identity
// is created, otherwise its backing record is updated.
//
// Callbacks for beforeCreate or beforeUpdate run first, then validation.
// A validation error, or ErrNotPersisted for a reference to an unsaved
// document, is returned before the engine is called and leaves the
// document as it was. Engine errors are returned unchanged; the document's
// state is then unknown and it should be reloaded before retrying. After the
// engine call the typed values are hydrated again from the stored record and
// afterCreate or afterUpdate runs.
func (d *Document) Save(ctx context.Context, opts *SaveOptions) (*Document, error) {
	if opts == nil {
		opts = &SaveOptions{}
	}
	coll, err := d.class.Collection()
	if err != nil {
		return nil, err
	}

	creating := d.IsNew()
	before, after := schema.BeforeUpdate, schema.AfterUpdate
	if creating {
		before, after = schema.BeforeCreate, schema.AfterCreate
	}

	ctx = hooks.WithSession(ctx, opts.Session)
	m := d.mapper

	if err := m.hooks.Run(ctx, d, before); err != nil {
		return nil, err
	}
	if !opts.SkipValidation {
		if err := m.validator.Validate(ctx, d); err != nil {
			return nil, err
		}
	}

	m.log.Debugw("saving document",
		"class", d.class.Name(),
		"create", creating,
		"modified", d.Modified(),
	)

	wopts := &engine.WriteOptions{Session: opts.Session}
	var stored engine.Record
	if creating {
		rec, err := d.createRecord()
		if err != nil {
			return nil, err
		}
		stored, err = coll.Create(ctx, rec, wopts)
		if err != nil {
			return nil, err
		}
	} else {
		if err := d.reconcile(); err != nil {
			return nil, err
		}
		stored, err = coll.Save(ctx, d.record, wopts)
		if err != nil {
			return nil, err
		}
	}

	if err := m.fill(&hydration{}, d, stored, nil); err != nil {
		return nil, err
	}

	if err := m.hooks.Run(ctx, d, after); err != nil {
		return nil, err
	}
	return d, nil
}

// createRecord builds a fresh record from the typed values. Single
// references are stored as identifiers; multi-valued ones as the records
// of the referenced documents.
func (d *Document) createRecord() (engine.Record, error) {
	if err := d.checkRefs(); err != nil {
		return nil, err
	}
	rec := make(engine.Record, d.class.Metadata().Fields.Len())
	for _, f := range d.class.Metadata().Fields.All() {
		switch {
		case f.IsMulti():
			if refs, ok := d.multi[f.Name]; ok {
				rec[f.Name] = refRecords(refs)
			}
		case f.IsRef():
			if r, ok := d.refs[f.Name]; ok {
				rec[f.Name] = r.ID()
			}
		default:
			if v, ok := d.values[f.Name]; ok {
				rec[f.Name] = engine.CloneValue(v)
			}
		}
	}
	return rec, nil
}

// reconcile writes the typed values into the backing record. Scalars are
// copied, single references are stored as the identifier or document they
// hold, and multi-valued references are replaced by the backing records of
// the referenced documents. The engine reduces both to identifiers.
func (d *Document) reconcile() error {
	if err := d.checkRefs(); err != nil {
		return err
	}
	for _, f := range d.class.Metadata().Fields.All() {
		switch {
		case f.IsMulti():
			if refs, ok := d.multi[f.Name]; ok {
				d.record[f.Name] = refRecords(refs)
			}
		case f.IsRef():
			if r, ok := d.refs[f.Name]; ok {
				d.record[f.Name] = r.value()
			}
		default:
			if v, ok := d.values[f.Name]; ok {
				d.record[f.Name] = engine.CloneValue(v)
			}
		}
	}
	return nil
}

// checkRefs fails when a reference field holds a document that has not
// been saved, since it has no identity to store
func (d *Document) checkRefs() error {
	for _, f := range d.class.Metadata().Fields.All() {
		if !f.IsRef() {
			continue
		}
		refs := d.multi[f.Name]
		if !f.IsMulti() {
			refs = []Ref{d.refs[f.Name]}
		}
		for _, r := range refs {
			if r.IsResolved() && r.ID() == nil {
				return fmt.Errorf("%s.%s: %w", d.class.Name(), f.Name, ErrNotPersisted)
			}
		}
	}
	return nil
}

// refRecords maps references to records in order. Resolved documents
// contribute their backing record, unresolved ones their identifier;
// absent references are dropped.
func refRecords(refs []Ref) []any {
	out := make([]any, 0, len(refs))
	for _, r := range refs {
		switch r.State() {
		case RefResolved:
			out = append(out, r.Document().Record())
		case RefUnresolved:
			out = append(out, r.ID())
		}
	}
	return out
}
