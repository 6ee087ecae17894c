package document

import (
	"context"
	"fmt"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Populate expands the reference fields named by paths into documents.
// Paths may be nested ("leader.children"). Only the root fields of the
// paths are mapped again; documents already held for the same identity are
// refreshed in place, so calling Populate repeatedly is safe. A held
// document with unsaved changes is kept as it is.
func (d *Document) Populate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if d.record == nil {
		return fmt.Errorf("populate %s: %w", d.class.Name(), ErrNotPersisted)
	}
	coll, err := d.class.Collection()
	if err != nil {
		return err
	}

	m := d.mapper
	if err := m.hooks.Run(ctx, d, schema.BeforePopulate); err != nil {
		return err
	}

	m.log.Debugw("populating document", "class", d.class.Name(), "id", engine.IDKey(d.ID()), "paths", paths)
	populated, err := coll.Populate(ctx, d.record, paths)
	if err != nil {
		return err
	}

	h := &hydration{}
	if err := m.fill(h, d, populated, engine.RootFields(paths)); err != nil {
		return err
	}
	if err := m.afterLoad(ctx, h); err != nil {
		return err
	}

	return m.hooks.Run(ctx, d, schema.AfterPopulate)
}

// Reload fetches the stored record by identity and hydrates the document
// from it, running afterLoad. Populated references are reloaded as
// identifiers.
func (d *Document) Reload(ctx context.Context) error {
	if d.IsNew() {
		return fmt.Errorf("reload %s: %w", d.class.Name(), ErrNotPersisted)
	}
	coll, err := d.class.Collection()
	if err != nil {
		return err
	}

	rec, err := coll.FindByID(ctx, d.ID(), nil)
	if err != nil {
		return err
	}

	h := &hydration{}
	if err := d.mapper.fill(h, d, rec, nil); err != nil {
		return err
	}
	h.loaded = append(h.loaded, d)
	return d.mapper.afterLoad(ctx, h)
}
