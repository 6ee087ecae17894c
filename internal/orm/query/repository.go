// Package query provides the repository facade over a bound document class:
// counting, finding, paginating, bulk updates and deletes, and aggregation.
// Finders hydrate engine records into documents; bulk operations pass the
// engine results through unchanged.
package query

import (
	"context"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Repository runs queries against the collection bound to a class
type Repository struct {
	class  *schema.Class
	mapper *document.Mapper
}

// NewRepository creates a repository for class. A nil mapper uses one
// without logging.
func NewRepository(class *schema.Class, mapper *document.Mapper) *Repository {
	if mapper == nil {
		mapper = document.NewMapper(nil)
	}
	return &Repository{class: class, mapper: mapper}
}

// Class returns the document class the repository serves
func (r *Repository) Class() *schema.Class {
	return r.class
}

// New returns a transient document of the repository's class
func (r *Repository) New() *document.Document {
	return r.mapper.New(r.class)
}

// Count returns the number of stored documents matching filter
func (r *Repository) Count(ctx context.Context, filter engine.Filter, opts *engine.CountOptions) (int64, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return 0, err
	}
	return coll.Count(ctx, filter, opts)
}

// FindOne returns the first document matching filter, or engine.ErrNotFound
func (r *Repository) FindOne(ctx context.Context, filter engine.Filter, opts *engine.FindOptions) (*document.Document, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return nil, err
	}
	rec, err := coll.FindOne(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return r.mapper.Hydrate(ctx, r.class, rec)
}

// FindMany returns every document matching filter in engine order
func (r *Repository) FindMany(ctx context.Context, filter engine.Filter, opts *engine.FindOptions) ([]*document.Document, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return nil, err
	}
	records, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return r.mapper.HydrateAll(ctx, r.class, records)
}

// FindByID returns the document with the given identity, or
// engine.ErrNotFound
func (r *Repository) FindByID(ctx context.Context, id any, opts *engine.FindOptions) (*document.Document, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return nil, err
	}
	rec, err := coll.FindByID(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	return r.mapper.Hydrate(ctx, r.class, rec)
}

// Distinct returns the distinct values of field among matching documents
func (r *Repository) Distinct(ctx context.Context, field string, filter engine.Filter) ([]any, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return nil, err
	}
	return coll.Distinct(ctx, field, filter)
}

// UpdateOne applies update to the first matching document. Callbacks and
// validation do not run.
func (r *Repository) UpdateOne(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions) (*engine.UpdateResult, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return nil, err
	}
	return coll.UpdateOne(ctx, filter, update, opts)
}

// UpdateMany applies update to every matching document
func (r *Repository) UpdateMany(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions) (*engine.UpdateResult, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return nil, err
	}
	return coll.UpdateMany(ctx, filter, update, opts)
}

// DeleteOne removes the first matching document
func (r *Repository) DeleteOne(ctx context.Context, filter engine.Filter, opts *engine.WriteOptions) (*engine.DeleteResult, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return nil, err
	}
	return coll.DeleteOne(ctx, filter, opts)
}

// DeleteMany removes every matching document
func (r *Repository) DeleteMany(ctx context.Context, filter engine.Filter, opts *engine.WriteOptions) (*engine.DeleteResult, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return nil, err
	}
	return coll.DeleteMany(ctx, filter, opts)
}

// Aggregate runs pipeline and returns the raw result records
func (r *Repository) Aggregate(ctx context.Context, pipeline engine.Pipeline, opts *engine.AggregateOptions) ([]engine.Record, error) {
	coll, err := r.class.Collection()
	if err != nil {
		return nil, err
	}
	return coll.Aggregate(ctx, pipeline, opts)
}

// AggregateDocuments runs pipeline and hydrates every result record as a
// document of the repository's class
func (r *Repository) AggregateDocuments(ctx context.Context, pipeline engine.Pipeline, opts *engine.AggregateOptions) ([]*document.Document, error) {
	records, err := r.Aggregate(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	return r.mapper.HydrateAll(ctx, r.class, records)
}
