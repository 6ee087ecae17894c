// Package engine defines the persistence-engine contract consumed by the
// document mapper. An Engine owns a connection to some document store and
// hands out one Collection per bound document class. Everything above this
// package works on plain Records; everything below it is driver-specific.
package engine

import (
	"context"
	"strings"
)

// IDField is the record key holding a document's identity.
const IDField = "_id"

// Engine is a connected document store.
type Engine interface {
	// Connect opens the underlying connection. Calling it on a connected
	// engine is a no-op.
	Connect(ctx context.Context) error

	// Disconnect releases the underlying connection. Calling it on a
	// disconnected engine is a no-op.
	Disconnect(ctx context.Context) error

	// Collection binds a collection handle for the given spec. The spec is
	// remembered so that Populate can follow references into it.
	Collection(spec CollectionSpec) (Collection, error)
}

// Admin is implemented by engines that expose database-level operations.
type Admin interface {
	Stats(ctx context.Context) (Record, error)
	DropDatabase(ctx context.Context) error
}

// Collection is a bound handle over one stored collection.
type Collection interface {
	Name() string
	Spec() CollectionSpec

	// Create inserts a new record and returns the stored form, including the
	// identity assigned by the engine.
	Create(ctx context.Context, record Record, opts *WriteOptions) (Record, error)

	// Save replaces the stored record with the same identity and returns the
	// stored form.
	Save(ctx context.Context, record Record, opts *WriteOptions) (Record, error)

	Find(ctx context.Context, filter Filter, opts *FindOptions) ([]Record, error)

	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, filter Filter, opts *FindOptions) (Record, error)

	// FindByID returns ErrNotFound when nothing matches.
	FindByID(ctx context.Context, id any, opts *FindOptions) (Record, error)

	Count(ctx context.Context, filter Filter, opts *CountOptions) (int64, error)
	Distinct(ctx context.Context, field string, filter Filter) ([]any, error)

	UpdateOne(ctx context.Context, filter Filter, update Update, opts *UpdateOptions) (*UpdateResult, error)
	UpdateMany(ctx context.Context, filter Filter, update Update, opts *UpdateOptions) (*UpdateResult, error)

	DeleteOne(ctx context.Context, filter Filter, opts *WriteOptions) (*DeleteResult, error)
	DeleteMany(ctx context.Context, filter Filter, opts *WriteOptions) (*DeleteResult, error)

	Aggregate(ctx context.Context, pipeline Pipeline, opts *AggregateOptions) ([]Record, error)

	// SyncIndexes makes the stored indexes match the declared list.
	SyncIndexes(ctx context.Context, indexes []Index) error

	// Populate replaces reference identifiers under the given paths with the
	// referenced records. Paths may be nested ("leader.children").
	Populate(ctx context.Context, record Record, paths []string) (Record, error)
}

// CollectionSpec is the storage schema of one collection, materialized from
// a document class when it is bound.
type CollectionSpec struct {
	Name    string
	Fields  []FieldSpec
	Indexes []Index
}

// FieldSpec describes one stored field.
type FieldSpec struct {
	Name string
	// RefCollection is the target collection for reference fields and empty
	// for scalar fields.
	RefCollection string
	Multi         bool
	Options       map[string]any
}

// IsRef reports whether the field stores references.
func (f FieldSpec) IsRef() bool {
	return f.RefCollection != ""
}

// Field looks up a field spec by name.
func (s CollectionSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Refs returns the reference fields of the spec in declaration order.
func (s CollectionSpec) Refs() []FieldSpec {
	refs := make([]FieldSpec, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.IsRef() {
			refs = append(refs, f)
		}
	}
	return refs
}

// IndexKey is one key of a compound index.
type IndexKey struct {
	Field string
	Desc  bool
}

// Index is a declared collection index.
type Index struct {
	Name   string
	Keys   []IndexKey
	Unique bool
	Sparse bool
}

// KeyName returns the index name, deriving the mongo-style default
// ("field_1_other_-1") when none was declared.
func (i Index) KeyName() string {
	if i.Name != "" {
		return i.Name
	}
	parts := make([]string, 0, len(i.Keys)*2)
	for _, k := range i.Keys {
		dir := "1"
		if k.Desc {
			dir = "-1"
		}
		parts = append(parts, k.Field, dir)
	}
	return strings.Join(parts, "_")
}

// Filter is a document query in the mongo filter dialect.
type Filter map[string]any

// Update is an update document ($set, $unset, $inc, $push or a bare field map).
type Update map[string]any

// Pipeline is an aggregation pipeline.
type Pipeline []map[string]any

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions controls Find, FindOne and FindByID. A zero Limit means no
// bound, matching the mongo driver.
type FindOptions struct {
	Skip     int64
	Limit    int64
	Sort     []SortField
	Populate []string
	// Session is passed through to engines that support sessions.
	Session any
}

// CountOptions controls Count.
type CountOptions struct {
	Skip    int64
	Limit   int64
	Session any
}

// WriteOptions controls Create, Save and deletes.
type WriteOptions struct {
	Session any
}

// UpdateOptions controls UpdateOne and UpdateMany.
type UpdateOptions struct {
	Upsert  bool
	Session any
}

// AggregateOptions controls Aggregate.
type AggregateOptions struct {
	AllowDiskUse bool
	Session      any
}

// UpdateResult reports the effect of an update.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
	UpsertedID    any
}

// DeleteResult reports the effect of a delete.
type DeleteResult struct {
	DeletedCount int64
}

// Identifier is implemented by values that stand for a stored document,
// such as a hydrated document instance. Engines reduce them to their
// identity before writing.
type Identifier interface {
	Identity() any
}
