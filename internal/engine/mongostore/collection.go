package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/conduit-lang/docmap/internal/engine"
)

// Collection is a bound MongoDB collection.
type Collection struct {
	eng  *Engine
	spec engine.CollectionSpec
}

var _ engine.Collection = (*Collection)(nil)

func (c *Collection) Name() string               { return c.spec.Name }
func (c *Collection) Spec() engine.CollectionSpec { return c.spec }

func (c *Collection) coll() (*mongo.Collection, error) {
	db, err := c.eng.database()
	if err != nil {
		return nil, err
	}
	return db.Collection(c.spec.Name), nil
}

func writeSession(opts *engine.WriteOptions) any {
	if opts == nil {
		return nil
	}
	return opts.Session
}

func (c *Collection) Create(ctx context.Context, record engine.Record, opts *engine.WriteOptions) (engine.Record, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	out := engine.ReduceRefs(c.spec, record)
	if out.ID() == nil {
		out[engine.IDField] = newObjectID()
	}
	if _, err := coll.InsertOne(sessionContext(ctx, writeSession(opts)), engine.ToBSON(out)); err != nil {
		return nil, convertError(err)
	}
	return out.Clone(), nil
}

func (c *Collection) Save(ctx context.Context, record engine.Record, opts *engine.WriteOptions) (engine.Record, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	if record.ID() == nil {
		return nil, engine.ErrNoIdentity
	}
	out := engine.ReduceRefs(c.spec, record)
	res, err := coll.ReplaceOne(sessionContext(ctx, writeSession(opts)), bson.M{engine.IDField: out.ID()}, engine.ToBSON(out))
	if err != nil {
		return nil, convertError(err)
	}
	if res.MatchedCount == 0 {
		return nil, engine.ErrNotFound
	}
	return out.Clone(), nil
}

func (c *Collection) Find(ctx context.Context, filter engine.Filter, opts *engine.FindOptions) ([]engine.Record, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &engine.FindOptions{}
	}
	findOpts := options.Find()
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(sortDoc(opts.Sort))
	}

	ctx = sessionContext(ctx, opts.Session)
	cur, err := coll.Find(ctx, toFilter(filter), findOpts)
	if err != nil {
		return nil, convertError(err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, convertError(err)
	}

	records := make([]engine.Record, 0, len(docs))
	for _, doc := range docs {
		rec := engine.FromBSON(doc)
		if len(opts.Populate) > 0 {
			if rec, err = c.Populate(ctx, rec, opts.Populate); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Collection) FindOne(ctx context.Context, filter engine.Filter, opts *engine.FindOptions) (engine.Record, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &engine.FindOptions{}
	}
	findOpts := options.FindOne()
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(sortDoc(opts.Sort))
	}

	ctx = sessionContext(ctx, opts.Session)
	var doc bson.M
	if err := coll.FindOne(ctx, toFilter(filter), findOpts).Decode(&doc); err != nil {
		return nil, convertError(err)
	}
	rec := engine.FromBSON(doc)
	if len(opts.Populate) > 0 {
		return c.Populate(ctx, rec, opts.Populate)
	}
	return rec, nil
}

func (c *Collection) FindByID(ctx context.Context, id any, opts *engine.FindOptions) (engine.Record, error) {
	if id == nil {
		return nil, engine.ErrNotFound
	}
	return c.FindOne(ctx, engine.Filter{engine.IDField: id}, opts)
}

func (c *Collection) Count(ctx context.Context, filter engine.Filter, opts *engine.CountOptions) (int64, error) {
	coll, err := c.coll()
	if err != nil {
		return 0, err
	}
	countOpts := options.Count()
	var session any
	if opts != nil {
		if opts.Skip > 0 {
			countOpts.SetSkip(opts.Skip)
		}
		if opts.Limit > 0 {
			countOpts.SetLimit(opts.Limit)
		}
		session = opts.Session
	}
	n, err := coll.CountDocuments(sessionContext(ctx, session), toFilter(filter), countOpts)
	return n, convertError(err)
}

func (c *Collection) Distinct(ctx context.Context, field string, filter engine.Filter) ([]any, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	values, err := coll.Distinct(ctx, field, toFilter(filter))
	if err != nil {
		return nil, convertError(err)
	}
	out := make([]any, len(values))
	for i, v := range values {
		if m, ok := v.(bson.M); ok {
			out[i] = engine.FromBSON(m)
			continue
		}
		out[i] = v
	}
	return out, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions) (*engine.UpdateResult, error) {
	return c.update(ctx, filter, update, opts, false)
}

func (c *Collection) UpdateMany(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions) (*engine.UpdateResult, error) {
	return c.update(ctx, filter, update, opts, true)
}

func (c *Collection) update(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions, many bool) (*engine.UpdateResult, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	updateOpts := options.Update()
	var session any
	if opts != nil {
		updateOpts.SetUpsert(opts.Upsert)
		session = opts.Session
	}
	doc := toUpdate(update)
	ctx = sessionContext(ctx, session)

	var res *mongo.UpdateResult
	if many {
		res, err = coll.UpdateMany(ctx, toFilter(filter), doc, updateOpts)
	} else {
		res, err = coll.UpdateOne(ctx, toFilter(filter), doc, updateOpts)
	}
	if err != nil {
		return nil, convertError(err)
	}
	return &engine.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    res.UpsertedID,
	}, nil
}

// toUpdate wraps a bare field map in $set. Operator documents pass through.
func toUpdate(update engine.Update) bson.M {
	for k := range update {
		if len(k) > 0 && k[0] == '$' {
			return engine.ToBSON(engine.Record(update))
		}
	}
	set := engine.Record{}
	for k, v := range update {
		if k != engine.IDField {
			set[k] = v
		}
	}
	return bson.M{"$set": engine.ToBSON(set)}
}

func (c *Collection) DeleteOne(ctx context.Context, filter engine.Filter, opts *engine.WriteOptions) (*engine.DeleteResult, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	res, err := coll.DeleteOne(sessionContext(ctx, writeSession(opts)), toFilter(filter))
	if err != nil {
		return nil, convertError(err)
	}
	return &engine.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (c *Collection) DeleteMany(ctx context.Context, filter engine.Filter, opts *engine.WriteOptions) (*engine.DeleteResult, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	res, err := coll.DeleteMany(sessionContext(ctx, writeSession(opts)), toFilter(filter))
	if err != nil {
		return nil, convertError(err)
	}
	return &engine.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (c *Collection) Aggregate(ctx context.Context, pipeline engine.Pipeline, opts *engine.AggregateOptions) ([]engine.Record, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	stages := make(bson.A, len(pipeline))
	for i, stage := range pipeline {
		stages[i] = engine.ToBSON(engine.Record(stage))
	}
	aggOpts := options.Aggregate()
	var session any
	if opts != nil {
		aggOpts.SetAllowDiskUse(opts.AllowDiskUse)
		session = opts.Session
	}
	ctx = sessionContext(ctx, session)

	cur, err := coll.Aggregate(ctx, stages, aggOpts)
	if err != nil {
		return nil, convertError(err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, convertError(err)
	}
	out := make([]engine.Record, len(docs))
	for i, doc := range docs {
		out[i] = engine.FromBSON(doc)
	}
	return out, nil
}

// SyncIndexes creates the declared indexes and drops stored indexes that are
// no longer declared. The _id index is never dropped.
func (c *Collection) SyncIndexes(ctx context.Context, indexes []engine.Index) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}

	declared := make(map[string]bool, len(indexes))
	for _, idx := range indexes {
		declared[idx.KeyName()] = true
	}

	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return convertError(err)
	}
	var existing []bson.M
	if err := cur.All(ctx, &existing); err != nil {
		return convertError(err)
	}
	for _, idx := range existing {
		name, _ := idx["name"].(string)
		if name == "" || name == "_id_" || declared[name] {
			continue
		}
		if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
			return fmt.Errorf("drop index %s: %w", name, convertError(err))
		}
		c.eng.log.Infow("index dropped", "collection", c.spec.Name, "index", name)
	}

	if len(indexes) == 0 {
		return nil
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexModels(indexes)); err != nil {
		return convertError(err)
	}
	c.eng.log.Debugw("indexes synced", "collection", c.spec.Name, "count", len(indexes))
	return nil
}

func (c *Collection) Populate(ctx context.Context, record engine.Record, paths []string) (engine.Record, error) {
	if record == nil || len(paths) == 0 {
		return record, nil
	}
	return engine.PopulateRecord(ctx, c.eng, c.spec, record.Clone(), paths)
}
