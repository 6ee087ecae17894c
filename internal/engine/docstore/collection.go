package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduit-lang/docmap/internal/engine"
)

// Collection is a bound docstore collection.
type Collection struct {
	eng  *Engine
	name string
}

var _ engine.Collection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) Spec() engine.CollectionSpec {
	spec, _ := c.eng.CollectionSpec(c.name)
	return spec
}

func (c *Collection) Create(ctx context.Context, record engine.Record, _ *engine.WriteOptions) (engine.Record, error) {
	if err := c.eng.ready(ctx, c.name); err != nil {
		return nil, err
	}
	out := engine.ReduceRefs(c.Spec(), record).Clone()
	if out.ID() == nil {
		out[engine.IDField] = c.eng.backend.NewID()
	}

	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if err := c.checkUnique(ctx, out, ""); err != nil {
		return nil, err
	}
	if err := c.eng.backend.Insert(ctx, c.name, engine.IDKey(out.ID()), out); err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func (c *Collection) Save(ctx context.Context, record engine.Record, _ *engine.WriteOptions) (engine.Record, error) {
	if err := c.eng.ready(ctx, c.name); err != nil {
		return nil, err
	}
	if record.ID() == nil {
		return nil, engine.ErrNoIdentity
	}
	out := engine.ReduceRefs(c.Spec(), record).Clone()
	key := engine.IDKey(out.ID())

	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if err := c.checkUnique(ctx, out, key); err != nil {
		return nil, err
	}
	if err := c.eng.backend.Replace(ctx, c.name, key, out); err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func (c *Collection) Find(ctx context.Context, filter engine.Filter, opts *engine.FindOptions) ([]engine.Record, error) {
	if opts == nil {
		opts = &engine.FindOptions{}
	}
	matches, err := c.matching(ctx, filter)
	if err != nil {
		return nil, err
	}
	engine.SortRecords(matches, opts.Sort)
	matches = engine.Window(matches, opts.Skip, opts.Limit)

	if len(opts.Populate) > 0 {
		for i, rec := range matches {
			if matches[i], err = c.Populate(ctx, rec, opts.Populate); err != nil {
				return nil, err
			}
		}
	}
	return matches, nil
}

func (c *Collection) FindOne(ctx context.Context, filter engine.Filter, opts *engine.FindOptions) (engine.Record, error) {
	one := engine.FindOptions{Limit: 1}
	if opts != nil {
		one = *opts
		one.Limit = 1
	}
	records, err := c.Find(ctx, filter, &one)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, engine.ErrNotFound
	}
	return records[0], nil
}

func (c *Collection) FindByID(ctx context.Context, id any, opts *engine.FindOptions) (engine.Record, error) {
	if id == nil {
		return nil, engine.ErrNotFound
	}
	if err := c.eng.ready(ctx, c.name); err != nil {
		return nil, err
	}
	rec, ok, err := c.eng.backend.Get(ctx, c.name, engine.IDKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, engine.ErrNotFound
	}
	if opts != nil && len(opts.Populate) > 0 {
		return c.Populate(ctx, rec, opts.Populate)
	}
	return rec, nil
}

func (c *Collection) Count(ctx context.Context, filter engine.Filter, opts *engine.CountOptions) (int64, error) {
	matches, err := c.matching(ctx, filter)
	if err != nil {
		return 0, err
	}
	if opts != nil {
		matches = engine.Window(matches, opts.Skip, opts.Limit)
	}
	return int64(len(matches)), nil
}

func (c *Collection) Distinct(ctx context.Context, field string, filter engine.Filter) ([]any, error) {
	matches, err := c.matching(ctx, filter)
	if err != nil {
		return nil, err
	}
	values := []any{}
	add := func(v any) {
		for _, seen := range values {
			if engine.Equal(seen, v) {
				return
			}
		}
		values = append(values, v)
	}
	for _, rec := range matches {
		v, ok := engine.Lookup(rec, field)
		if !ok {
			continue
		}
		if items, isList := engine.AsList(v); isList {
			for _, item := range items {
				add(item)
			}
			continue
		}
		add(v)
	}
	return values, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions) (*engine.UpdateResult, error) {
	return c.update(ctx, filter, update, opts, false)
}

func (c *Collection) UpdateMany(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions) (*engine.UpdateResult, error) {
	return c.update(ctx, filter, update, opts, true)
}

func (c *Collection) update(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions, many bool) (*engine.UpdateResult, error) {
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()

	matches, err := c.matching(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !many && len(matches) > 1 {
		matches = matches[:1]
	}

	result := &engine.UpdateResult{MatchedCount: int64(len(matches))}
	for _, rec := range matches {
		updated, changed, err := engine.ApplyUpdate(rec, update)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		updated = engine.ReduceRefs(c.Spec(), updated)
		key := engine.IDKey(rec.ID())
		if err := c.checkUnique(ctx, updated, key); err != nil {
			return nil, err
		}
		if err := c.eng.backend.Replace(ctx, c.name, key, updated); err != nil {
			return nil, err
		}
		result.ModifiedCount++
	}

	if len(matches) == 0 && opts != nil && opts.Upsert {
		seed, _, err := engine.ApplyUpdate(seedFromFilter(filter), update)
		if err != nil {
			return nil, err
		}
		if seed.ID() == nil {
			seed[engine.IDField] = c.eng.backend.NewID()
		}
		seed = engine.ReduceRefs(c.Spec(), seed)
		if err := c.checkUnique(ctx, seed, ""); err != nil {
			return nil, err
		}
		if err := c.eng.backend.Insert(ctx, c.name, engine.IDKey(seed.ID()), seed); err != nil {
			return nil, err
		}
		result.UpsertedCount = 1
		result.UpsertedID = seed.ID()
	}
	return result, nil
}

// seedFromFilter collects the plain equality conditions of a filter, which
// become the initial fields of an upserted record.
func seedFromFilter(filter engine.Filter) engine.Record {
	seed := engine.Record{}
	for k, v := range filter {
		if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
			continue
		}
		if rec, ok := engine.AsRecord(v); ok {
			isOps := false
			for op := range rec {
				if strings.HasPrefix(op, "$") {
					isOps = true
					break
				}
			}
			if isOps {
				continue
			}
		}
		seed[k] = v
	}
	return seed
}

func (c *Collection) DeleteOne(ctx context.Context, filter engine.Filter, _ *engine.WriteOptions) (*engine.DeleteResult, error) {
	return c.delete(ctx, filter, false)
}

func (c *Collection) DeleteMany(ctx context.Context, filter engine.Filter, _ *engine.WriteOptions) (*engine.DeleteResult, error) {
	return c.delete(ctx, filter, true)
}

func (c *Collection) delete(ctx context.Context, filter engine.Filter, many bool) (*engine.DeleteResult, error) {
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()

	matches, err := c.matching(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !many && len(matches) > 1 {
		matches = matches[:1]
	}
	if len(matches) == 0 {
		return &engine.DeleteResult{}, nil
	}
	keys := make([]string, len(matches))
	for i, rec := range matches {
		keys[i] = engine.IDKey(rec.ID())
	}
	n, err := c.eng.backend.Delete(ctx, c.name, keys)
	if err != nil {
		return nil, err
	}
	return &engine.DeleteResult{DeletedCount: n}, nil
}

func (c *Collection) Aggregate(ctx context.Context, pipeline engine.Pipeline, _ *engine.AggregateOptions) ([]engine.Record, error) {
	if err := c.eng.ready(ctx, c.name); err != nil {
		return nil, err
	}
	records, err := c.eng.backend.Scan(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return engine.RunPipeline(records, pipeline)
}

// SyncIndexes replaces the declared indexes and checks existing records
// against the unique ones.
func (c *Collection) SyncIndexes(ctx context.Context, indexes []engine.Index) error {
	if err := c.eng.ready(ctx, c.name); err != nil {
		return err
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()

	records, err := c.eng.backend.Scan(ctx, c.name)
	if err != nil {
		return err
	}
	for _, idx := range indexes {
		if !idx.Unique {
			continue
		}
		for i := range records {
			for j := i + 1; j < len(records); j++ {
				if sameIndexKey(idx, records[i], records[j]) {
					return fmt.Errorf("%w: index %s on %s", engine.ErrDuplicateKey, idx.KeyName(), c.name)
				}
			}
		}
	}
	c.eng.setIndexes(c.name, indexes)
	c.eng.log.Debugw("indexes synced", "collection", c.name, "count", len(indexes))
	return nil
}

func (c *Collection) Populate(ctx context.Context, record engine.Record, paths []string) (engine.Record, error) {
	if record == nil || len(paths) == 0 {
		return record, nil
	}
	return engine.PopulateRecord(ctx, c.eng, c.Spec(), record.Clone(), paths)
}

func (c *Collection) matching(ctx context.Context, filter engine.Filter) ([]engine.Record, error) {
	if err := c.eng.ready(ctx, c.name); err != nil {
		return nil, err
	}
	records, err := c.eng.backend.Scan(ctx, c.name)
	if err != nil {
		return nil, err
	}
	matches := make([]engine.Record, 0, len(records))
	for _, rec := range records {
		ok, err := engine.Match(filter, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, rec)
		}
	}
	return matches, nil
}

// checkUnique reports engine.ErrDuplicateKey when record collides with any
// other stored record on a unique index. self is the key of the record being
// replaced, if any.
func (c *Collection) checkUnique(ctx context.Context, record engine.Record, self string) error {
	var unique []engine.Index
	for _, idx := range c.eng.indexes(c.name) {
		if idx.Unique {
			unique = append(unique, idx)
		}
	}
	if len(unique) == 0 {
		return nil
	}
	records, err := c.eng.backend.Scan(ctx, c.name)
	if err != nil {
		return err
	}
	for _, idx := range unique {
		for _, other := range records {
			if engine.IDKey(other.ID()) == self {
				continue
			}
			if sameIndexKey(idx, record, other) {
				return fmt.Errorf("%w: index %s on %s", engine.ErrDuplicateKey, idx.KeyName(), c.name)
			}
		}
	}
	return nil
}

func sameIndexKey(idx engine.Index, a, b engine.Record) bool {
	for _, key := range idx.Keys {
		va, aok := engine.Lookup(a, key.Field)
		vb, bok := engine.Lookup(b, key.Field)
		if idx.Sparse && (!aok || !bok) {
			return false
		}
		if !engine.Equal(va, vb) {
			return false
		}
	}
	return len(idx.Keys) > 0
}
