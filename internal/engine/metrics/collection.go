package metrics

import (
	"context"
	"time"

	"github.com/conduit-lang/docmap/internal/engine"
)

// Collection records metrics around an inner collection.
type Collection struct {
	inner   engine.Collection
	metrics *Metrics
}

var _ engine.Collection = (*Collection)(nil)

func (c *Collection) Name() string               { return c.inner.Name() }
func (c *Collection) Spec() engine.CollectionSpec { return c.inner.Spec() }

// track starts timing op; the returned func records the outcome.
func (c *Collection) track(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		c.metrics.observe(c.inner.Name(), op, start, err)
	}
}

func (c *Collection) Create(ctx context.Context, record engine.Record, opts *engine.WriteOptions) (engine.Record, error) {
	done := c.track("create")
	out, err := c.inner.Create(ctx, record, opts)
	done(err)
	return out, err
}

func (c *Collection) Save(ctx context.Context, record engine.Record, opts *engine.WriteOptions) (engine.Record, error) {
	done := c.track("save")
	out, err := c.inner.Save(ctx, record, opts)
	done(err)
	return out, err
}

func (c *Collection) Find(ctx context.Context, filter engine.Filter, opts *engine.FindOptions) ([]engine.Record, error) {
	done := c.track("find")
	out, err := c.inner.Find(ctx, filter, opts)
	done(err)
	return out, err
}

func (c *Collection) FindOne(ctx context.Context, filter engine.Filter, opts *engine.FindOptions) (engine.Record, error) {
	done := c.track("find_one")
	out, err := c.inner.FindOne(ctx, filter, opts)
	done(err)
	return out, err
}

func (c *Collection) FindByID(ctx context.Context, id any, opts *engine.FindOptions) (engine.Record, error) {
	done := c.track("find_by_id")
	out, err := c.inner.FindByID(ctx, id, opts)
	done(err)
	return out, err
}

func (c *Collection) Count(ctx context.Context, filter engine.Filter, opts *engine.CountOptions) (int64, error) {
	done := c.track("count")
	n, err := c.inner.Count(ctx, filter, opts)
	done(err)
	return n, err
}

func (c *Collection) Distinct(ctx context.Context, field string, filter engine.Filter) ([]any, error) {
	done := c.track("distinct")
	out, err := c.inner.Distinct(ctx, field, filter)
	done(err)
	return out, err
}

func (c *Collection) UpdateOne(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions) (*engine.UpdateResult, error) {
	done := c.track("update_one")
	res, err := c.inner.UpdateOne(ctx, filter, update, opts)
	done(err)
	return res, err
}

func (c *Collection) UpdateMany(ctx context.Context, filter engine.Filter, update engine.Update, opts *engine.UpdateOptions) (*engine.UpdateResult, error) {
	done := c.track("update_many")
	res, err := c.inner.UpdateMany(ctx, filter, update, opts)
	done(err)
	return res, err
}

func (c *Collection) DeleteOne(ctx context.Context, filter engine.Filter, opts *engine.WriteOptions) (*engine.DeleteResult, error) {
	done := c.track("delete_one")
	res, err := c.inner.DeleteOne(ctx, filter, opts)
	done(err)
	return res, err
}

func (c *Collection) DeleteMany(ctx context.Context, filter engine.Filter, opts *engine.WriteOptions) (*engine.DeleteResult, error) {
	done := c.track("delete_many")
	res, err := c.inner.DeleteMany(ctx, filter, opts)
	done(err)
	return res, err
}

func (c *Collection) Aggregate(ctx context.Context, pipeline engine.Pipeline, opts *engine.AggregateOptions) ([]engine.Record, error) {
	done := c.track("aggregate")
	out, err := c.inner.Aggregate(ctx, pipeline, opts)
	done(err)
	return out, err
}

func (c *Collection) SyncIndexes(ctx context.Context, indexes []engine.Index) error {
	done := c.track("sync_indexes")
	err := c.inner.SyncIndexes(ctx, indexes)
	done(err)
	return err
}

func (c *Collection) Populate(ctx context.Context, record engine.Record, paths []string) (engine.Record, error) {
	done := c.track("populate")
	out, err := c.inner.Populate(ctx, record, paths)
	done(err)
	return out, err
}
