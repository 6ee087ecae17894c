// Package mongostore is the MongoDB engine, a thin adapter from the engine
// contract onto the official driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/engine"
)

// Engine connects to one MongoDB database.
type Engine struct {
	uri    string
	dbName string
	log    *zap.SugaredLogger

	mu     sync.RWMutex
	client *mongo.Client
	owned  bool
	specs  map[string]engine.CollectionSpec
}

var (
	_ engine.Engine   = (*Engine)(nil)
	_ engine.Admin    = (*Engine)(nil)
	_ engine.Resolver = (*Engine)(nil)
)

// New returns an engine that connects to uri on Connect.
func New(uri, dbName string, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{uri: uri, dbName: dbName, log: log, specs: make(map[string]engine.CollectionSpec)}
}

// NewFromClient returns an engine over a connected client. Disconnect leaves
// the client open.
func NewFromClient(client *mongo.Client, dbName string, log *zap.SugaredLogger) *Engine {
	e := New("", dbName, log)
	e.client = client
	return e
}

func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(e.uri))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("ping mongo: %w", err)
	}
	e.client = client
	e.owned = true
	e.log.Infow("mongo connected", "db", e.dbName)
	return nil
}

func (e *Engine) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil || !e.owned {
		return nil
	}
	err := e.client.Disconnect(ctx)
	e.client = nil
	e.owned = false
	e.log.Infow("mongo disconnected", "db", e.dbName)
	return err
}

func (e *Engine) database() (*mongo.Database, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil, engine.ErrNotConnected
	}
	return e.client.Database(e.dbName), nil
}

func (e *Engine) Collection(spec engine.CollectionSpec) (engine.Collection, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: empty collection name", engine.ErrUnknownCollection)
	}
	e.mu.Lock()
	e.specs[spec.Name] = spec
	e.mu.Unlock()
	return &Collection{eng: e, spec: spec}, nil
}

func (e *Engine) CollectionSpec(name string) (engine.CollectionSpec, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	spec, ok := e.specs[name]
	return spec, ok
}

// Lookup fetches records by identity with a single $in query.
func (e *Engine) Lookup(ctx context.Context, collection string, ids []any) (map[string]engine.Record, error) {
	db, err := e.database()
	if err != nil {
		return nil, err
	}
	in := make(bson.A, len(ids))
	for i, id := range ids {
		in[i] = engine.ObjectIDFrom(id)
	}
	cur, err := db.Collection(collection).Find(ctx, bson.M{engine.IDField: bson.M{"$in": in}})
	if err != nil {
		return nil, convertError(err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, convertError(err)
	}
	out := make(map[string]engine.Record, len(docs))
	for _, doc := range docs {
		rec := engine.FromBSON(doc)
		out[engine.IDKey(rec.ID())] = rec
	}
	return out, nil
}

// Stats runs the dbStats command.
func (e *Engine) Stats(ctx context.Context) (engine.Record, error) {
	db, err := e.database()
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&out); err != nil {
		return nil, convertError(err)
	}
	return engine.FromBSON(out), nil
}

func (e *Engine) DropDatabase(ctx context.Context) error {
	db, err := e.database()
	if err != nil {
		return err
	}
	if err := db.Drop(ctx); err != nil {
		return convertError(err)
	}
	e.log.Infow("database dropped", "db", e.dbName)
	return nil
}

// convertError maps driver errors onto engine errors.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return engine.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", engine.ErrDuplicateKey, err)
	}
	return err
}

// sessionContext runs an operation inside a caller-provided session.
func sessionContext(ctx context.Context, session any) context.Context {
	if sc, ok := session.(mongo.SessionContext); ok {
		return sc
	}
	return ctx
}

func sortDoc(fields []engine.SortField) bson.D {
	doc := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		doc = append(doc, bson.E{Key: f.Field, Value: dir})
	}
	return doc
}

func indexModels(indexes []engine.Index) []mongo.IndexModel {
	models := make([]mongo.IndexModel, 0, len(indexes))
	for _, idx := range indexes {
		opts := options.Index().SetName(idx.KeyName())
		if idx.Unique {
			opts.SetUnique(true)
		}
		if idx.Sparse {
			opts.SetSparse(true)
		}
		models = append(models, mongo.IndexModel{Keys: sortDoc(toSortFields(idx.Keys)), Options: opts})
	}
	return models
}

func toSortFields(keys []engine.IndexKey) []engine.SortField {
	out := make([]engine.SortField, len(keys))
	for i, k := range keys {
		out[i] = engine.SortField{Field: k.Field, Desc: k.Desc}
	}
	return out
}

// toFilter converts a filter to bson, turning hex identity strings on _id
// into object ids.
func toFilter(filter engine.Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	doc := engine.ToBSON(engine.Record(filter))
	switch id := doc[engine.IDField].(type) {
	case string:
		doc[engine.IDField] = engine.ObjectIDFrom(id)
	case engine.Identifier:
		doc[engine.IDField] = id.Identity()
	}
	return doc
}

func newObjectID() primitive.ObjectID {
	return primitive.NewObjectID()
}
