// Package docstore implements engine.Engine on top of a simple keyed record
// backend. Queries, updates, aggregation, unique indexes and population are
// evaluated in process; the backend only stores and returns whole records.
// The memory, sqlstore and redisstore engines are docstore backends.
package docstore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/engine"
)

// Backend stores records keyed by engine.IDKey of their identity.
//
// Records passed to Insert and Replace are owned by the backend; records
// returned by Scan and Get are owned by the caller.
type Backend interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	// NewID returns a fresh identity for a record created without one.
	NewID() any

	// Prepare makes sure the collection can hold records. It is called once
	// per collection before its first use.
	Prepare(ctx context.Context, collection string) error

	// Scan returns every record of the collection in insertion order.
	Scan(ctx context.Context, collection string) ([]engine.Record, error)

	// Get returns the record stored under key and whether it exists.
	Get(ctx context.Context, collection, key string) (engine.Record, bool, error)

	// Insert stores a new record. It returns engine.ErrDuplicateKey when the
	// key is taken.
	Insert(ctx context.Context, collection, key string, record engine.Record) error

	// Replace overwrites an existing record. It returns engine.ErrNotFound
	// when the key is absent.
	Replace(ctx context.Context, collection, key string, record engine.Record) error

	// Delete removes the given keys and reports how many existed.
	Delete(ctx context.Context, collection string, keys []string) (int64, error)

	// Drop removes the collection and all its records.
	Drop(ctx context.Context, collection string) error
}

// Engine is an engine.Engine over a Backend.
type Engine struct {
	backend Backend
	name    string
	log     *zap.SugaredLogger

	// mu serializes writes so unique-index checks and inserts are atomic
	// within the process.
	mu sync.Mutex

	stateMu   sync.RWMutex
	connected bool
	states    map[string]*collectionState
}

type collectionState struct {
	spec     engine.CollectionSpec
	indexes  []engine.Index
	prepared bool
}

var (
	_ engine.Engine   = (*Engine)(nil)
	_ engine.Admin    = (*Engine)(nil)
	_ engine.Resolver = (*Engine)(nil)
)

// New creates an engine for the named database over backend.
func New(backend Backend, name string, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		backend: backend,
		name:    name,
		log:     log,
		states:  make(map[string]*collectionState),
	}
}

// Name returns the database name.
func (e *Engine) Name() string {
	return e.name
}

// Connect opens the backend.
func (e *Engine) Connect(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.connected {
		return nil
	}
	if err := e.backend.Open(ctx); err != nil {
		return fmt.Errorf("open %s: %w", e.name, err)
	}
	e.connected = true
	e.log.Debugw("engine connected", "db", e.name)
	return nil
}

// Disconnect closes the backend. Bound collection specs are kept so a later
// Connect can reuse them.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if !e.connected {
		return nil
	}
	e.connected = false
	for _, st := range e.states {
		st.prepared = false
	}
	if err := e.backend.Close(ctx); err != nil {
		return fmt.Errorf("close %s: %w", e.name, err)
	}
	e.log.Debugw("engine disconnected", "db", e.name)
	return nil
}

// Collection binds a handle for spec.
func (e *Engine) Collection(spec engine.CollectionSpec) (engine.Collection, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: empty collection name", engine.ErrUnknownCollection)
	}
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	st, ok := e.states[spec.Name]
	if !ok {
		st = &collectionState{}
		e.states[spec.Name] = st
	}
	st.spec = spec
	if st.indexes == nil {
		st.indexes = spec.Indexes
	}
	return &Collection{eng: e, name: spec.Name}, nil
}

// CollectionSpec returns the spec a collection was bound with.
func (e *Engine) CollectionSpec(name string) (engine.CollectionSpec, bool) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	st, ok := e.states[name]
	if !ok {
		return engine.CollectionSpec{}, false
	}
	return st.spec, true
}

// Lookup fetches records by identity.
func (e *Engine) Lookup(ctx context.Context, collection string, ids []any) (map[string]engine.Record, error) {
	if err := e.ready(ctx, collection); err != nil {
		return nil, err
	}
	out := make(map[string]engine.Record, len(ids))
	for _, id := range ids {
		key := engine.IDKey(id)
		if _, seen := out[key]; seen {
			continue
		}
		rec, ok, err := e.backend.Get(ctx, collection, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = rec
		}
	}
	return out, nil
}

// Stats reports the number of bound collections and stored records.
func (e *Engine) Stats(ctx context.Context) (engine.Record, error) {
	names := e.collectionNames()
	var objects int
	for _, name := range names {
		if err := e.ready(ctx, name); err != nil {
			return nil, err
		}
		records, err := e.backend.Scan(ctx, name)
		if err != nil {
			return nil, err
		}
		objects += len(records)
	}
	return engine.Record{
		"db":          e.name,
		"collections": len(names),
		"objects":     objects,
	}, nil
}

// DropDatabase drops every bound collection.
func (e *Engine) DropDatabase(ctx context.Context) error {
	if !e.isConnected() {
		return engine.ErrNotConnected
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range e.collectionNames() {
		if err := e.backend.Drop(ctx, name); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
		e.stateMu.Lock()
		e.states[name].prepared = false
		e.stateMu.Unlock()
	}
	e.log.Infow("database dropped", "db", e.name)
	return nil
}

func (e *Engine) collectionNames() []string {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	names := make([]string, 0, len(e.states))
	for name := range e.states {
		names = append(names, name)
	}
	return names
}

func (e *Engine) isConnected() bool {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.connected
}

// ready checks the connection and prepares the collection on first use.
func (e *Engine) ready(ctx context.Context, collection string) error {
	e.stateMu.RLock()
	connected := e.connected
	st, ok := e.states[collection]
	prepared := ok && st.prepared
	e.stateMu.RUnlock()

	if !connected {
		return engine.ErrNotConnected
	}
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrUnknownCollection, collection)
	}
	if prepared {
		return nil
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if st.prepared {
		return nil
	}
	if err := e.backend.Prepare(ctx, collection); err != nil {
		return fmt.Errorf("prepare %s: %w", collection, err)
	}
	st.prepared = true
	return nil
}

func (e *Engine) indexes(collection string) []engine.Index {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	if st, ok := e.states[collection]; ok {
		return st.indexes
	}
	return nil
}

func (e *Engine) setIndexes(collection string, indexes []engine.Index) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if st, ok := e.states[collection]; ok {
		st.indexes = append([]engine.Index{}, indexes...)
	}
}
