// Package memory provides an in-process engine. Records live in maps and
// get primitive.ObjectID identities, so stored documents look like those of
// a mongo database. It backs the unit tests of the mapper.
package memory

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/engine/docstore"
)

type collection struct {
	order   []string
	records map[string]engine.Record
}

// Backend is a map-backed docstore.Backend.
type Backend struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ docstore.Backend = (*Backend)(nil)

// New returns a memory engine for the named database.
func New(name string, log *zap.SugaredLogger) *docstore.Engine {
	return docstore.New(NewBackend(), name, log)
}

// NewBackend returns an empty backend.
func NewBackend() *Backend {
	return &Backend{collections: make(map[string]*collection)}
}

func (b *Backend) Open(context.Context) error  { return nil }
func (b *Backend) Close(context.Context) error { return nil }

func (b *Backend) NewID() any {
	return primitive.NewObjectID()
}

func (b *Backend) Prepare(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[name]; !ok {
		b.collections[name] = &collection{records: make(map[string]engine.Record)}
	}
	return nil
}

func (b *Backend) Scan(_ context.Context, name string) ([]engine.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return []engine.Record{}, nil
	}
	out := make([]engine.Record, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.records[key].Clone())
	}
	return out, nil
}

func (b *Backend) Get(_ context.Context, name, key string) (engine.Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return nil, false, nil
	}
	rec, ok := c.records[key]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (b *Backend) Insert(_ context.Context, name, key string, record engine.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		c = &collection{records: make(map[string]engine.Record)}
		b.collections[name] = c
	}
	if _, exists := c.records[key]; exists {
		return engine.ErrDuplicateKey
	}
	c.records[key] = record
	c.order = append(c.order, key)
	return nil
}

func (b *Backend) Replace(_ context.Context, name, key string, record engine.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		return engine.ErrNotFound
	}
	if _, exists := c.records[key]; !exists {
		return engine.ErrNotFound
	}
	c.records[key] = record
	return nil
}

func (b *Backend) Delete(_ context.Context, name string, keys []string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		return 0, nil
	}
	drop := make(map[string]bool, len(keys))
	for _, key := range keys {
		if _, exists := c.records[key]; exists {
			drop[key] = true
			delete(c.records, key)
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}
	kept := c.order[:0]
	for _, key := range c.order {
		if !drop[key] {
			kept = append(kept, key)
		}
	}
	c.order = kept
	return int64(len(drop)), nil
}

func (b *Backend) Drop(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.collections, name)
	return nil
}
