// Package connection ties a schema registry to a persistence engine. Connect
// binds a collection handle to every class that names a collection;
// Disconnect releases them again.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Options controls Connect
type Options struct {
	// SyncIndexes makes stored indexes match the declared ones on connect
	SyncIndexes bool
	// ConnectTimeout bounds the engine connect including retries. Zero
	// means no bound.
	ConnectTimeout time.Duration
	// Retry retries failed engine connects. Nil tries once.
	Retry *RetryConfig
}

// Connection is an explicit handle over an engine and the classes bound to
// it
type Connection struct {
	engine   engine.Engine
	registry *schema.Registry
	mapper   *document.Mapper
	opts     Options
	log      *zap.SugaredLogger

	mu        sync.Mutex
	connected bool
	bound     []*schema.Class
}

// New creates a connection. A nil logger disables logging.
func New(eng engine.Engine, registry *schema.Registry, opts Options, log *zap.SugaredLogger) *Connection {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Connection{
		engine:   eng,
		registry: registry,
		mapper:   document.NewMapper(log),
		opts:     opts,
		log:      log,
	}
}

// Engine returns the underlying engine
func (c *Connection) Engine() engine.Engine {
	return c.engine
}

// Registry returns the schema registry
func (c *Connection) Registry() *schema.Registry {
	return c.registry
}

// Mapper returns the mapper shared by the connection's repositories
func (c *Connection) Mapper() *document.Mapper {
	return c.mapper
}

// IsConnected reports whether Connect succeeded and Disconnect was not called
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect opens the engine and binds every registered class that has a
// collection name. Classes without one are abstract and stay unbound.
// Calling Connect on a connected handle is a no-op. On error nothing stays
// bound and the engine is closed again.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	if err := c.connectEngine(ctx); err != nil {
		return err
	}

	for _, class := range c.registry.All() {
		if err := c.bind(ctx, class); err != nil {
			c.unbindAll()
			if derr := c.engine.Disconnect(ctx); derr != nil {
				c.log.Warnw("disconnect after failed connect", "error", derr)
			}
			return err
		}
	}

	c.connected = true
	c.log.Infow("connected", "classes", len(c.bound), "syncIndexes", c.opts.SyncIndexes)
	return nil
}

func (c *Connection) bind(ctx context.Context, class *schema.Class) error {
	if _, err := class.ModelName(); err != nil {
		c.log.Debugw("skipping class without collection", "class", class.Name())
		return nil
	}
	spec, err := class.CollectionSpec()
	if err != nil {
		return err
	}
	coll, err := c.engine.Collection(spec)
	if err != nil {
		return fmt.Errorf("bind %s: %w", class.Name(), err)
	}
	if c.opts.SyncIndexes {
		if err := coll.SyncIndexes(ctx, class.Metadata().Indexes); err != nil {
			return fmt.Errorf("sync indexes for %s: %w", class.Name(), err)
		}
		c.log.Debugw("indexes synced", "class", class.Name(), "count", len(class.Metadata().Indexes))
	}
	class.Bind(coll)
	c.bound = append(c.bound, class)
	c.log.Debugw("class bound", "class", class.Name(), "collection", spec.Name)
	return nil
}

// Disconnect unbinds every class and closes the engine. Calling it on a
// disconnected handle is a no-op.
func (c *Connection) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.unbindAll()
	c.connected = false
	if err := c.engine.Disconnect(ctx); err != nil {
		return err
	}
	c.log.Infow("disconnected")
	return nil
}

func (c *Connection) unbindAll() {
	for _, class := range c.bound {
		class.Unbind()
	}
	c.bound = nil
}

// SyncIndexes makes the stored indexes of every bound class match the
// declared ones
func (c *Connection) SyncIndexes(ctx context.Context) error {
	c.mu.Lock()
	bound := append([]*schema.Class{}, c.bound...)
	c.mu.Unlock()

	for _, class := range bound {
		coll, err := class.Collection()
		if err != nil {
			return err
		}
		if err := coll.SyncIndexes(ctx, class.Metadata().Indexes); err != nil {
			return fmt.Errorf("sync indexes for %s: %w", class.Name(), err)
		}
	}
	return nil
}

// Repository returns a repository for the named class
func (c *Connection) Repository(class string) (*query.Repository, error) {
	cls, err := c.registry.Lookup(class)
	if err != nil {
		return nil, err
	}
	return query.NewRepository(cls, c.mapper), nil
}

// Stats returns database statistics from engines that report them
func (c *Connection) Stats(ctx context.Context) (engine.Record, error) {
	admin, ok := c.engine.(engine.Admin)
	if !ok {
		return nil, fmt.Errorf("stats: %w", engine.ErrUnsupported)
	}
	return admin.Stats(ctx)
}

// DropDatabase drops the database on engines that support it
func (c *Connection) DropDatabase(ctx context.Context) error {
	admin, ok := c.engine.(engine.Admin)
	if !ok {
		return fmt.Errorf("drop database: %w", engine.ErrUnsupported)
	}
	c.log.Warnw("dropping database")
	return admin.DropDatabase(ctx)
}
