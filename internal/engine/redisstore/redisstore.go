// Package redisstore is a document engine over Redis. Each collection keeps
// its BSON-encoded records in a hash and their insertion order in a sorted
// set; queries are evaluated in process by docstore.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/engine/docstore"
)

// Config holds Redis connection configuration
type Config struct {
	// Addr is the Redis server address (host:port)
	Addr string

	// Password is the Redis password (empty if no auth)
	Password string

	// DB is the Redis database number
	DB int

	// PoolSize is the connection pool size
	PoolSize int

	// KeyPrefix is prepended to every key
	KeyPrefix string
}

// DefaultConfig returns the default configuration for addr.
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:      addr,
		PoolSize:  20,
		KeyPrefix: "docmap:",
	}
}

// ConfigFromURL parses a redis:// URL.
func ConfigFromURL(rawURL string) (*Config, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cfg := DefaultConfig(opts.Addr)
	cfg.Password = opts.Password
	cfg.DB = opts.DB
	return cfg, nil
}

// Backend is a docstore.Backend over Redis.
type Backend struct {
	config *Config
	prefix string

	mu     sync.Mutex
	client *redis.Client
}

var _ docstore.Backend = (*Backend)(nil)

// New returns an engine for the named database.
func New(config *Config, name string, log *zap.SugaredLogger) *docstore.Engine {
	return docstore.New(&Backend{config: config, prefix: config.KeyPrefix + name + ":"}, name, log)
}

// NewWithClient returns an engine over an existing client. Disconnect closes
// the client.
func NewWithClient(client *redis.Client, keyPrefix, name string, log *zap.SugaredLogger) *docstore.Engine {
	return docstore.New(&Backend{client: client, prefix: keyPrefix + name + ":"}, name, log)
}

func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		if b.config == nil {
			return engine.ErrNotConnected
		}
		b.client = redis.NewClient(&redis.Options{
			Addr:         b.config.Addr,
			Password:     b.config.Password,
			DB:           b.config.DB,
			PoolSize:     b.config.PoolSize,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
	}
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (b *Backend) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

func (b *Backend) conn() (*redis.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil, engine.ErrNotConnected
	}
	return b.client, nil
}

func (b *Backend) docsKey(collection string) string  { return b.prefix + collection + ":docs" }
func (b *Backend) orderKey(collection string) string { return b.prefix + collection + ":order" }
func (b *Backend) seqKey(collection string) string   { return b.prefix + collection + ":seq" }

func (b *Backend) NewID() any {
	return uuid.NewString()
}

func (b *Backend) Prepare(context.Context, string) error {
	return nil
}

func (b *Backend) Scan(ctx context.Context, collection string) ([]engine.Record, error) {
	client, err := b.conn()
	if err != nil {
		return nil, err
	}
	keys, err := client.ZRange(ctx, b.orderKey(collection), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []engine.Record{}, nil
	}
	values, err := client.HMGet(ctx, b.docsKey(collection), keys...).Result()
	if err != nil {
		return nil, err
	}
	records := make([]engine.Record, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := engine.UnmarshalRecord([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (b *Backend) Get(ctx context.Context, collection, key string) (engine.Record, bool, error) {
	client, err := b.conn()
	if err != nil {
		return nil, false, err
	}
	data, err := client.HGet(ctx, b.docsKey(collection), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rec, err := engine.UnmarshalRecord(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s record: %w", collection, err)
	}
	return rec, true, nil
}

func (b *Backend) Insert(ctx context.Context, collection, key string, record engine.Record) error {
	client, err := b.conn()
	if err != nil {
		return err
	}
	body, err := engine.MarshalRecord(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}
	added, err := client.HSetNX(ctx, b.docsKey(collection), key, body).Result()
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("%w: _id %s", engine.ErrDuplicateKey, key)
	}
	seq, err := client.Incr(ctx, b.seqKey(collection)).Result()
	if err != nil {
		return err
	}
	return client.ZAdd(ctx, b.orderKey(collection), redis.Z{Score: float64(seq), Member: key}).Err()
}

func (b *Backend) Replace(ctx context.Context, collection, key string, record engine.Record) error {
	client, err := b.conn()
	if err != nil {
		return err
	}
	exists, err := client.HExists(ctx, b.docsKey(collection), key).Result()
	if err != nil {
		return err
	}
	if !exists {
		return engine.ErrNotFound
	}
	body, err := engine.MarshalRecord(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}
	return client.HSet(ctx, b.docsKey(collection), key, body).Err()
}

func (b *Backend) Delete(ctx context.Context, collection string, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	client, err := b.conn()
	if err != nil {
		return 0, err
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	pipe := client.TxPipeline()
	deleted := pipe.HDel(ctx, b.docsKey(collection), keys...)
	pipe.ZRem(ctx, b.orderKey(collection), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return deleted.Val(), nil
}

func (b *Backend) Drop(ctx context.Context, collection string) error {
	client, err := b.conn()
	if err != nil {
		return err
	}
	return client.Del(ctx, b.docsKey(collection), b.orderKey(collection), b.seqKey(collection)).Err()
}
