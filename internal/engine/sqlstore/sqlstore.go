// Package sqlstore is a document engine over a relational database. Each
// collection is a two-column table holding BSON-encoded records keyed by a
// UUID identity; queries are evaluated in process by docstore.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/engine/docstore"
)

var sqlOpen = sql.Open

// Backend is a docstore.Backend over database/sql.
type Backend struct {
	dialect Dialect
	dsn     string

	mu sync.Mutex
	db *sql.DB
}

var _ docstore.Backend = (*Backend)(nil)

// Open returns an engine that connects to dsn with the given dialect.
func Open(dialect Dialect, dsn, name string, log *zap.SugaredLogger) *docstore.Engine {
	return docstore.New(&Backend{dialect: dialect, dsn: dsn}, name, log)
}

// New returns an engine over an already opened database.
func New(db *sql.DB, dialect Dialect, name string, log *zap.SugaredLogger) *docstore.Engine {
	return docstore.New(NewBackend(db, dialect), name, log)
}

// NewBackend wraps an opened database.
func NewBackend(db *sql.DB, dialect Dialect) *Backend {
	return &Backend{dialect: dialect, db: db}
}

func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		db, err := sqlOpen(b.dialect.Driver, b.dsn)
		if err != nil {
			return fmt.Errorf("open %s: %w", b.dialect.Name, err)
		}
		b.db = db
	}
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", b.dialect.Name, err)
	}
	return nil
}

func (b *Backend) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *Backend) conn() (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil, engine.ErrNotConnected
	}
	return b.db, nil
}

func (b *Backend) NewID() any {
	return uuid.NewString()
}

func (b *Backend) Prepare(ctx context.Context, collection string) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, b.dialect.createTableSQL(collection))
	return ConvertDBError(err)
}

func (b *Backend) Scan(ctx context.Context, collection string) ([]engine.Record, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, b.dialect.scanSQL(collection))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	records := []engine.Record{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		rec, err := engine.UnmarshalRecord(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (b *Backend) Get(ctx context.Context, collection, key string) (engine.Record, bool, error) {
	db, err := b.conn()
	if err != nil {
		return nil, false, err
	}
	var body []byte
	err = db.QueryRowContext(ctx, b.dialect.getSQL(collection), key).Scan(&body)
	if err != nil {
		err = ConvertDBError(err)
		if err == engine.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	rec, err := engine.UnmarshalRecord(body)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s record: %w", collection, err)
	}
	return rec, true, nil
}

func (b *Backend) Insert(ctx context.Context, collection, key string, record engine.Record) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	body, err := engine.MarshalRecord(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}
	_, err = db.ExecContext(ctx, b.dialect.insertSQL(collection), key, body)
	return ConvertDBError(err)
}

func (b *Backend) Replace(ctx context.Context, collection, key string, record engine.Record) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	body, err := engine.MarshalRecord(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}
	res, err := db.ExecContext(ctx, b.dialect.replaceSQL(collection), body, key)
	if err != nil {
		return ConvertDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, collection string, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	db, err := b.conn()
	if err != nil {
		return 0, err
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	res, err := db.ExecContext(ctx, b.dialect.deleteSQL(collection, len(keys)), args...)
	if err != nil {
		return 0, ConvertDBError(err)
	}
	return res.RowsAffected()
}

func (b *Backend) Drop(ctx context.Context, collection string) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, b.dialect.dropSQL(collection))
	return ConvertDBError(err)
}
