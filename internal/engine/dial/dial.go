// Package dial opens an engine from a database URI.
package dial

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/engine/memory"
	"github.com/conduit-lang/docmap/internal/engine/mongostore"
	"github.com/conduit-lang/docmap/internal/engine/redisstore"
	"github.com/conduit-lang/docmap/internal/engine/sqlstore"
)

// Options selects the engine for a URI.
type Options struct {
	URI string
	// Database is the database name. When empty it is taken from the URI
	// path and defaults to "docmap".
	Database string
	// Driver overrides the SQL driver for postgres URIs ("pgx" or "pq").
	Driver string
}

// Open returns an unconnected engine for opts.URI. Supported schemes are
// memory, mongodb, mongodb+srv, postgres, postgresql, sqlite, file and
// redis.
func Open(opts Options, log *zap.SugaredLogger) (engine.Engine, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.URI == "" {
		return nil, fmt.Errorf("database uri is empty")
	}

	scheme, _, ok := strings.Cut(opts.URI, ":")
	if !ok {
		return nil, fmt.Errorf("database uri %q has no scheme", opts.URI)
	}
	name := opts.Database

	switch strings.ToLower(scheme) {
	case "memory":
		if name == "" {
			name = pathName(opts.URI)
		}
		return memory.New(orDefault(name), log), nil

	case "mongodb", "mongodb+srv":
		if name == "" {
			name = pathName(opts.URI)
		}
		return mongostore.New(opts.URI, orDefault(name), log), nil

	case "postgres", "postgresql":
		dialect := sqlstore.Postgres
		if opts.Driver != "" {
			d, err := sqlstore.DialectFor(opts.Driver)
			if err != nil {
				return nil, err
			}
			dialect = d
		}
		if name == "" {
			name = pathName(opts.URI)
		}
		return sqlstore.Open(dialect, opts.URI, orDefault(name), log), nil

	case "sqlite", "file":
		path := strings.TrimPrefix(strings.TrimPrefix(opts.URI, scheme+":"), "//")
		if path == "" {
			return nil, fmt.Errorf("sqlite uri %q has no path", opts.URI)
		}
		if name == "" {
			name = "main"
		}
		return sqlstore.Open(sqlstore.SQLite, path, name, log), nil

	case "redis", "rediss":
		cfg, err := redisstore.ConfigFromURL(opts.URI)
		if err != nil {
			return nil, err
		}
		return redisstore.New(cfg, orDefault(name), log), nil
	}
	return nil, fmt.Errorf("unsupported database scheme %q", scheme)
}

// pathName returns the first path segment of a URI, the conventional place
// for the database name.
func pathName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		p = u.Host
		if strings.Contains(p, ":") || strings.Contains(p, ".") || p == "localhost" {
			return ""
		}
		return p
	}
	first, _, _ := strings.Cut(p, "/")
	return first
}

func orDefault(name string) string {
	if name == "" {
		return "docmap"
	}
	return name
}
