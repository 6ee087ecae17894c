package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/schema"
	"github.com/conduit-lang/docmap/internal/orm/validation"
)

// EnvPrefix prefixes every environment override, e.g. DOCMAP_DATABASE_URI
const EnvPrefix = "DOCMAP"

// Config represents the docmap configuration
type Config struct {
	Database  DatabaseConfig   `mapstructure:"database"`
	Log       LogConfig        `mapstructure:"log"`
	Indexes   IndexesConfig    `mapstructure:"indexes"`
	Documents []DocumentConfig `mapstructure:"documents"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// IndexesConfig controls index synchronization on connect
type IndexesConfig struct {
	Sync bool `mapstructure:"sync"`
}

// DocumentConfig declares one document class
type DocumentConfig struct {
	Name       string        `mapstructure:"name"`
	Extends    string        `mapstructure:"extends"`
	Collection string        `mapstructure:"collection"`
	Fields     []FieldConfig `mapstructure:"fields"`
	Indexes    []IndexConfig `mapstructure:"indexes"`
}

// FieldConfig declares one field. Ref and Refs name the target class of a
// single or multi reference; a field with neither is a plain property.
type FieldConfig struct {
	Name     string   `mapstructure:"name"`
	Ref      string   `mapstructure:"ref"`
	Refs     string   `mapstructure:"refs"`
	Required bool     `mapstructure:"required"`
	Min      *float64 `mapstructure:"min"`
	Max      *float64 `mapstructure:"max"`
	Pattern  string   `mapstructure:"pattern"`
	Enum     []any    `mapstructure:"enum"`
	// Format is one of email, url or phone
	Format string `mapstructure:"format"`
}

// IndexConfig declares an index. A key prefixed with "-" sorts descending.
type IndexConfig struct {
	Name   string   `mapstructure:"name"`
	Keys   []string `mapstructure:"keys"`
	Unique bool     `mapstructure:"unique"`
	Sparse bool     `mapstructure:"sparse"`
}

// Load loads the configuration from path, or from docmap.yml or docmap.yaml
// in the working directory when path is empty. A missing default file is not
// an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("database.uri", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.driver", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("indexes.sync", true)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.URI == "" {
		config.Database.URI = os.Getenv("DATABASE_URL")
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// FindConfigFile walks up from the working directory looking for
// docmap.yml or docmap.yaml
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{"docmap.yml", "docmap.yaml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no docmap.yml found")
		}
		dir = parent
	}
}

// Registry registers every configured document class, in order, into a new
// registry. Parents must be listed before their children. A class extending
// Timestamped gets the built-in timestamp base unless the config declares
// its own.
func (c *Config) Registry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, doc := range c.Documents {
		if doc.Extends == schema.TimestampedClass && !reg.Exists(schema.TimestampedClass) {
			if _, err := reg.Define(schema.Timestamped(nil)); err != nil {
				return nil, err
			}
		}
		decl := schema.Declare(doc.Name).Extends(doc.Extends).Collection(doc.Collection)

		for _, f := range doc.Fields {
			constraints := f.constraints()
			switch {
			case f.Ref != "":
				decl.Ref(f.Name, f.Ref, constraints...)
			case f.Refs != "":
				decl.Refs(f.Name, f.Refs, constraints...)
			default:
				decl.Property(f.Name, constraints...)
			}
		}

		for _, idx := range doc.Indexes {
			decl.Index(idx.index())
		}

		if _, err := reg.Define(decl); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (f FieldConfig) constraints() []schema.Constraint {
	var out []schema.Constraint
	if f.Required {
		out = append(out, validation.Required())
	}
	if f.Min != nil {
		out = append(out, validation.Min(*f.Min))
	}
	if f.Max != nil {
		out = append(out, validation.Max(*f.Max))
	}
	if f.Pattern != "" {
		out = append(out, validation.Pattern(f.Pattern))
	}
	if len(f.Enum) > 0 {
		out = append(out, validation.Enum(f.Enum...))
	}
	switch f.Format {
	case "email":
		out = append(out, validation.Email())
	case "url":
		out = append(out, validation.URL())
	case "phone":
		out = append(out, validation.Phone())
	}
	return out
}

func (i IndexConfig) index() engine.Index {
	idx := engine.Index{Name: i.Name, Unique: i.Unique, Sparse: i.Sparse}
	for _, key := range i.Keys {
		field, desc := strings.CutPrefix(key, "-")
		idx.Keys = append(idx.Keys, engine.IndexKey{Field: field, Desc: desc})
	}
	return idx
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Database.URI != "" && !strings.Contains(cfg.Database.URI, ":") {
		return fmt.Errorf("database.uri must include a scheme, got: %s", cfg.Database.URI)
	}

	switch cfg.Database.Driver {
	case "", "pgx", "pq":
	default:
		return fmt.Errorf("database.driver must be pgx or pq, got: %s", cfg.Database.Driver)
	}

	seen := make(map[string]bool)
	for i, doc := range cfg.Documents {
		if doc.Name == "" {
			return fmt.Errorf("documents[%d].name is required", i)
		}
		if seen[doc.Name] {
			return fmt.Errorf("document %s is declared twice", doc.Name)
		}
		seen[doc.Name] = true

		for _, f := range doc.Fields {
			if f.Ref != "" && f.Refs != "" {
				return fmt.Errorf("%s.%s: ref and refs are exclusive", doc.Name, f.Name)
			}
			if f.Pattern != "" {
				if _, err := regexp.Compile(f.Pattern); err != nil {
					return fmt.Errorf("%s.%s: invalid pattern: %w", doc.Name, f.Name, err)
				}
			}
			switch f.Format {
			case "", "email", "url", "phone":
			default:
				return fmt.Errorf("%s.%s: format must be email, url or phone, got: %s", doc.Name, f.Name, f.Format)
			}
		}

		for _, idx := range doc.Indexes {
			if len(idx.Keys) == 0 {
				return fmt.Errorf("%s: index %q has no keys", doc.Name, idx.Name)
			}
		}
	}
	return nil
}
