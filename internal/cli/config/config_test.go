package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/orm/schema"
)

const sample = `
database:
  uri: mongodb://localhost:27017/library
  name: library
log:
  level: debug
indexes:
  sync: false
documents:
  - name: Base
    fields:
      - name: createdAt
  - name: Person
    extends: Base
    collection: people
    fields:
      - name: name
        required: true
      - name: age
        min: 18
        max: 130
      - name: email
        format: email
      - name: role
        enum: [admin, member]
      - name: parent
        ref: Person
      - name: children
        refs: Person
    indexes:
      - keys: [name]
        unique: true
      - name: by_age
        keys: [-age, name]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docmap.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(oldWd)
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
	assert.True(t, cfg.Indexes.Sync)
	assert.Empty(t, cfg.Database.URI)
	assert.Empty(t, cfg.Documents)
}

func TestLoad_ConfigFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017/library", cfg.Database.URI)
	assert.Equal(t, "library", cfg.Database.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Indexes.Sync)
	require.Len(t, cfg.Documents, 2)

	person := cfg.Documents[1]
	assert.Equal(t, "Base", person.Extends)
	assert.Equal(t, "people", person.Collection)
	require.Len(t, person.Fields, 6)
	require.NotNil(t, person.Fields[1].Min)
	assert.Equal(t, 18.0, *person.Fields[1].Min)
	assert.Equal(t, "Person", person.Fields[5].Refs)
}

func TestLoad_FindsFileInWorkingDirectory(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\n")
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(filepath.Dir(path)))
	defer os.Chdir(oldWd)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	found, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "docmap.yml", filepath.Base(found))
}

func TestLoad_Environment(t *testing.T) {
	path := writeConfig(t, sample)

	t.Run("prefixed override", func(t *testing.T) {
		t.Setenv("DOCMAP_DATABASE_URI", "memory://scratch")
		t.Setenv("DOCMAP_LOG_LEVEL", "error")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "memory://scratch", cfg.Database.URI)
		assert.Equal(t, "error", cfg.Log.Level)
	})

	t.Run("DATABASE_URL fallback", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/docs")
		cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost/docs", cfg.Database.URI)

		cfg, err = Load(path)
		require.NoError(t, err)
		assert.Equal(t, "mongodb://localhost:27017/library", cfg.Database.URI)
	})
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing scheme", "database:\n  uri: localhost\n", "must include a scheme"},
		{"unknown driver", "database:\n  uri: postgres://x\n  driver: odbc\n", "database.driver"},
		{"unnamed document", "documents:\n  - collection: things\n", "documents[0].name is required"},
		{"duplicate document", "documents:\n  - name: A\n  - name: A\n", "declared twice"},
		{"ref and refs", "documents:\n  - name: A\n    fields:\n      - name: b\n        ref: B\n        refs: B\n", "exclusive"},
		{"bad pattern", "documents:\n  - name: A\n    fields:\n      - name: b\n        pattern: \"[\"\n", "invalid pattern"},
		{"bad format", "documents:\n  - name: A\n    fields:\n      - name: b\n        format: ipv4\n", "format must be"},
		{"empty index", "documents:\n  - name: A\n    indexes:\n      - name: nothing\n", "has no keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Count())

	person, ok := reg.Get("Person")
	require.True(t, ok)
	assert.Equal(t, "Base", person.Parent().Name())

	name, err := person.ModelName()
	require.NoError(t, err)
	assert.Equal(t, "people", name)

	meta := person.Metadata()
	_, ok = meta.Fields.Get("createdAt")
	assert.True(t, ok, "inherited field")

	age, ok := meta.Fields.Get("age")
	require.True(t, ok)
	assert.Len(t, age.Constraints, 2)

	children, ok := meta.Fields.Get("children")
	require.True(t, ok)
	assert.Equal(t, schema.KindReference, children.Kind)
	assert.Equal(t, schema.Multi, children.Multiplicity)
	assert.Equal(t, "Person", children.Target)

	require.Len(t, meta.Indexes, 2)
	assert.True(t, meta.Indexes[0].Unique)
	assert.Equal(t, "age", meta.Indexes[1].Keys[0].Field)
	assert.True(t, meta.Indexes[1].Keys[0].Desc)
	assert.Equal(t, "by_age", meta.Indexes[1].Name)

	t.Run("timestamped base", func(t *testing.T) {
		cfg := &Config{Documents: []DocumentConfig{{Name: "Post", Extends: schema.TimestampedClass, Collection: "posts"}}}
		reg, err := cfg.Registry()
		require.NoError(t, err)
		assert.Equal(t, 2, reg.Count())

		post, ok := reg.Get("Post")
		require.True(t, ok)
		_, ok = post.Metadata().Fields.Get(schema.UpdatedAtField)
		assert.True(t, ok)
	})

	t.Run("unknown parent", func(t *testing.T) {
		cfg := &Config{Documents: []DocumentConfig{{Name: "Child", Extends: "Ghost"}}}
		_, err := cfg.Registry()
		assert.True(t, schema.IsConfigError(err))
	})
}
