package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/engine/dial"
	"github.com/conduit-lang/docmap/internal/engine/memory"
	"github.com/conduit-lang/docmap/internal/orm/schema"
	"github.com/conduit-lang/docmap/internal/orm/validation"
)

const testConfig = `
database:
  uri: memory://clitest
log:
  level: error
documents:
  - name: Person
    collection: people
    fields:
      - name: name
        required: true
      - name: age
        min: 0
      - name: team
        ref: Team
      - name: friends
        refs: Person
    indexes:
      - keys: [name]
        unique: true
  - name: Team
    collection: teams
    fields:
      - name: name
      - name: members
        refs: Person
`

type harness struct {
	t      *testing.T
	config string
	eng    engine.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docmap.yml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))
	return &harness{t: t, config: path, eng: memory.New("clitest", nil)}
}

// run executes one command line against the shared in-memory engine
func (h *harness) run(args ...string) (string, error) {
	a := &app{dial: func(dial.Options, *zap.SugaredLogger) (engine.Engine, error) {
		return h.eng, nil
	}}
	cmd := newRootCommand(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", h.config, "--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

// insert creates a document and returns its identity
func (h *harness) insert(class, doc string) string {
	h.t.Helper()
	out := h.mustRun("insert", class, doc)
	fields := strings.Fields(out)
	require.NotEmpty(h.t, fields)
	return fields[len(fields)-1]
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "docmap", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"version", "schema", "indexes", "count", "find", "insert", "delete", "stats"} {
		assert.Contains(t, names, expected)
	}
	for _, flag := range []string{"config", "uri", "no-color", "verbose", "metrics"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	defer func() { Version, GitCommit = "dev", "unknown" }()

	cmd := NewVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Contains(t, out.String(), "docmap version: 1.0.0-test")
	assert.Contains(t, out.String(), "Git commit: abc123")
	assert.Contains(t, out.String(), "Go version: go")
}

func TestSchemaCommand(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("schema")
	assert.Contains(t, out, "Person")
	assert.Contains(t, out, "people")
	assert.Contains(t, out, "name_1 (unique)")
	assert.Contains(t, out, "[]ref(Person)")
	assert.Contains(t, out, "ref(Team)")
	assert.Contains(t, out, "required")
	assert.Contains(t, out, "Reference cycles:")

	out = h.mustRun("schema", "Team")
	assert.Contains(t, out, "teams")
	assert.NotContains(t, out, "people")

	_, err := h.run("schema", "Persn")
	assert.ErrorIs(t, err, schema.ErrUnknownClass)
}

func TestDocumentCommands(t *testing.T) {
	h := newHarness(t)

	adaID := h.insert("Person", `{"name": "Ada", "age": 36}`)
	h.insert("Person", `{"name": "Grace", "age": 85}`)
	h.insert("Person", `{"name": "Linus", "age": 54}`)
	assert.Equal(t, "3\n", h.mustRun("count", "Person"))

	t.Run("validation failure writes nothing", func(t *testing.T) {
		_, err := h.run("insert", "Person", `{"age": -1}`)
		assert.ErrorIs(t, err, validation.ErrValidationFailed)
		assert.Equal(t, "3\n", h.mustRun("count", "Person"))
	})

	t.Run("unique index", func(t *testing.T) {
		_, err := h.run("insert", "Person", `{"name": "Ada"}`)
		assert.ErrorIs(t, err, engine.ErrDuplicateKey)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := h.run("insert", "Person", `{"name":`)
		assert.ErrorContains(t, err, "invalid document")
		_, err = h.run("count", "Person", "--filter", "nope")
		assert.ErrorContains(t, err, "invalid --filter")
		_, err = h.run("count")
		assert.ErrorContains(t, err, "count requires exactly one document class")
	})

	t.Run("count with filter", func(t *testing.T) {
		assert.Equal(t, "2\n", h.mustRun("count", "Person", "--filter", `{"age": {"$gte": 50}}`))
		assert.Equal(t, "1\n", h.mustRun("count", "Person", "--id", adaID))
	})

	t.Run("find pages", func(t *testing.T) {
		out := h.mustRun("find", "Person", "--sort", "-age", "--limit", "2")
		assert.Contains(t, out, "Grace")
		assert.Contains(t, out, "Linus")
		assert.NotContains(t, out, "Ada")
		assert.Contains(t, out, "page 0: 2 of 3 documents")

		out = h.mustRun("find", "Person", "--sort", "-age", "--limit", "2", "--page", "1")
		assert.Contains(t, out, "Ada")
		assert.Contains(t, out, "page 1: 1 of 3 documents")
	})

	t.Run("find json", func(t *testing.T) {
		out := h.mustRun("find", "Person", "--filter", `{"name": "Ada"}`, "--json")
		assert.Contains(t, out, `"total": 1`)
		assert.Contains(t, out, `"name": "Ada"`)
		assert.Contains(t, out, adaID)
	})

	t.Run("find dump", func(t *testing.T) {
		out := h.mustRun("find", "Person", "--id", adaID, "--dump")
		assert.Contains(t, out, `"Ada"`)
		assert.Contains(t, out, "engine.Record")
	})

	t.Run("references", func(t *testing.T) {
		h.insert("Team", `{"name": "core", "members": ["`+adaID+`"]}`)

		out := h.mustRun("find", "Team")
		assert.Contains(t, out, "Ref("+adaID+")")

		out = h.mustRun("find", "Team", "--populate", "members")
		assert.Contains(t, out, "Ref(Person "+adaID+")")
	})

	t.Run("metrics", func(t *testing.T) {
		out := h.mustRun("count", "Person", "--metrics")
		assert.Contains(t, out, "COLLECTION")
		assert.Contains(t, out, "people")
		assert.Contains(t, out, "count")
	})

	t.Run("stats", func(t *testing.T) {
		out := h.mustRun("stats")
		assert.Contains(t, out, "clitest")
		assert.Contains(t, out, "objects:")
	})

	t.Run("delete", func(t *testing.T) {
		out := h.mustRun("delete", "Person", "--filter", `{"name": "Linus"}`, "--yes")
		assert.Contains(t, out, "✓ deleted 1 Person documents")
		assert.Equal(t, "2\n", h.mustRun("count", "Person"))

		out = h.mustRun("delete", "Person", "--filter", `{"name": "Linus"}`, "--yes")
		assert.Contains(t, out, "Nothing to delete")
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := h.run("count", "Persn")
		assert.ErrorIs(t, err, schema.ErrUnknownClass)
	})
}

func TestIndexesSync(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("indexes", "sync")
	assert.Contains(t, out, "✓ Person: 1 indexes")
	assert.Contains(t, out, "✓ Team: 0 indexes")
}

func TestDialFailure(t *testing.T) {
	h := newHarness(t)
	a := &app{dial: func(dial.Options, *zap.SugaredLogger) (engine.Engine, error) {
		return nil, errors.New("no route to host")
	}}
	cmd := newRootCommand(a)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", h.config, "count", "Person"})
	assert.ErrorContains(t, cmd.Execute(), "no route to host")
	assert.Equal(t, []string{"Person", "Team"}, a.classes)
}

func TestURIOverride(t *testing.T) {
	h := newHarness(t)
	a := &app{dial: dial.Open}
	cmd := newRootCommand(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", h.config, "--uri", "memory://override", "stats"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "override")
}
