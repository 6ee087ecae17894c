package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/engine"
)

func noop(context.Context, Instance) error { return nil }

func idx(field string) engine.Index {
	return engine.Index{Keys: []engine.IndexKey{{Field: field}}}
}

// defineChain defines A -> B -> C where A and B both register "touch".
func defineChain(t *testing.T) (*Registry, *Class, *Class, *Class) {
	t.Helper()
	r := NewRegistry()

	a, err := r.Define(Declare("A").
		Collection("things").
		Index(idx("a")).
		Property("name").
		Property("kind").
		Method("touch", noop).
		Method("stamp", noop).
		On(BeforeCreate, "touch").
		On(BeforeCreate, "stamp").
		Options(map[string]any{"timestamps": true, "strict": true}))
	require.NoError(t, err)

	b, err := r.Define(Declare("B").
		Extends("A").
		Index(idx("b")).
		Property("kind", Required()).
		Property("b").
		Method("audit", noop).
		On(BeforeCreate, "touch").
		On(BeforeCreate, "audit").
		Options(map[string]any{"strict": false}))
	require.NoError(t, err)

	c, err := r.Define(Declare("C").
		Extends("B").
		Collection("cees").
		Index(idx("c")).
		Ref("owner", "A").
		On(AfterLoad, "audit"))
	require.NoError(t, err)

	return r, a, b, c
}

func TestCompose(t *testing.T) {
	t.Run("indexes are appended down the chain", func(t *testing.T) {
		_, _, _, c := defineChain(t)

		var keys []string
		for _, i := range c.Metadata().Indexes {
			keys = append(keys, i.Keys[0].Field)
		}
		assert.Equal(t, []string{"a", "b", "c"}, keys)
	})

	t.Run("callbacks are concatenated without duplicates", func(t *testing.T) {
		_, a, b, c := defineChain(t)

		assert.Equal(t, []string{"touch", "stamp"}, a.Metadata().CallbacksFor(BeforeCreate))
		assert.Equal(t, []string{"touch", "stamp", "audit"}, b.Metadata().CallbacksFor(BeforeCreate))
		assert.Equal(t, []string{"touch", "stamp", "audit"}, c.Metadata().CallbacksFor(BeforeCreate))
		assert.Equal(t, []string{"audit"}, c.Metadata().CallbacksFor(AfterLoad))
		assert.Empty(t, c.Metadata().CallbacksFor(AfterUpdate))
	})

	t.Run("collection name falls back to the parent", func(t *testing.T) {
		_, a, b, c := defineChain(t)

		assert.Equal(t, "things", a.Metadata().Collection)
		assert.Equal(t, "things", b.Metadata().Collection)
		assert.Equal(t, "cees", c.Metadata().Collection)
	})

	t.Run("fields overlay keeping the parent position", func(t *testing.T) {
		_, a, _, c := defineChain(t)

		assert.Equal(t, []string{"name", "kind", "b", "owner"}, c.Metadata().Fields.Names())

		kind, ok := c.Field("kind")
		require.True(t, ok)
		assert.Len(t, kind.Constraints, 1)

		parentKind, _ := a.Field("kind")
		assert.Empty(t, parentKind.Constraints)
	})

	t.Run("options merge shallowly", func(t *testing.T) {
		_, _, _, c := defineChain(t)
		assert.Equal(t, map[string]any{"timestamps": true, "strict": false}, c.Metadata().Options)
	})

	t.Run("composition is deterministic", func(t *testing.T) {
		_, _, b, _ := defineChain(t)
		own := Declare("C").Extends("B").Index(idx("c")).Ref("owner", "A")

		first, err := Compose(b.Metadata(), own)
		require.NoError(t, err)
		second, err := Compose(b.Metadata(), own)
		require.NoError(t, err)

		assert.Equal(t, first.Collection, second.Collection)
		assert.Equal(t, first.Indexes, second.Indexes)
		assert.Equal(t, first.Fields, second.Fields)
		assert.Equal(t, first.Callbacks, second.Callbacks)
		assert.Equal(t, first.Options, second.Options)
		assert.Equal(t, len(first.Methods), len(second.Methods))
	})

	t.Run("redeclared callback moves last", func(t *testing.T) {
		d := Declare("X").
			Method("one", noop).
			Method("two", noop).
			On(AfterCreate, "one").
			On(AfterCreate, "two").
			On(AfterCreate, "one")

		meta, err := Compose(nil, d)
		require.NoError(t, err)
		assert.Equal(t, []string{"two", "one"}, meta.CallbacksFor(AfterCreate))
	})

	t.Run("subclass method overrides inherited one", func(t *testing.T) {
		r := NewRegistry()
		var called string
		r.MustDefine(Declare("Base").Collection("base").
			Method("hook", func(context.Context, Instance) error { called = "base"; return nil }).
			On(BeforeUpdate, "hook"))
		sub := r.MustDefine(Declare("Sub").Extends("Base").
			Method("hook", func(context.Context, Instance) error { called = "sub"; return nil }))

		fn, ok := sub.Metadata().Method("hook")
		require.True(t, ok)
		require.NoError(t, fn(context.Background(), nil))
		assert.Equal(t, "sub", called)
		assert.Equal(t, []string{"hook"}, sub.Metadata().CallbacksFor(BeforeUpdate))
	})

	t.Run("callback without method", func(t *testing.T) {
		_, err := Compose(nil, Declare("X").On(AfterLoad, "missing"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownCallback)
		assert.True(t, IsConfigError(err))
	})
}

func TestRegistry(t *testing.T) {
	t.Run("define is memoized", func(t *testing.T) {
		r := NewRegistry()
		d := Declare("Post").Collection("posts").Property("title")

		first, err := r.Define(d)
		require.NoError(t, err)
		second, err := r.Define(d)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("duplicate name", func(t *testing.T) {
		r := NewRegistry()
		r.MustDefine(Declare("Post").Collection("posts"))

		_, err := r.Define(Declare("Post").Collection("other"))
		assert.ErrorIs(t, err, ErrDuplicateClass)
	})

	t.Run("unknown parent", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Define(Declare("Child").Extends("Missing"))
		assert.ErrorIs(t, err, ErrUnknownClass)
		assert.False(t, r.Exists("Child"))
	})

	t.Run("structural validation", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Define(Declare("Bad").
			Field(FieldDefinition{Name: "owner", Kind: KindReference}).
			Property("_id").
			Index(engine.Index{Name: "empty"}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidDeclaration)
		assert.Contains(t, err.Error(), "reference has no target class")
		assert.Contains(t, err.Error(), "_id is reserved")
		assert.Contains(t, err.Error(), "index empty has no keys")
		assert.Equal(t, 0, r.Count())
	})

	t.Run("list and all", func(t *testing.T) {
		r := NewRegistry()
		for _, name := range []string{"User", "Post", "Comment"} {
			r.MustDefine(Declare(name).Collection(name))
		}

		assert.Equal(t, []string{"Comment", "Post", "User"}, r.List())
		var order []string
		for _, c := range r.All() {
			order = append(order, c.Name())
		}
		assert.Equal(t, []string{"User", "Post", "Comment"}, order)

		r.Clear()
		assert.Equal(t, 0, r.Count())
	})

	t.Run("lookup", func(t *testing.T) {
		r := NewRegistry()
		r.MustDefine(Declare("User").Collection("users"))

		c, err := r.Lookup("User")
		require.NoError(t, err)
		assert.Equal(t, "User", c.Name())

		_, err = r.Lookup("Ghost")
		assert.ErrorIs(t, err, ErrUnknownClass)
	})
}

func TestClass(t *testing.T) {
	t.Run("missing collection name is a config error", func(t *testing.T) {
		r := NewRegistry()
		c := r.MustDefine(Declare("Abstract").Property("name"))

		_, err := c.ModelName()
		assert.ErrorIs(t, err, ErrMissingCollectionName)

		_, err = c.Collection()
		var ce *ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "Abstract", ce.Class)
		assert.ErrorIs(t, err, ErrMissingCollectionName)
	})

	t.Run("unbound class is a config error", func(t *testing.T) {
		r := NewRegistry()
		c := r.MustDefine(Declare("User").Collection("users"))

		_, err := c.Collection()
		assert.ErrorIs(t, err, ErrNotBound)
		assert.False(t, c.IsBound())
	})

	t.Run("collection spec resolves targets lazily", func(t *testing.T) {
		r := NewRegistry()
		node := r.MustDefine(Declare("Node").Collection("nodes").
			Property("label").
			Ref("parent", "Node").
			Refs("children", "Node").
			Ref("owner", "User"))

		_, err := node.CollectionSpec()
		assert.ErrorIs(t, err, ErrUnknownClass)

		r.MustDefine(Declare("User").Collection("users"))
		spec, err := node.CollectionSpec()
		require.NoError(t, err)

		assert.Equal(t, "nodes", spec.Name)
		require.Len(t, spec.Fields, 4)
		assert.Equal(t, engine.FieldSpec{Name: "label"}, spec.Fields[0])
		assert.Equal(t, "nodes", spec.Fields[1].RefCollection)
		assert.False(t, spec.Fields[1].Multi)
		assert.True(t, spec.Fields[2].Multi)
		assert.Equal(t, "users", spec.Fields[3].RefCollection)
		assert.NoError(t, r.ValidateAll())
	})

	t.Run("target without collection", func(t *testing.T) {
		r := NewRegistry()
		r.MustDefine(Declare("Base"))
		c := r.MustDefine(Declare("Holder").Collection("holders").Ref("base", "Base"))

		_, err := c.CollectionSpec()
		assert.ErrorIs(t, err, ErrMissingCollectionName)
	})

	t.Run("is a", func(t *testing.T) {
		_, a, b, c := defineChain(t)
		assert.True(t, c.IsA(a))
		assert.True(t, c.IsA(b))
		assert.False(t, a.IsA(c))
		assert.Same(t, b, c.Parent())
	})
}

func TestPhase(t *testing.T) {
	for _, p := range Phases() {
		parsed, err := ParsePhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	_, err := ParsePhase("beforeDestroy")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Phase(99).String())
}

func TestRefGraph(t *testing.T) {
	r := NewRegistry()
	r.MustDefine(Declare("Person").Collection("people").
		Ref("parent", "Person").
		Refs("siblings", "Person").
		Ref("team", "Team"))
	r.MustDefine(Declare("Team").Collection("teams").Ref("leader", "Person"))
	r.MustDefine(Declare("Tag").Collection("tags"))

	g := r.Graph()
	assert.Equal(t, []string{"Person", "Team"}, g.References("Person"))
	assert.Equal(t, []string{"Person", "Team"}, g.ReferencedBy("Person"))
	assert.Empty(t, g.References("Tag"))

	cycles := g.DetectCycles()
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"Person"}, cycles[0])
	assert.Equal(t, []string{"Person", "Team"}, cycles[1])
	assert.Contains(t, FormatCycles(cycles), "Cycle 2: Person -> Team -> Person")
}

// Required is a minimal constraint for composition tests.
func Required() Constraint { return requiredConstraint{} }

type requiredConstraint struct{}

func (requiredConstraint) Name() string { return "required" }
func (requiredConstraint) Check(v any) error {
	if v == nil {
		return errors.New("is required")
	}
	return nil
}
