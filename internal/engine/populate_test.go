package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	specs   map[string]CollectionSpec
	records map[string]map[string]Record
	lookups int
}

func (f *fakeResolver) CollectionSpec(name string) (CollectionSpec, bool) {
	spec, ok := f.specs[name]
	return spec, ok
}

func (f *fakeResolver) Lookup(_ context.Context, collection string, ids []any) (map[string]Record, error) {
	f.lookups++
	out := make(map[string]Record)
	for _, id := range ids {
		if r, ok := f.records[collection][IDKey(id)]; ok {
			out[IDKey(id)] = r
		}
	}
	return out, nil
}

func TestSplitPaths(t *testing.T) {
	got := SplitPaths([]string{"leader", "members.friends", "", "leader.children", "members"})
	assert.Equal(t, []PopulatePath{
		{Field: "leader", Nested: []string{"children"}},
		{Field: "members", Nested: []string{"friends"}},
	}, got)
	assert.Equal(t, []string{"leader", "members"}, RootFields([]string{"leader.x", "members", "leader"}))
}

func TestPopulateRecord(t *testing.T) {
	people := CollectionSpec{
		Name: "people",
		Fields: []FieldSpec{
			{Name: "name"},
			{Name: "friend", RefCollection: "people"},
		},
	}
	groups := CollectionSpec{
		Name: "groups",
		Fields: []FieldSpec{
			{Name: "leader", RefCollection: "people"},
			{Name: "members", RefCollection: "people", Multi: true},
		},
	}
	resolver := &fakeResolver{
		specs: map[string]CollectionSpec{"people": people, "groups": groups},
		records: map[string]map[string]Record{
			"people": {
				"a": {IDField: "a", "name": "Ada", "friend": "b"},
				"b": {IDField: "b", "name": "Bo"},
			},
		},
	}
	ctx := context.Background()

	t.Run("single and multi with nested path", func(t *testing.T) {
		rec := Record{IDField: "g", "leader": "a", "members": []any{"a", "missing", "b"}}
		out, err := PopulateRecord(ctx, resolver, groups, rec, []string{"leader.friend", "members"})
		require.NoError(t, err)

		leader := out["leader"].(Record)
		assert.Equal(t, "Ada", leader["name"])
		assert.Equal(t, "Bo", leader["friend"].(Record)["name"])

		members := out["members"].([]any)
		require.Len(t, members, 2)
		assert.Equal(t, "a", members[0].(Record)[IDField])
		assert.Equal(t, "b", members[1].(Record)[IDField])

		// Stored records are not mutated by nested population.
		assert.Equal(t, "b", resolver.records["people"]["a"]["friend"])
	})

	t.Run("missing single becomes nil", func(t *testing.T) {
		out, err := PopulateRecord(ctx, resolver, groups, Record{"leader": "zzz"}, []string{"leader"})
		require.NoError(t, err)
		assert.Nil(t, out["leader"])
	})

	t.Run("already populated value is re-fetched", func(t *testing.T) {
		rec := Record{"leader": Record{IDField: "b", "name": "stale"}}
		out, err := PopulateRecord(ctx, resolver, groups, rec, []string{"leader"})
		require.NoError(t, err)
		assert.Equal(t, "Bo", out["leader"].(Record)["name"])
	})

	t.Run("unknown path", func(t *testing.T) {
		_, err := PopulateRecord(ctx, resolver, groups, Record{}, []string{"owner"})
		assert.ErrorIs(t, err, ErrUnknownPath)
	})
}
