package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/engine/memory"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

type country struct {
	name       string
	continent  string
	population int
}

var seedCountries = []country{
	{"Argentina", "America", 46},
	{"Brazil", "America", 216},
	{"Chile", "America", 19},
	{"Denmark", "Europe", 6},
	{"Egypt", "Africa", 112},
}

func newRepository(t *testing.T) (*query.Repository, *schema.Registry) {
	t.Helper()
	ctx := context.Background()

	reg := schema.NewRegistry()
	reg.MustDefine(schema.Declare("City").Collection("cities").Property("name"))
	class := reg.MustDefine(schema.Declare("Country").Collection("countries").
		Property("name").
		Property("continent").
		Property("population").
		Refs("cities", "City"))

	eng := memory.New("test", nil)
	require.NoError(t, eng.Connect(ctx))
	for _, c := range reg.All() {
		spec, err := c.CollectionSpec()
		require.NoError(t, err)
		coll, err := eng.Collection(spec)
		require.NoError(t, err)
		c.Bind(coll)
	}
	return query.NewRepository(class, document.NewMapper(nil)), reg
}

func seed(t *testing.T, repo *query.Repository) {
	t.Helper()
	for _, c := range seedCountries {
		d := repo.New()
		d.Set("name", c.name)
		d.Set("continent", c.continent)
		d.Set("population", c.population)
		_, err := d.Save(context.Background(), nil)
		require.NoError(t, err)
	}
}

func docNames(docs []*document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d.Get("name").(string)
	}
	return out
}

var byName = []engine.SortField{{Field: "name"}}

func TestRepository_Empty(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepository(t)

	n, err := repo.Count(ctx, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	docs, err := repo.FindMany(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)

	page, err := repo.Paginate(ctx, nil, query.PageOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.Equal(t, int64(0), page.Page)
	assert.Equal(t, int64(0), page.Limit)
	assert.Equal(t, int64(0), page.Skip)
	assert.Equal(t, int64(0), page.Current)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNext())

	_, err = repo.FindOne(ctx, engine.Filter{"name": "Atlantis"}, nil)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestRepository_Find(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepository(t)
	seed(t, repo)

	n, err := repo.Count(ctx, engine.Filter{"continent": "America"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	docs, err := repo.FindMany(ctx, engine.Filter{"population": map[string]any{"$gt": 40}}, &engine.FindOptions{Sort: byName})
	require.NoError(t, err)
	assert.Equal(t, []string{"Argentina", "Brazil", "Egypt"}, docNames(docs))
	for _, d := range docs {
		assert.False(t, d.IsNew())
		assert.False(t, d.IsModified())
	}

	one, err := repo.FindOne(ctx, engine.Filter{"continent": "Europe"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Denmark", one.Get("name"))

	byID, err := repo.FindByID(ctx, one.ID(), nil)
	require.NoError(t, err)
	assert.Equal(t, one.ID(), byID.ID())
	assert.NotSame(t, one, byID)

	_, err = repo.FindByID(ctx, "missing", nil)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	continents, err := repo.Distinct(ctx, "continent", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"America", "Europe", "Africa"}, continents)
}

func TestRepository_FindPopulates(t *testing.T) {
	ctx := context.Background()
	repo, reg := newRepository(t)
	city, err := reg.Lookup("City")
	require.NoError(t, err)

	var cities []*document.Document
	for _, name := range []string{"Rosario", "Mendoza"} {
		c := document.NewMapper(nil).New(city)
		c.Set("name", name)
		_, err := c.Save(ctx, nil)
		require.NoError(t, err)
		cities = append(cities, c)
	}

	d := repo.New()
	d.Set("name", "Argentina")
	d.SetRefs("cities", cities)
	_, err = d.Save(ctx, nil)
	require.NoError(t, err)

	plain, err := repo.FindByID(ctx, d.ID(), nil)
	require.NoError(t, err)
	for _, r := range plain.Refs("cities") {
		assert.True(t, r.IsUnresolved())
	}

	populated, err := repo.FindOne(ctx, engine.Filter{"name": "Argentina"}, &engine.FindOptions{Populate: []string{"cities"}})
	require.NoError(t, err)
	refs := populated.Refs("cities")
	require.Len(t, refs, 2)
	assert.Equal(t, "Rosario", refs[0].Document().Get("name"))
	assert.Equal(t, "Mendoza", refs[1].Document().Get("name"))
}

func TestRepository_Paginate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepository(t)
	seed(t, repo)

	tests := []struct {
		name    string
		opts    query.PageOptions
		skip    int64
		items   []string
		hasNext bool
	}{
		{
			name:    "first page",
			opts:    query.PageOptions{Page: 0, Limit: 2},
			skip:    0,
			items:   []string{"Argentina", "Brazil"},
			hasNext: true,
		},
		{
			name:    "middle page",
			opts:    query.PageOptions{Page: 1, Limit: 2},
			skip:    2,
			items:   []string{"Chile", "Denmark"},
			hasNext: true,
		},
		{
			name:  "last partial page",
			opts:  query.PageOptions{Page: 2, Limit: 2},
			skip:  4,
			items: []string{"Egypt"},
		},
		{
			name:  "past the end",
			opts:  query.PageOptions{Page: 3, Limit: 2},
			skip:  6,
			items: []string{},
		},
		{
			name:  "zero limit is unbounded",
			opts:  query.PageOptions{Page: 4, Limit: 0},
			skip:  0,
			items: []string{"Argentina", "Brazil", "Chile", "Denmark", "Egypt"},
		},
		{
			name:  "limit larger than total",
			opts:  query.PageOptions{Page: 0, Limit: 10},
			skip:  0,
			items: []string{"Argentina", "Brazil", "Chile", "Denmark", "Egypt"},
		},
		{
			name:    "negative page is clamped",
			opts:    query.PageOptions{Page: -1, Limit: 3},
			skip:    0,
			items:   []string{"Argentina", "Brazil", "Chile"},
			hasNext: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Sort = byName
			page, err := repo.Paginate(ctx, nil, tt.opts)
			require.NoError(t, err)

			assert.Equal(t, int64(5), page.Total)
			assert.Equal(t, tt.skip, page.Skip)
			assert.Equal(t, tt.items, docNames(page.Items))
			assert.Equal(t, int64(len(tt.items)), page.Current)
			assert.Equal(t, tt.hasNext, page.HasNext())
		})
	}

	t.Run("filtered total", func(t *testing.T) {
		page, err := repo.Paginate(ctx, engine.Filter{"continent": "America"}, query.PageOptions{Limit: 1, Sort: byName})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, []string{"Argentina"}, docNames(page.Items))
	})
}

func TestRepository_Writes(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepository(t)
	seed(t, repo)

	res, err := repo.UpdateMany(ctx, engine.Filter{"continent": "America"}, engine.Update{"$inc": map[string]any{"population": 1}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.MatchedCount)

	chile, err := repo.FindOne(ctx, engine.Filter{"name": "Chile"}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 20, chile.Get("population"))

	res, err = repo.UpdateOne(ctx, engine.Filter{"name": "Chile"}, engine.Update{"continent": "South America"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.MatchedCount)

	del, err := repo.DeleteOne(ctx, engine.Filter{"continent": "America"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), del.DeletedCount)

	del, err = repo.DeleteMany(ctx, engine.Filter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), del.DeletedCount)

	n, err := repo.Count(ctx, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_Aggregate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepository(t)
	seed(t, repo)

	pipeline := engine.Pipeline{
		{"$match": map[string]any{"continent": "America"}},
		{"$sort": map[string]any{"population": -1}},
		{"$limit": 2},
	}

	records, err := repo.Aggregate(ctx, pipeline, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Brazil", records[0]["name"])

	docs, err := repo.AggregateDocuments(ctx, pipeline, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brazil", "Argentina"}, docNames(docs))

	counted, err := repo.Aggregate(ctx, engine.Pipeline{{"$count": "n"}}, nil)
	require.NoError(t, err)
	require.Len(t, counted, 1)
	assert.EqualValues(t, 5, counted[0]["n"])
}

func TestRepository_UnboundClass(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepository(t)
	repo.Class().Unbind()

	_, err := repo.Count(ctx, nil, nil)
	assert.ErrorIs(t, err, schema.ErrNotBound)
	_, err = repo.FindMany(ctx, nil, nil)
	assert.ErrorIs(t, err, schema.ErrNotBound)
	_, err = repo.Paginate(ctx, nil, query.PageOptions{Limit: 10})
	assert.ErrorIs(t, err, schema.ErrNotBound)
}
