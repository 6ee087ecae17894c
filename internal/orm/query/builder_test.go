package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/query"
)

func TestCondition_Filter(t *testing.T) {
	tests := []struct {
		name    string
		cond    query.Condition
		want    engine.Filter
		wantErr bool
	}{
		{"equal", query.Condition{"name", query.OpEqual, "Chile"}, engine.Filter{"name": "Chile"}, false},
		{"not equal", query.Condition{"name", query.OpNotEqual, "Chile"}, engine.Filter{"name": map[string]any{"$ne": "Chile"}}, false},
		{"greater", query.Condition{"population", query.OpGreaterThan, 10}, engine.Filter{"population": map[string]any{"$gt": 10}}, false},
		{"less or equal", query.Condition{"population", query.OpLessThanOrEqual, 10}, engine.Filter{"population": map[string]any{"$lte": 10}}, false},
		{"in", query.Condition{"name", query.OpIn, []string{"a", "b"}}, engine.Filter{"name": map[string]any{"$in": []any{"a", "b"}}}, false},
		{"in needs a list", query.Condition{"name", query.OpIn, "a"}, nil, true},
		{"exists", query.Condition{"name", query.OpExists, nil}, engine.Filter{"name": map[string]any{"$exists": true}}, false},
		{"not exists", query.Condition{"name", query.OpNotExists, nil}, engine.Filter{"name": map[string]any{"$exists": false}}, false},
		{"between", query.Condition{"population", query.OpBetween, []any{1, 5}}, engine.Filter{"population": map[string]any{"$gte": 1, "$lte": 5}}, false},
		{"between needs two bounds", query.Condition{"population", query.OpBetween, []any{1}}, nil, true},
		{"unknown operator", query.Condition{"name", query.Operator(99), nil}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.Filter()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicateBuilder(t *testing.T) {
	t.Run("empty matches everything", func(t *testing.T) {
		f, err := query.NewPredicateBuilder().Filter()
		require.NoError(t, err)
		assert.Equal(t, engine.Filter{}, f)
	})

	t.Run("and binds tighter than or", func(t *testing.T) {
		f, err := query.NewPredicateBuilder().
			And("a", query.OpEqual, 1).
			And("b", query.OpEqual, 2).
			Or("c", query.OpEqual, 3).
			And("d", query.OpEqual, 4).
			Filter()
		require.NoError(t, err)
		assert.Equal(t, engine.Filter{"$or": []any{
			engine.Filter{"$and": []any{engine.Filter{"a": 1}, engine.Filter{"b": 2}}},
			engine.Filter{"$and": []any{engine.Filter{"c": 3}, engine.Filter{"d": 4}}},
		}}, f)
	})

	t.Run("groups", func(t *testing.T) {
		f, err := query.NewPredicateBuilder().
			And("a", query.OpEqual, 1).
			OrGroup(func(pb *query.PredicateBuilder) {
				pb.And("b", query.OpEqual, 2).And("c", query.OpEqual, 3)
			}).
			Filter()
		require.NoError(t, err)
		assert.Equal(t, engine.Filter{"$and": []any{
			engine.Filter{"a": 1},
			engine.Filter{"$or": []any{engine.Filter{"b": 2}, engine.Filter{"c": 3}}},
		}}, f)
	})
}

func TestBuilder(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepository(t)
	seed(t, repo)

	t.Run("all", func(t *testing.T) {
		docs, err := repo.Query().
			Where("continent", query.OpEqual, "America").
			Where("population", query.OpGreaterThan, 20).
			OrWhere("name", query.OpEqual, "Denmark").
			OrderByDesc("population").
			All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Brazil", "Argentina", "Denmark"}, docNames(docs))
	})

	t.Run("first and count", func(t *testing.T) {
		q := repo.Query().WhereIn("continent", []any{"Europe", "Africa"}).OrderByAsc("name")
		first, err := q.First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Denmark", first.Get("name"))

		n, err := q.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		ok, err := repo.Query().Where("name", query.OpEqual, "Atlantis").Exists(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.Query().Where("name", query.OpEqual, "Atlantis").First(ctx)
		assert.ErrorIs(t, err, engine.ErrNotFound)
	})

	t.Run("between and paging", func(t *testing.T) {
		docs, err := repo.Query().
			WhereBetween("population", 10, 120).
			OrderByAsc("name").
			Offset(1).
			Limit(2).
			All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Chile", "Egypt"}, docNames(docs))
	})

	t.Run("paginate", func(t *testing.T) {
		page, err := repo.Query().OrderByAsc("name").Limit(2).Paginate(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)
		assert.Equal(t, int64(2), page.Skip)
		assert.Equal(t, []string{"Chile", "Denmark"}, docNames(page.Items))
	})

	t.Run("unknown field", func(t *testing.T) {
		q := repo.Query().Where("capital", query.OpEqual, "Paris").Where("name", query.OpEqual, "France")
		_, err := q.All(ctx)
		assert.ErrorIs(t, err, query.ErrUnknownField)
		assert.ErrorContains(t, q.Err(), `Country has no field "capital"`)
	})

	t.Run("dotted paths and identity", func(t *testing.T) {
		q := repo.Query().Where("cities.name", query.OpEqual, "Rosario").Where("_id", query.OpExists, nil)
		assert.NoError(t, q.Err())
	})

	t.Run("invalid direction", func(t *testing.T) {
		_, err := repo.Query().OrderBy("name", "sideways").All(ctx)
		assert.ErrorIs(t, err, query.ErrInvalidDirection)
	})

	t.Run("clone is independent", func(t *testing.T) {
		base := repo.Query().Where("continent", query.OpEqual, "America")
		narrowed := base.Clone().Where("population", query.OpLessThan, 20)

		n, err := base.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = narrowed.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestScopes(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepository(t)
	seed(t, repo)

	q := repo.Query().Scope(
		query.Since("population", 19),
		query.Recent("population", 3),
	)
	docs, err := q.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brazil", "Egypt", "Argentina"}, docNames(docs))
	assert.Equal(t, []string{"since", "recent"}, q.Scopes())

	docs, err = repo.Query().OrderByAsc("name").Scope(query.Paged(1, 2)).All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chile", "Denmark"}, docNames(docs))

	docs, err = repo.Query().Scope(query.Before("population", 10)).All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Denmark"}, docNames(docs))

	t.Run("registry", func(t *testing.T) {
		reg := query.NewScopeRegistry()
		reg.Register(query.Recent("population", 1))
		reg.Register(query.Paged(0, 10))
		reg.Register(query.Recent("name", 1))

		assert.Equal(t, []string{"recent", "paginate"}, reg.List())
		assert.True(t, reg.Has("recent"))

		s, err := reg.Get("recent")
		require.NoError(t, err)
		docs, err := repo.Query().Scope(s).All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Egypt"}, docNames(docs))

		_, err = reg.Get("archived")
		assert.ErrorIs(t, err, query.ErrUnknownScope)
	})
}
