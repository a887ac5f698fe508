package session

import (
	"context"
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semmap/entity"
	"github.com/c360studio/semmap/factstore"
	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
	"github.com/c360studio/semmap/query"
	"github.com/c360studio/semmap/store"
	"github.com/c360studio/semmap/store/memstore"
	"github.com/c360studio/semmap/vocabulary/foaf"
)

// scriptedSource answers every entity query with the same rows.
type scriptedSource struct {
	*memstore.Store
	rows    []store.EntityFact
	queries int
}

func (s *scriptedSource) ExecuteEntityQuery(context.Context, *query.Query) ([]store.EntityFact, error) {
	s.queries++
	return s.rows, nil
}

func row(id graph.EntityID, p quad.IRI, o quad.Value) store.EntityFact {
	return store.EntityFact{EntityID: id, Fact: graph.NewFact(id, p, o)}
}

func newExecutor(t *testing.T, source store.Source) (*Executor, *entity.Cache) {
	t.Helper()
	cache := entity.NewCache(entity.Config{
		Facts:    factstore.New(true),
		Mappings: testMappings(t),
		Loader:   source,
	})
	return NewExecutor(source, cache, nil), cache
}

func TestExecuteCollection_FirstSeenSubjectOrder(t *testing.T) {
	s1 := graph.MustID("http://example.com/S1")
	s2 := graph.MustID("http://example.com/S2")
	s3 := graph.MustID("http://example.com/S3")
	source := &scriptedSource{Store: memstore.New(), rows: []store.EntityFact{
		row(s3, graph.RDFType, foaf.Person),
		row(s1, graph.RDFType, foaf.Person),
		row(s3, foaf.GivenName, quad.String("three")),
		row(s2, graph.RDFType, foaf.Person),
		row(s1, foaf.GivenName, quad.String("one")),
		row(s3, foaf.Nick, quad.String("drei")),
	}}
	x, cache := newExecutor(t, source)

	results, err := x.ExecuteCollection(query.From(personType))
	require.NoError(t, err)
	views, err := results.All(context.Background())
	require.NoError(t, err)

	var ids []graph.EntityID
	for _, v := range views {
		ids = append(ids, v.ID())
		assert.Equal(t, personType, v.Type())
	}
	assert.Equal(t, []graph.EntityID{s3, s1, s2}, ids)
	assert.Equal(t, 3, cache.Facts().Count(s3, graph.DefaultGraph))
	assert.False(t, cache.Facts().HasChanges(), "query results are not changes")
}

func TestResults_EnumerationRerunsQuery(t *testing.T) {
	ctx := context.Background()
	source := &scriptedSource{Store: memstore.New(), rows: []store.EntityFact{row(karol, graph.RDFType, foaf.Person)}}
	x, _ := newExecutor(t, source)

	results, err := x.ExecuteCollection(query.From(personType))
	require.NoError(t, err)
	assert.Zero(t, source.queries, "translation does not touch the store")

	first, err := results.All(ctx)
	require.NoError(t, err)
	second, err := results.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, source.queries)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Same(t, first[0].Entity(), second[0].Entity())
}

func TestExecuteSingle(t *testing.T) {
	ctx := context.Background()
	x, _ := newExecutor(t, memstore.New(testFacts()...))
	byName := func(name string) query.Model {
		return query.From(personType).Where(query.Eq(query.Path("givenName"), query.Val(name)))
	}

	v, err := x.ExecuteSingle(ctx, byName("Karol"), false)
	require.NoError(t, err)
	assert.Equal(t, karol, v.ID())

	_, err = x.ExecuteSingle(ctx, byName("Nobody"), false)
	assert.ErrorIs(t, err, ErrNoResults)
	assert.ErrorIs(t, err, ErrCardinality)

	v, err = x.ExecuteSingle(ctx, byName("Nobody"), true)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = x.ExecuteSingle(ctx, query.From(personType), false)
	assert.ErrorIs(t, err, ErrMultipleResults)
	_, err = x.ExecuteSingle(ctx, query.From(personType), true)
	assert.ErrorIs(t, err, ErrMultipleResults, "a default never hides extra results")

	v, err = x.ExecuteSingle(ctx, query.From(personType).First(), false)
	require.NoError(t, err)
	assert.Equal(t, tomasz, v.ID())
}

func TestExecute_CastIsCheckedLazily(t *testing.T) {
	ctx := context.Background()
	x, _ := newExecutor(t, memstore.New(testFacts()...))

	results, err := x.ExecuteCollection(query.From(mapping.Resource).Where(query.Is(personType)).Cast(personType))
	require.NoError(t, err)
	views, err := results.All(ctx)
	require.NoError(t, err)
	assert.Len(t, views, 3)

	results, err = x.ExecuteCollection(query.From(personType).Cast(groupType))
	require.NoError(t, err, "a cast is not a translation error")

	var seen int
	for _, err := range results.Iter(ctx) {
		if err != nil {
			assert.ErrorIs(t, err, ErrCast)
			break
		}
		seen++
	}
	assert.Zero(t, seen)
}

func TestExecute_FormMismatch(t *testing.T) {
	ctx := context.Background()
	x, _ := newExecutor(t, memstore.New(testFacts()...))

	_, err := x.ExecuteCollection(query.From(personType).Count())
	assert.ErrorIs(t, err, query.ErrTranslation)
	_, err = x.ExecuteScalar(ctx, query.From(personType))
	assert.ErrorIs(t, err, query.ErrTranslation)
	_, err = x.ExecuteAsk(ctx, query.From(personType).Count())
	assert.ErrorIs(t, err, query.ErrTranslation)

	n, err := x.ExecuteScalar(ctx, query.From(personType).Count())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	ok, err := x.ExecuteAsk(ctx, query.From(personType).Any())
	require.NoError(t, err)
	assert.True(t, ok)
}
