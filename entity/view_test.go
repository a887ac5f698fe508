package entity

import (
	"context"
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semmap/convert"
	"github.com/c360studio/semmap/factstore"
	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
	"github.com/c360studio/semmap/vocabulary"
	"github.com/c360studio/semmap/vocabulary/foaf"
)

func TestView_BareNameAmbiguity(t *testing.T) {
	loader := newFakeLoader(
		graph.NewFact(tomasz, foaf.GivenName, quad.String("Tomasz")),
		graph.NewFact(tomasz, quad.IRI(dummyNS+"nick"), quad.String("Tomek")),
		graph.NewFact(tomasz, foaf.Nick, quad.String("Tomek2")),
	)
	c := newTestCache(t, loader)
	v, err := c.MaterializeAs(context.Background(), c.GetOrCreate(tomasz, false), mapping.Resource)
	require.NoError(t, err)

	_, err = v.Get("nick")
	var ambiguous *mapping.AmbiguousPropertyError
	require.ErrorAs(t, err, &ambiguous)
	assert.Contains(t, err.Error(), "foaf:nick")
	assert.Contains(t, err.Error(), "dummy:nick")

	name, err := v.String("givenName")
	require.NoError(t, err)
	assert.Equal(t, "Tomasz", name)

	_, err = v.Get("shoeSize")
	assert.ErrorIs(t, err, mapping.ErrUnknownProperty)
}

func TestView_MissingValue(t *testing.T) {
	c := newTestCache(t, newFakeLoader(graph.NewFact(tomasz, foaf.GivenName, quad.String("Tomasz"))))
	v, err := c.MaterializeAs(context.Background(), c.GetOrCreate(tomasz, false), foafVocab)
	require.NoError(t, err)

	got, err := v.Get("familyName")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestView_Refs(t *testing.T) {
	loader := newFakeLoader(
		graph.NewFact(tomasz, graph.RDFType, foaf.Person),
		graph.NewFact(tomasz, graph.RDFType, foaf.Agent),
		graph.NewFact(tomasz, foaf.Knows, karol.Node()),
		graph.NewFact(tomasz, foaf.GivenName, quad.String("Tomasz")),
		graph.NewFact(karol, graph.RDFType, foaf.Person),
		graph.NewFact(karol, graph.RDFType, foaf.Agent),
		graph.NewFact(karol, foaf.GivenName, quad.String("Karol")),
	)
	c := newTestCache(t, loader)
	ctx := context.Background()
	v, err := c.MaterializeAs(ctx, c.GetOrCreate(tomasz, false), personType)
	require.NoError(t, err)

	friends, err := v.Refs(ctx, "friends")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, karol, friends[0].ID())
	assert.Same(t, personType, friends[0].Type())

	again, err := v.Ref(ctx, "friends")
	require.NoError(t, err)
	assert.Same(t, friends[0].Entity(), again.Entity(), "references share the identity map")

	name, err := friends[0].String("givenName")
	require.NoError(t, err)
	assert.Equal(t, "Karol", name)

	_, err = v.Refs(ctx, "givenName")
	assert.ErrorIs(t, err, ErrNotReference)
}

func TestView_SetAndAddTracked(t *testing.T) {
	c := newTestCache(t, newFakeLoader(
		graph.NewFact(tomasz, graph.RDFType, foaf.Person),
		graph.NewFact(tomasz, graph.RDFType, foaf.Agent),
		graph.NewFact(tomasz, foaf.GivenName, quad.String("Tomasz")),
	))
	ctx := context.Background()
	v, err := c.MaterializeAs(ctx, c.GetOrCreate(tomasz, false), personType)
	require.NoError(t, err)

	require.NoError(t, v.Set("givenName", "Tomek"))
	require.NoError(t, v.Add("friends", karol))
	require.NoError(t, v.Set("age", 30))

	got, err := v.String("givenName")
	require.NoError(t, err)
	assert.Equal(t, "Tomek", got)

	age, err := v.Get("age")
	require.NoError(t, err)
	assert.Equal(t, int64(30), age)
	assert.Equal(t, 1, c.Facts().Count(tomasz, "http://magi/people/Tomasz#meta"), "age lives in the entity graph")

	added, removed := c.Facts().Pending()
	assert.Len(t, added, 3)
	assert.Equal(t, []graph.Fact{graph.NewFact(tomasz, foaf.GivenName, quad.String("Tomasz"))}, removed)

	require.NoError(t, v.Remove("friends", karol))
	friends, err := v.GetAll("friends")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestView_LanguagePreference(t *testing.T) {
	lang := "pl"
	c := NewCache(Config{
		Facts:    factstore.New(true),
		Mappings: testMappings(t),
		Language: func() string { return lang },
		Loader: newFakeLoader(
			graph.NewFact(tomasz, foaf.GivenName, quad.LangString{Value: "Thomas", Lang: "en"}),
			graph.NewFact(tomasz, foaf.GivenName, quad.LangString{Value: "Tomasz", Lang: "pl"}),
		),
		Converter: convert.NewFallback(),
	})
	v, err := c.MaterializeAs(context.Background(), c.GetOrCreate(tomasz, false), foafVocab)
	require.NoError(t, err)

	got, err := v.String("givenName")
	require.NoError(t, err)
	assert.Equal(t, "Tomasz", got)

	lang = "en"
	got, err = v.String("givenName")
	require.NoError(t, err)
	assert.Equal(t, "Thomas", got)

	require.NoError(t, v.Set("familyName", "Pluskiewicz"))
	nodes, err := v.Nodes("familyName")
	require.NoError(t, err)
	assert.Equal(t, []quad.Value{quad.LangString{Value: "Pluskiewicz", Lang: "en"}}, nodes)
}

func TestView_TypesAndIs(t *testing.T) {
	c := newTestCache(t, newFakeLoader(graph.NewFact(tomasz, graph.RDFType, foaf.Agent)))
	v, err := c.MaterializeAs(context.Background(), c.GetOrCreate(tomasz, false), mapping.Resource)
	require.NoError(t, err)

	assert.True(t, v.Is(foaf.Agent))
	assert.False(t, v.Is(foaf.Group), "undefined class is simply absent")

	require.NoError(t, v.AddType(foaf.Person))
	promoted, err := v.As(context.Background(), agentType)
	require.NoError(t, err)
	assert.Same(t, personType, promoted.Type())
}

func TestView_ResourceAnnotations(t *testing.T) {
	c := newTestCache(t, newFakeLoader(
		graph.NewFact(tomasz, vocabulary.SKOSPrefLabel, quad.String("Tomek")),
		graph.NewFact(tomasz, vocabulary.DCTitle, quad.String("Dr")),
		graph.NewFact(tomasz, vocabulary.DCIdentifier, quad.String("magi-1")),
		graph.NewFact(tomasz, vocabulary.ProvAttrib, karol.Node()),
	))
	ctx := context.Background()
	v, err := c.MaterializeAs(ctx, c.GetOrCreate(tomasz, false), mapping.Resource)
	require.NoError(t, err)

	for name, want := range map[string]string{"prefLabel": "Tomek", "title": "Dr", "identifier": "magi-1"} {
		got, err := v.String(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	refs, err := v.Refs(ctx, "attributedTo")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, karol, refs[0].ID())
}
