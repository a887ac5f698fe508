package session

import (
	"context"
	"errors"
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semmap/entity"
	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
	"github.com/c360studio/semmap/query"
	"github.com/c360studio/semmap/store"
	"github.com/c360studio/semmap/store/memstore"
	"github.com/c360studio/semmap/vocabulary"
	"github.com/c360studio/semmap/vocabulary/foaf"
)

const dummyNS = "http://example.com/dummy#"

var (
	personType = mapping.NewType("Person")
	groupType  = mapping.NewType("Group")
	foafVocab  = mapping.NewType("FOAF")
	dummyVocab = mapping.NewType("Dummy")

	tomasz  = graph.MustID("http://magi/people/Tomasz")
	karol   = graph.MustID("http://magi/people/Karol")
	gniewko = graph.MustID("http://magi/people/Gniewko")
	address = graph.BlankID("addr")

	dummyNick    = quad.IRI(dummyNS + "nick")
	dummyAddress = quad.IRI(dummyNS + "address")
	dummyCity    = quad.IRI(dummyNS + "city")
)

func testMappings(t *testing.T) *mapping.Set {
	t.Helper()
	reg := vocabulary.DefaultRegistry().With(vocabulary.Namespace{Prefix: "dummy", IRI: dummyNS})
	s, err := mapping.NewSet(reg,
		mapping.EntityDirective{
			Type:    personType,
			Classes: []mapping.ClassDirective{{Prefix: "foaf", Local: "Person"}},
			Properties: []mapping.PropertyDirective{
				{Prefix: "foaf", Local: "givenName", Kind: mapping.KindString},
				{Prefix: "foaf", Local: "age", Kind: mapping.KindInt},
				{Member: "friends", Prefix: "foaf", Local: "knows", Collection: true, Kind: mapping.KindEntity, Target: personType},
			},
		},
		mapping.EntityDirective{
			Type:    groupType,
			Classes: []mapping.ClassDirective{{Prefix: "foaf", Local: "Group"}},
		},
		mapping.EntityDirective{
			Type: foafVocab,
			Properties: []mapping.PropertyDirective{
				{Prefix: "foaf", Local: "givenName"},
				{Prefix: "foaf", Local: "nick"},
			},
		},
		mapping.EntityDirective{
			Type:       dummyVocab,
			Properties: []mapping.PropertyDirective{{Prefix: "dummy", Local: "nick"}},
		},
	)
	require.NoError(t, err)
	return s
}

func testFacts() []graph.Fact {
	return []graph.Fact{
		graph.NewFact(tomasz, graph.RDFType, foaf.Person),
		graph.NewFact(tomasz, foaf.GivenName, quad.String("Tomasz")),
		graph.NewFact(tomasz, dummyNick, quad.String("Tomek")),
		graph.NewFact(tomasz, foaf.Nick, quad.String("Tomek2")),
		graph.NewFact(tomasz, foaf.Knows, karol.Node()),
		graph.NewFact(tomasz, dummyAddress, address.Node()),
		graph.NewFact(address, dummyCity, quad.String("Warsaw")),
		graph.NewFact(karol, graph.RDFType, foaf.Person),
		graph.NewFact(karol, foaf.GivenName, quad.String("Karol")),
		graph.NewFact(gniewko, graph.RDFType, foaf.Person),
		graph.NewFact(gniewko, foaf.GivenName, quad.String("Gniewko")),
		graph.NewFact(gniewko, foaf.Knows, tomasz.Node()),
	}
}

func newSession(t *testing.T, st store.Store) *Session {
	t.Helper()
	if st == nil {
		st = memstore.New(testFacts()...)
	}
	s, err := New(Config{Store: st, Mappings: testMappings(t), BaseURI: StaticBaseURI("http://magi/people/")})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestLoad_IdentityStable(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, nil)

	a, err := s.Load(ctx, tomasz, nil)
	require.NoError(t, err)
	b, err := s.Load(ctx, tomasz, personType)
	require.NoError(t, err)
	assert.Same(t, a.Entity(), b.Entity())
	assert.Equal(t, personType, a.Type(), "most derived view of a foaf:Person")

	results, err := s.Query(query.From(personType).Where(query.Eq(query.Path("givenName"), query.Val("Tomasz"))))
	require.NoError(t, err)
	views, err := results.All(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Same(t, a.Entity(), views[0].Entity())
}

func TestLoad_RelativeIdentifiers(t *testing.T) {
	ctx := context.Background()

	s := newSession(t, nil)
	v, err := s.Load(ctx, graph.MustID("Karol"), personType)
	require.NoError(t, err)
	assert.Equal(t, karol, v.ID())

	bare, err := New(Config{Store: memstore.New(), Mappings: testMappings(t)})
	require.NoError(t, err)
	_, err = bare.Load(ctx, graph.MustID("Karol"), nil)
	assert.ErrorIs(t, err, ErrNoBaseURI)
	assert.ErrorIs(t, err, graph.ErrRelativeID)
	assert.Contains(t, err.Error(), "Karol")
}

func TestLoad_ResourceResolverShortCircuits(t *testing.T) {
	ctx := context.Background()
	external := newSession(t, nil)
	supplied, err := external.Load(ctx, karol, personType)
	require.NoError(t, err)

	s, err := New(Config{
		Store:    memstore.New(),
		Mappings: testMappings(t),
		Resolver: ResourceResolverFunc(func(_ context.Context, id graph.EntityID) (*entity.View, error) {
			if id == karol {
				return supplied, nil
			}
			return nil, nil
		}),
	})
	require.NoError(t, err)

	v, err := s.Load(ctx, karol, nil)
	require.NoError(t, err)
	assert.Same(t, supplied, v)
	_, known := lookup(s, karol)
	assert.False(t, known, "resolved entities bypass the identity map")

	_, err = s.Load(ctx, tomasz, nil)
	require.NoError(t, err)
	_, known = lookup(s, tomasz)
	assert.True(t, known)
}

func lookup(s *Session, id graph.EntityID) (*entity.Entity, bool) {
	for _, e := range s.Entities() {
		if e.ID() == id {
			return e, true
		}
	}
	return nil, false
}

func TestBareNameResolution(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, nil)

	v, err := s.Load(ctx, tomasz, nil)
	require.NoError(t, err)

	_, err = v.Get("nick")
	var ambiguous *mapping.AmbiguousPropertyError
	require.ErrorAs(t, err, &ambiguous)
	assert.ElementsMatch(t, []string{"foaf:nick", "dummy:nick"}, ambiguous.Candidates)
	assert.Contains(t, err.Error(), "foaf:nick")
	assert.Contains(t, err.Error(), "dummy:nick")

	name, err := v.String("givenName")
	require.NoError(t, err)
	assert.Equal(t, "Tomasz", name)
}

func TestQuery_TwoHop(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, nil)

	results, err := s.Query(query.From(personType).Where(query.Eq(query.Path("friends", "givenName"), query.Val("Karol"))))
	require.NoError(t, err)
	assert.Equal(t, []query.Var{query.SubjectVar}, results.Query().Projection)

	views, err := results.All(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, tomasz, views[0].ID())

	friends, err := views[0].Refs(ctx, "friends")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	name, err := friends[0].String("givenName")
	require.NoError(t, err)
	assert.Equal(t, "Karol", name)
}

func TestCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New(testFacts()...)
	s := newSession(t, backend)

	v, err := s.Load(ctx, karol, personType)
	require.NoError(t, err)
	require.NoError(t, v.Set("givenName", "Karolek"))
	assert.True(t, s.HasChanges())

	changes := s.Changes()
	assert.Equal(t, []graph.Fact{graph.NewFact(karol, foaf.GivenName, quad.String("Karolek"))}, changes.Added)
	assert.Equal(t, []graph.Fact{graph.NewFact(karol, foaf.GivenName, quad.String("Karol"))}, changes.Removed)

	require.NoError(t, s.Commit(ctx))
	assert.False(t, s.HasChanges())
	stored, err := backend.LoadEntity(ctx, karol)
	require.NoError(t, err)
	assert.Contains(t, stored, graph.NewFact(karol, foaf.GivenName, quad.String("Karolek")))

	require.NoError(t, v.Set("givenName", "Speculative"))
	s.Rollback()
	assert.False(t, s.HasChanges())
	name, err := v.String("givenName")
	require.NoError(t, err)
	assert.Equal(t, "Karolek", name, "views survive commit and rollback")
}

func TestCreate_DoesNotPullFacts(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, nil)

	v, err := s.Create(ctx, karol, nil)
	require.NoError(t, err)
	assert.Empty(t, v.Types())
	assert.Equal(t, entity.Initialized, v.Entity().State())

	fresh := graph.MustID("http://magi/people/Nowak")
	n, err := s.Create(ctx, fresh, nil)
	require.NoError(t, err)
	require.NoError(t, n.AddType(foaf.Person))
	p, err := n.As(ctx, personType)
	require.NoError(t, err)
	require.NoError(t, p.Set("givenName", "Jan"))

	changes := s.Changes()
	assert.Len(t, changes.Added, 2)
	assert.Equal(t, []graph.EntityID{fresh}, changes.Subjects())
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name           string
		behavior       DeleteBehavior
		removedBlank   bool
		removedInbound bool
	}{
		{"subject only", DeleteSubject, false, false},
		{"blank children", DeleteBlankChildren, true, false},
		{"references", DeleteReferences, false, true},
		{"both", DeleteBlankChildren | DeleteReferences, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newSession(t, nil)
			_, err := s.Load(ctx, gniewko, personType)
			require.NoError(t, err)
			v, err := s.Load(ctx, tomasz, personType)
			require.NoError(t, err)

			require.NoError(t, s.Delete(ctx, tomasz, tt.behavior))

			assert.True(t, v.Entity().IsDeleted())
			_, err = v.Get("givenName")
			assert.ErrorIs(t, err, entity.ErrDeleted)
			assert.Empty(t, s.Facts().UnionFacts(tomasz))
			assert.Equal(t, tt.removedBlank, len(s.Facts().UnionFacts(address)) == 0)
			assert.Equal(t, tt.removedInbound, len(s.Facts().ReferencesTo(tomasz)) == 0)
			assert.Contains(t, s.Changes().DeletedEntities, tomasz)

			deleted, err := s.Load(ctx, tomasz, personType)
			require.NoError(t, err, "deleted entities are still returned")
			assert.Same(t, v.Entity(), deleted.Entity())
			_, err = deleted.Get("givenName")
			assert.ErrorIs(t, err, entity.ErrDeleted)
			assert.Empty(t, deleted.Types())
			friends, err := s.Load(ctx, gniewko, personType)
			require.NoError(t, err)
			refs, err := friends.Refs(ctx, "friends")
			if tt.removedInbound {
				require.NoError(t, err)
				assert.Empty(t, refs)
			} else {
				require.NoError(t, err)
				require.Len(t, refs, 1)
				assert.True(t, refs[0].Entity().IsDeleted())
			}

			s.Rollback()
			assert.False(t, v.Entity().IsDeleted())
			name, err := v.String("givenName")
			require.NoError(t, err)
			assert.Equal(t, "Tomasz", name)
			assert.Len(t, s.Facts().ReferencesTo(tomasz), 1)
		})
	}
}

func TestIRIsAsWritten(t *testing.T) {
	tests := []struct {
		name     string
		relative string
		given    string
	}{
		{"non-ascii", "Łukasz", "Łukasz"},
		{"space", "Jan Kowalski", "Jan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			friend := graph.MustID("http://magi/people/" + tt.relative)
			facts := append(testFacts(),
				graph.NewFact(friend, graph.RDFType, foaf.Person),
				graph.NewFact(friend, foaf.GivenName, quad.String(tt.given)),
				graph.NewFact(tomasz, foaf.Knows, quad.IRI("http://magi/people/"+tt.relative)),
			)
			s := newSession(t, memstore.New(facts...))

			results, err := s.Query(query.From(personType).Where(query.Eq(query.Path("friends", "givenName"), query.Val(tt.given))))
			require.NoError(t, err)
			views, err := results.All(ctx)
			require.NoError(t, err)
			require.Len(t, views, 1)
			assert.Equal(t, tomasz, views[0].ID())

			loaded, err := s.Load(ctx, graph.MustID(tt.relative), personType)
			require.NoError(t, err)
			assert.Equal(t, friend, loaded.ID())
			friends, err := views[0].Refs(ctx, "friends")
			require.NoError(t, err)
			assert.ElementsMatch(t, []graph.EntityID{karol, friend}, idsOf(friends))

			require.NoError(t, s.Delete(ctx, friend, DeleteReferences))
			assert.Empty(t, s.Facts().ReferencesTo(friend))
			friends, err = views[0].Refs(ctx, "friends")
			require.NoError(t, err)
			assert.Equal(t, []graph.EntityID{karol}, idsOf(friends))
		})
	}
}

func idsOf(views []*entity.View) []graph.EntityID {
	out := make([]graph.EntityID, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID())
	}
	return out
}

func TestDelete_SkippedByQueries(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, nil)
	require.NoError(t, s.Delete(ctx, karol, DeleteSubject))

	results, err := s.Query(query.From(personType))
	require.NoError(t, err)
	views, err := results.All(ctx)
	require.NoError(t, err)
	var ids []graph.EntityID
	for _, v := range views {
		ids = append(ids, v.ID())
	}
	assert.Equal(t, []graph.EntityID{tomasz, gniewko}, ids)
}

func TestExistsCountAny(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, nil)

	ok, err := s.Exists(ctx, karol)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Exists(ctx, graph.MustID("Nobody"))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx, query.From(personType))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ok, err = s.Any(ctx, query.From(groupType))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountAny_AfterPaging(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, nil)
	people := query.From(personType)

	tests := []struct {
		name  string
		model query.Model
		count int64
		any   bool
	}{
		{"skip past the end", people.Skip(10), 0, false},
		{"skip some", people.Skip(2), 1, true},
		{"take none", people.Take(0), 0, false},
		{"take some", people.Take(2), 2, true},
		{"page", people.Skip(1).Take(5), 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.Count(ctx, tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.count, n)

			ok, err := s.Any(ctx, tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.any, ok)
		})
	}
}

type failingStore struct {
	*memstore.Store
}

func (failingStore) Commit(context.Context, store.ChangeSet) error {
	return errors.New("connection reset")
}

func TestCommit_StoreErrorKeepsChanges(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, failingStore{memstore.New(testFacts()...)})
	v, err := s.Load(ctx, karol, personType)
	require.NoError(t, err)
	require.NoError(t, v.Set("givenName", "K"))

	err = s.Commit(ctx)
	assert.ErrorContains(t, err, "connection reset")
	assert.True(t, s.HasChanges())
}

func TestUntrackedChanges(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, nil)
	s.SetTrackChanges(false)
	assert.False(t, s.TrackChanges())

	v, err := s.Load(ctx, karol, personType)
	require.NoError(t, err)
	require.NoError(t, v.Set("givenName", "K"))
	assert.False(t, s.HasChanges())
}

func TestLanguages(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, memstore.New(
		graph.NewFact(karol, foaf.GivenName, quad.LangString{Value: "Karol", Lang: "pl"}),
		graph.NewFact(karol, foaf.GivenName, quad.LangString{Value: "Charles", Lang: "en"}),
	))
	v, err := s.Load(ctx, karol, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "pl"}, s.Languages())

	s.SetLanguage("pl")
	name, err := v.String("givenName")
	require.NoError(t, err)
	assert.Equal(t, "Karol", name)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Load(ctx, karol, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Query(query.From(personType))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Commit(ctx), ErrClosed)
}
