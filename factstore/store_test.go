package factstore

import (
	"sync"
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/vocabulary/foaf"
)

var (
	tomasz = graph.MustID("http://magi/people/Tomasz")
	karol  = graph.MustID("http://magi/people/Karol")
)

const metaGraph = quad.IRI("http://magi/graphs/meta")

func TestAssert_Idempotent(t *testing.T) {
	s := New(true)
	f := graph.NewFact(tomasz, foaf.GivenName, quad.String("Tomasz"))

	assert.True(t, s.Assert(f))
	assert.False(t, s.Assert(f))
	assert.Equal(t, 1, s.Count(tomasz, graph.DefaultGraph))

	added, _ := s.Pending()
	assert.Equal(t, []graph.Fact{f}, added)
}

func TestPartitions(t *testing.T) {
	s := New(false)
	f := graph.NewFact(tomasz, foaf.Nick, quad.String("Tomek"))
	s.Load(f, f.InGraph(metaGraph), graph.NewFact(tomasz, foaf.GivenName, quad.String("Tomasz")))

	assert.Equal(t, 2, s.Count(tomasz, graph.DefaultGraph))
	assert.Equal(t, 1, s.Count(tomasz, metaGraph))
	assert.Len(t, s.UnionFacts(tomasz), 3)
	assert.Equal(t, []quad.Value{quad.String("Tomek")}, s.Objects(tomasz, foaf.Nick), "union view dedupes objects")
	assert.Len(t, s.ObjectsIn(tomasz, foaf.GivenName, metaGraph), 0)
	assert.False(t, s.HasChanges(), "loads are not tracked")
}

func TestRollback_RestoresCommittedState(t *testing.T) {
	s := New(true)
	loaded := graph.NewFact(tomasz, foaf.GivenName, quad.String("Tomasz"))
	s.Load(loaded)

	added := graph.NewFact(tomasz, foaf.Knows, karol.Node())
	s.Assert(added)
	s.Retract(loaded)
	require.True(t, s.HasChanges())

	s.Rollback()
	assert.Equal(t, []graph.Fact{loaded}, s.UnionFacts(tomasz))
	assert.False(t, s.HasChanges())
}

func TestCommit_ClearsLogKeepsFacts(t *testing.T) {
	s := New(true)
	f := graph.NewFact(tomasz, foaf.Knows, karol.Node())
	s.Assert(f)
	s.Commit()

	assert.False(t, s.HasChanges())
	s.Rollback()
	assert.Equal(t, 1, s.Len(), "rollback after commit keeps committed facts")
}

func TestPending_Nets(t *testing.T) {
	s := New(true)
	a := graph.NewFact(tomasz, foaf.Nick, quad.String("a"))
	b := graph.NewFact(tomasz, foaf.Nick, quad.String("b"))
	s.Load(b)

	s.Assert(a)
	s.Retract(a)
	s.Retract(b)
	s.Assert(b)
	s.Retract(b)

	added, removed := s.Pending()
	assert.Empty(t, added)
	assert.Equal(t, []graph.Fact{b}, removed)
}

func TestTrackingDisabled(t *testing.T) {
	s := New(false)
	s.Assert(graph.NewFact(tomasz, foaf.Nick, quad.String("a")))
	assert.False(t, s.HasChanges())

	s.SetTracking(true)
	assert.True(t, s.Tracking())
	s.Assert(graph.NewFact(tomasz, foaf.Nick, quad.String("b")))
	assert.True(t, s.HasChanges())
}

func TestRetractSubjectAndReferences(t *testing.T) {
	s := New(true)
	s.Load(
		graph.NewFact(karol, foaf.GivenName, quad.String("Karol")),
		graph.NewFact(karol, foaf.Nick, quad.String("K")).InGraph(metaGraph),
		graph.NewFact(tomasz, foaf.Knows, karol.Node()),
	)

	refs := s.ReferencesTo(karol)
	assert.Equal(t, []graph.Fact{graph.NewFact(tomasz, foaf.Knows, karol.Node())}, refs)

	removed := s.RetractSubject(karol)
	assert.Len(t, removed, 2)
	assert.Empty(t, s.UnionFacts(karol))
	_, pending := s.Pending()
	assert.Len(t, pending, 2)
}

func TestReferencesTo_IRIsAsWritten(t *testing.T) {
	tests := []struct {
		name   string
		object string
		target string
	}{
		{"non-ascii", "http://magi/people/Łukasz", "http://magi/people/Łukasz"},
		{"space", "http://magi/people/Jan Kowalski", "http://magi/people/Jan Kowalski"},
		{"case of host", "http://MAGI/people/Łukasz", "http://magi/people/Łukasz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(false)
			ref := graph.NewFact(tomasz, foaf.Knows, quad.IRI(tt.object))
			s.Load(ref)

			target := graph.MustID(tt.target)
			assert.Equal(t, []graph.Fact{ref}, s.ReferencesTo(target))
			for _, f := range s.ReferencesTo(target) {
				assert.True(t, s.Retract(f))
			}
			assert.Empty(t, s.ReferencesTo(target))
		})
	}
}

func TestLanguages(t *testing.T) {
	s := New(false)
	s.Load(
		graph.NewFact(tomasz, foaf.Name, quad.LangString{Value: "Tomasz", Lang: "pl"}),
		graph.NewFact(karol, foaf.Name, quad.LangString{Value: "Charles", Lang: "en"}),
		graph.NewFact(karol, foaf.Nick, quad.String("K")),
	)
	assert.Equal(t, []string{"en", "pl"}, s.Languages())
	assert.Equal(t, []graph.EntityID{tomasz, karol}, s.Subjects())
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	s := New(false)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			s.Assert(graph.NewFact(tomasz, foaf.Age, quad.TypedString{Value: quad.String(string(rune('a' + i%26))), Type: "x"}))
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			_ = s.UnionFacts(tomasz)
			_ = s.Len()
		}
	}()
	wg.Wait()
	assert.Equal(t, 26, s.Count(tomasz, graph.DefaultGraph))
}
