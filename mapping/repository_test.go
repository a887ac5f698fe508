package mapping

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semmap/graph"
)

func mustID(t *testing.T, iri string) graph.EntityID {
	t.Helper()
	id, err := graph.NewID(iri)
	require.NoError(t, err)
	return id
}

func TestRepository_Rebuild(t *testing.T) {
	r := NewRepository(nil)
	before := r.Set()

	_, err := r.MappingFor(personType)
	assert.ErrorIs(t, err, ErrNoMapping)

	err = r.Rebuild(testRegistry(), EntityDirective{
		Type:    personType,
		Classes: []ClassDirective{{Prefix: "foaf", Local: "Person"}},
	})
	require.NoError(t, err)

	_, err = r.MappingFor(personType)
	assert.NoError(t, err)

	_, err = before.MappingFor(personType)
	assert.ErrorIs(t, err, ErrNoMapping, "old snapshot is untouched")
}

func TestRepository_FailedRebuildKeepsSet(t *testing.T) {
	r := NewRepository(nil)
	require.NoError(t, r.Rebuild(testRegistry(), EntityDirective{Type: personType}))
	current := r.Set()

	err := r.Rebuild(testRegistry(), EntityDirective{
		Type:       dummyType,
		Properties: []PropertyDirective{{Prefix: "nope", Local: "x"}},
	})
	assert.ErrorIs(t, err, ErrUnknownPrefix)
	assert.Same(t, current, r.Set())
}

func TestRepository_ConcurrentReaders(t *testing.T) {
	r := NewRepository(nil)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if i%2 == 0 {
					_ = r.Rebuild(testRegistry(), EntityDirective{Type: personType})
					continue
				}
				_, err := r.Set().MappingFor(Resource)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestGlobal(t *testing.T) {
	ResetGlobal()
	defer ResetGlobal()

	custom := NewRepository(nil)
	InitGlobal(custom)
	assert.Same(t, custom, Global())
	assert.Same(t, Global(), Global())
}
