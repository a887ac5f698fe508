package mappingfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
	"github.com/c360studio/semmap/vocabulary/foaf"
)

const peopleYAML = `
namespaces:
  ex: http://example.com/schema#
entities:
  - type: Person
    parents: [Agent]
    classes: [foaf:Person]
    properties:
      - predicate: foaf:givenName
        kind: string
      - name: friends
        predicate: foaf:knows
        collection: true
        target: Person
      - predicate: ex:rating
        kind: float
        graph: "#meta"
      - predicate: <http://example.com/other#tag>
        graph: http://example.com/graphs/tags
`

const agentsYAML = `
entities:
  - type: Agent
    classes: [foaf:Agent]
    properties:
      - predicate: foaf:name
`

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuild(t *testing.T) {
	people, err := Parse([]byte(peopleYAML))
	require.NoError(t, err)
	agents, err := Parse([]byte(agentsYAML))
	require.NoError(t, err)

	registry, directives, err := Build(nil, nil, people, agents)
	require.NoError(t, err)
	set, err := mapping.NewSet(registry, directives...)
	require.NoError(t, err)

	person, ok := set.TypeByName("Person")
	require.True(t, ok)
	agent, ok := set.TypeByName("Agent")
	require.True(t, ok)
	assert.True(t, person.AssignableTo(agent))

	m, err := set.MappingFor(person)
	require.NoError(t, err)
	assert.True(t, m.HasClass(foaf.Person))
	assert.True(t, m.HasClass(foaf.Agent), "classes are inherited")

	friends, ok := m.Property("friends")
	require.True(t, ok)
	assert.Equal(t, foaf.Knows, friends.Predicate)
	assert.Equal(t, mapping.KindEntity, friends.Kind, "a target implies an entity kind")
	assert.Same(t, person, friends.Target)

	rating, ok := m.Property("rating")
	require.True(t, ok)
	assert.Equal(t, quad.IRI("http://example.com/schema#rating"), rating.Predicate)
	assert.Equal(t, quad.IRI("http://magi/people/Tomasz#meta"), rating.Graph.SelectGraph(graph.MustID("http://magi/people/Tomasz")))

	tag, ok := m.Property("tag")
	require.True(t, ok)
	assert.Equal(t, mapping.FixedGraph("http://example.com/graphs/tags"), tag.Graph)

	_, ok = m.Property("name")
	assert.True(t, ok, "members are inherited")
}

func TestBuild_KnownTypesAreShared(t *testing.T) {
	agent := mapping.NewType("Agent")
	people, err := Parse([]byte(peopleYAML))
	require.NoError(t, err)

	registry, directives, err := Build(nil, []*mapping.TypeDescriptor{agent}, people)
	require.NoError(t, err)
	require.Len(t, directives, 1)
	assert.Equal(t, []*mapping.TypeDescriptor{agent}, directives[0].Type.Parents())

	_, err = mapping.NewSet(registry, append(directives, mapping.EntityDirective{Type: agent})...)
	require.NoError(t, err)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown parent", "entities:\n  - type: A\n    parents: [Missing]\n"},
		{"cycle", "entities:\n  - type: A\n    parents: [B]\n  - type: B\n    parents: [A]\n"},
		{"duplicate type", "entities:\n  - type: A\n  - type: A\n"},
		{"missing type", "entities:\n  - classes: [foaf:Person]\n"},
		{"missing predicate", "entities:\n  - type: A\n    properties:\n      - name: x\n"},
		{"bad kind", "entities:\n  - type: A\n    properties:\n      - predicate: foaf:nick\n        kind: complex\n"},
		{"unknown target", "entities:\n  - type: A\n    properties:\n      - predicate: foaf:knows\n        target: B\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, _, err = Build(nil, nil, f)
			assert.ErrorIs(t, err, ErrInvalidFile)
			assert.ErrorIs(t, err, mapping.ErrMapping)
		})
	}

	_, err := Parse([]byte("entities: {"))
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestBuild_UnknownPrefixSurfacesAtResolution(t *testing.T) {
	f, err := Parse([]byte("entities:\n  - type: A\n    properties:\n      - predicate: nope:thing\n"))
	require.NoError(t, err)
	registry, directives, err := Build(nil, nil, f)
	require.NoError(t, err)

	_, err = mapping.NewSet(registry, directives...)
	assert.ErrorIs(t, err, mapping.ErrUnknownPrefix)
	assert.ErrorContains(t, err, "nope:thing")
}

func TestSource_GlobsAndApply(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "people.yaml", peopleYAML)
	write(t, dir, "nested/deeper/agents.yaml", agentsYAML)
	write(t, dir, "nested/notes.txt", "not a mapping")

	src := Source{Patterns: []string{filepath.Join(dir, "**", "*.yaml")}}
	files, err := src.Files()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	repo := mapping.NewRepository(nil)
	require.NoError(t, src.Apply(repo))
	_, ok := repo.Set().TypeByName("Person")
	assert.True(t, ok)

	_, _, err = Source{Patterns: []string{filepath.Join(dir, "*.json")}}.Load()
	assert.ErrorIs(t, err, ErrNoFiles)
}

// place writes a file next to its final path and renames it in, so the
// watcher sees one complete file.
func place(t *testing.T, dir, name, content string) {
	t.Helper()
	tmp := write(t, dir, name+".tmp", content)
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, name)))
}

// awaitRebuild reads rebuild outcomes until done accepts one.
func awaitRebuild(t *testing.T, w *Watcher, done func(error) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-w.Rebuilt():
			if done(err) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for a mapping rebuild")
		}
	}
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "agents.yaml", agentsYAML)
	src := Source{Patterns: []string{filepath.Join(dir, "*.yaml")}}
	repo := mapping.NewRepository(nil)
	require.NoError(t, src.Apply(repo))

	w, err := NewWatcher(src, repo, 20*time.Millisecond, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	place(t, dir, "people.yaml", peopleYAML)
	awaitRebuild(t, w, func(error) bool {
		_, ok := repo.Set().TypeByName("Person")
		return ok
	})

	before := repo.Set()
	place(t, dir, "broken.yaml", "entities:\n  - type: Person\n")
	awaitRebuild(t, w, func(err error) bool { return err != nil })
	assert.Same(t, before, repo.Set(), "a failed reload keeps the previous set")
}
