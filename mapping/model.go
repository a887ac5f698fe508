// Package mapping describes how typed views map onto graph predicates and
// classes, and resolves views and properties against observed graph data.
//
// Mappings are built once into an immutable Set. A Repository publishes the
// current Set to concurrent sessions and swaps it atomically on rebuild.
package mapping

import (
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/vocabulary"
)

// TypeDescriptor names a typed view. Parents express assignability: a view is
// assignable to itself and to every ancestor.
type TypeDescriptor struct {
	name    string
	parents []*TypeDescriptor
}

// NewType declares a typed view deriving from parents.
func NewType(name string, parents ...*TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{name: name, parents: parents}
}

// Name returns the view name.
func (t *TypeDescriptor) Name() string { return t.name }

// Parents returns the direct parents.
func (t *TypeDescriptor) Parents() []*TypeDescriptor { return t.parents }

func (t *TypeDescriptor) String() string { return t.name }

// AssignableTo reports whether a view of type t can be used where other is
// expected. Every type is assignable to Resource.
func (t *TypeDescriptor) AssignableTo(other *TypeDescriptor) bool {
	if t == nil || other == nil {
		return false
	}
	if t == other || other == Resource {
		return true
	}
	for _, p := range t.parents {
		if p.AssignableTo(other) {
			return true
		}
	}
	return false
}

// ancestors returns t followed by every ancestor, parents before grandparents,
// without duplicates.
func (t *TypeDescriptor) ancestors() []*TypeDescriptor {
	seen := map[*TypeDescriptor]bool{}
	var out []*TypeDescriptor
	queue := []*TypeDescriptor{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, cur.parents...)
	}
	return out
}

// ValueKind is the expected value shape of a property.
type ValueKind int

// Value kinds.
const (
	KindAny ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindIRI
	KindEntity
)

var kindNames = map[ValueKind]string{
	KindAny:    "any",
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindTime:   "time",
	KindIRI:    "iri",
	KindEntity: "entity",
}

func (k ValueKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseValueKind parses a kind name as used in mapping files.
func ParseValueKind(s string) (ValueKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindAny, true
	}
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindAny, false
}

// GraphSelector picks the named graph a property's facts live in for a given
// entity. An empty result means the union of all graphs.
type GraphSelector interface {
	SelectGraph(id graph.EntityID) quad.IRI
}

// FixedGraph selects the same named graph for every entity.
type FixedGraph quad.IRI

// SelectGraph implements GraphSelector.
func (g FixedGraph) SelectGraph(graph.EntityID) quad.IRI { return quad.IRI(g) }

// EntityGraph selects a graph named after the entity itself, optionally with
// a suffix appended ("http://x/a" -> "http://x/a#graph").
type EntityGraph struct {
	Suffix string
}

// SelectGraph implements GraphSelector.
func (g EntityGraph) SelectGraph(id graph.EntityID) quad.IRI {
	if id.IsBlank() {
		return graph.DefaultGraph
	}
	return quad.IRI(id.IRI() + g.Suffix)
}

// PropertyMapping maps a view member to a predicate.
type PropertyMapping struct {
	// Name is the member name on the view.
	Name string

	// Predicate is the resolved predicate IRI.
	Predicate quad.IRI

	// Collection marks multi-valued members.
	Collection bool

	// Kind is the expected value shape.
	Kind ValueKind

	// Target is the expected view of referenced entities (KindEntity only).
	Target *TypeDescriptor

	// Graph restricts reads and writes to one named graph. Nil means the
	// union view for reads and the default graph for writes.
	Graph GraphSelector
}

// ShortName is the predicate's local name, used for bare-name lookups.
func (p PropertyMapping) ShortName() string {
	return vocabulary.LocalName(p.Predicate)
}

// TypeMapping binds a view to an rdf:type class used for discrimination.
type TypeMapping struct {
	Name  string
	Class quad.IRI
}

// EntityMapping is the resolved mapping for one view, including members and
// classes inherited from its ancestors.
type EntityMapping struct {
	Type       *TypeDescriptor
	Classes    []TypeMapping
	Properties []PropertyMapping

	classSet map[quad.IRI]struct{}
	byName   map[string]int
}

// Property looks up a member by name.
func (m *EntityMapping) Property(name string) (PropertyMapping, bool) {
	i, ok := m.byName[name]
	if !ok {
		return PropertyMapping{}, false
	}
	return m.Properties[i], true
}

// ClassIRIs returns the classes required by the view.
func (m *EntityMapping) ClassIRIs() []quad.IRI {
	out := make([]quad.IRI, 0, len(m.Classes))
	for _, c := range m.Classes {
		out = append(out, c.Class)
	}
	return out
}

// HasClass reports whether class is part of the view's class set.
func (m *EntityMapping) HasClass(class quad.IRI) bool {
	_, ok := m.classSet[class]
	return ok
}

// matches reports whether every required class is among observed.
func (m *EntityMapping) matches(observed map[quad.IRI]struct{}) bool {
	for c := range m.classSet {
		if _, ok := observed[c]; !ok {
			return false
		}
	}
	return true
}

// coveredBy reports whether m's class set is a subset of other's.
func (m *EntityMapping) coveredBy(other *EntityMapping) bool {
	return other.matches(m.classSet)
}

func (m *EntityMapping) index() {
	m.classSet = make(map[quad.IRI]struct{}, len(m.Classes))
	for _, c := range m.Classes {
		m.classSet[c.Class] = struct{}{}
	}
	m.byName = make(map[string]int, len(m.Properties))
	for i, p := range m.Properties {
		m.byName[p.Name] = i
	}
}

// Resource is the root view every entity can be read through. It carries the
// annotation properties shared by all resources.
var Resource = NewType("Resource")

func resourceMapping() *EntityMapping {
	m := &EntityMapping{
		Type: Resource,
		Properties: []PropertyMapping{
			{Name: "types", Predicate: vocabulary.RDFType, Collection: true, Kind: KindIRI},
			{Name: "label", Predicate: vocabulary.RDFSLabel, Kind: KindString},
			{Name: "comment", Predicate: vocabulary.RDFSComment, Kind: KindString},
			{Name: "sameAs", Predicate: vocabulary.OWLSameAs, Collection: true, Kind: KindEntity, Target: Resource},
			{Name: "prefLabel", Predicate: vocabulary.SKOSPrefLabel, Kind: KindString},
			{Name: "title", Predicate: vocabulary.DCTitle, Kind: KindString},
			{Name: "identifier", Predicate: vocabulary.DCIdentifier, Kind: KindString},
			{Name: "attributedTo", Predicate: vocabulary.ProvAttrib, Collection: true, Kind: KindEntity, Target: Resource},
		},
	}
	m.index()
	return m
}
