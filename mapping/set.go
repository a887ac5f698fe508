package mapping

import (
	"fmt"
	"slices"

	"github.com/cayleygraph/quad"

	"github.com/c360studio/semmap/vocabulary"
)

// PropertyDirective is an unresolved property mapping as produced by a
// mapping source. Either IRI or Prefix and Local name the predicate.
type PropertyDirective struct {
	Member     string
	Prefix     string
	Local      string
	IRI        quad.IRI
	Collection bool
	Kind       ValueKind
	Target     *TypeDescriptor
	Graph      GraphSelector
}

// ClassDirective is an unresolved rdf:type class mapping.
type ClassDirective struct {
	Member string
	Prefix string
	Local  string
	IRI    quad.IRI
}

// EntityDirective collects the directives declared directly on one view.
// Members and classes of parent views are inherited when the Set is built.
type EntityDirective struct {
	Type       *TypeDescriptor
	Classes    []ClassDirective
	Properties []PropertyDirective
}

// Set is an immutable, fully resolved collection of view mappings. It also
// carries the namespace registry used to resolve and print predicates.
type Set struct {
	registry *vocabulary.Registry
	mappings map[*TypeDescriptor]*EntityMapping
	order    []*TypeDescriptor
	byName   map[string]*TypeDescriptor
}

// NewSet resolves directives against registry and flattens inheritance.
// The built-in Resource view is always present.
func NewSet(registry *vocabulary.Registry, directives ...EntityDirective) (*Set, error) {
	if registry == nil {
		registry = vocabulary.DefaultRegistry()
	}
	s := &Set{
		registry: registry,
		mappings: make(map[*TypeDescriptor]*EntityMapping, len(directives)+1),
		byName:   make(map[string]*TypeDescriptor, len(directives)+1),
	}
	s.add(resourceMapping())

	own := make(map[*TypeDescriptor]*EntityMapping, len(directives))
	var order []*TypeDescriptor
	for _, d := range directives {
		if d.Type == nil {
			return nil, fmt.Errorf("%w: directive without type", ErrMapping)
		}
		if _, dup := own[d.Type]; dup {
			return nil, fmt.Errorf("%w: type %s declared twice", ErrMapping, d.Type)
		}
		m, err := resolveDirective(registry, d)
		if err != nil {
			return nil, err
		}
		own[d.Type] = m
		order = append(order, d.Type)
	}

	if m, ok := own[Resource]; ok {
		own[Resource] = withBuiltinMembers(m)
	}
	for _, t := range order {
		s.add(flatten(t, own))
	}
	return s, nil
}

// MustSet is like NewSet but panics on error. Intended for tests and
// statically known mappings.
func MustSet(registry *vocabulary.Registry, directives ...EntityDirective) *Set {
	s, err := NewSet(registry, directives...)
	if err != nil {
		panic(err)
	}
	return s
}

// add registers m. A view whose name is already taken replaces the earlier
// one in declaration order, so each name is listed once.
func (s *Set) add(m *EntityMapping) {
	name := m.Type.Name()
	if prev, ok := s.byName[name]; ok {
		s.order[slices.Index(s.order, prev)] = m.Type
	} else {
		s.order = append(s.order, m.Type)
	}
	s.mappings[m.Type] = m
	s.byName[name] = m.Type
}

// withBuiltinMembers extends a user declaration of the Resource view with the
// built-in members it does not redeclare.
func withBuiltinMembers(m *EntityMapping) *EntityMapping {
	m.index()
	for _, p := range resourceMapping().Properties {
		if _, ok := m.Property(p.Name); !ok {
			m.Properties = append(m.Properties, p)
		}
	}
	m.index()
	return m
}

func resolveDirective(registry *vocabulary.Registry, d EntityDirective) (*EntityMapping, error) {
	m := &EntityMapping{Type: d.Type}
	seen := make(map[string]bool, len(d.Properties))
	for _, pd := range d.Properties {
		p, err := ResolvePropertyMapping(registry, pd)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", d.Type, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("type %s: %w %q", d.Type, ErrDuplicateMember, p.Name)
		}
		seen[p.Name] = true
		m.Properties = append(m.Properties, p)
	}
	for _, cd := range d.Classes {
		c, err := ResolveTypeMapping(registry, cd)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", d.Type, err)
		}
		m.Classes = append(m.Classes, c)
	}
	return m, nil
}

// flatten merges inherited members and classes into t's own mapping. The
// nearest declaration of a member name wins.
func flatten(t *TypeDescriptor, own map[*TypeDescriptor]*EntityMapping) *EntityMapping {
	out := &EntityMapping{Type: t}
	names := map[string]bool{}
	classes := map[quad.IRI]bool{}
	for _, a := range t.ancestors() {
		m, ok := own[a]
		if !ok {
			continue
		}
		for _, p := range m.Properties {
			if names[p.Name] {
				continue
			}
			names[p.Name] = true
			out.Properties = append(out.Properties, p)
		}
		for _, c := range m.Classes {
			if classes[c.Class] {
				continue
			}
			classes[c.Class] = true
			out.Classes = append(out.Classes, c)
		}
	}
	out.index()
	return out
}

// Registry returns the namespace registry the set was resolved with.
func (s *Set) Registry() *vocabulary.Registry { return s.registry }

// MappingFor returns the mapping for t.
func (s *Set) MappingFor(t *TypeDescriptor) (*EntityMapping, error) {
	m, ok := s.mappings[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMapping, t)
	}
	return m, nil
}

// TypeByName looks up a mapped view by name.
func (s *Set) TypeByName(name string) (*TypeDescriptor, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Types lists every mapped view in declaration order, Resource first.
func (s *Set) Types() []*TypeDescriptor {
	out := make([]*TypeDescriptor, len(s.order))
	copy(out, s.order)
	return out
}

// Mappings lists every mapping in declaration order.
func (s *Set) Mappings() []*EntityMapping {
	out := make([]*EntityMapping, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, s.mappings[t])
	}
	return out
}

// MatchingTypes returns Resource followed by every view whose class set is
// fully present in observed. Views without classes always match. These form
// the ambient views of an entity for bare-name property lookup.
func (s *Set) MatchingTypes(observed []quad.IRI) []*TypeDescriptor {
	obs := toSet(observed)
	out := []*TypeDescriptor{Resource}
	for _, t := range s.order {
		m := s.mappings[t]
		if t == Resource {
			continue
		}
		if m.matches(obs) {
			out = append(out, t)
		}
	}
	return out
}

func toSet(iris []quad.IRI) map[quad.IRI]struct{} {
	out := make(map[quad.IRI]struct{}, len(iris))
	for _, i := range iris {
		out[i] = struct{}{}
	}
	return out
}
