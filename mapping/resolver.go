package mapping

import (
	"fmt"
	"sort"

	"github.com/cayleygraph/quad"

	"github.com/c360studio/semmap/vocabulary"
)

// Resolver picks concrete views and properties for observed graph data.
// *Set implements it.
type Resolver interface {
	MappingFor(t *TypeDescriptor) (*EntityMapping, error)
	MatchingTypes(observed []quad.IRI) []*TypeDescriptor
	ResolveMostDerivedType(candidates []*TypeDescriptor, observed []quad.IRI, requested *TypeDescriptor) (*TypeDescriptor, error)
	ResolvePropertyByName(name string, views []*TypeDescriptor) (PropertyMapping, error)
}

var _ Resolver = (*Set)(nil)

// ResolveMostDerivedType picks, among candidates assignable to requested
// whose classes are all present in observed, the one with the most specific
// class set. A nil candidate list means every mapped view. Views without
// classes only match when they are requested itself. When nothing
// matches, requested is returned. Two equally specific, unrelated matches
// are reported as an *AmbiguousTypeError.
func (s *Set) ResolveMostDerivedType(candidates []*TypeDescriptor, observed []quad.IRI, requested *TypeDescriptor) (*TypeDescriptor, error) {
	if candidates == nil {
		candidates = s.order
	}
	obs := toSet(observed)

	var matched []*EntityMapping
	seen := map[*TypeDescriptor]bool{}
	for _, c := range candidates {
		if seen[c] || !c.AssignableTo(requested) {
			continue
		}
		seen[c] = true
		m, ok := s.mappings[c]
		if !ok || !m.matches(obs) {
			continue
		}
		// A view without classes carries no evidence; only the requested
		// view itself may be picked that way.
		if len(m.classSet) == 0 && c != requested {
			continue
		}
		matched = append(matched, m)
	}

	var winners []*EntityMapping
	for _, y := range matched {
		dominated := false
		for _, x := range matched {
			if x != y && dominates(x, y) {
				dominated = true
				break
			}
		}
		if !dominated {
			winners = append(winners, y)
		}
	}

	switch len(winners) {
	case 0:
		return requested, nil
	case 1:
		return winners[0].Type, nil
	}
	names := make([]string, 0, len(winners))
	for _, w := range winners {
		names = append(names, w.Type.Name())
	}
	sort.Strings(names)
	return nil, &AmbiguousTypeError{Requested: requested.Name(), Candidates: names}
}

// dominates reports whether x is strictly more specific than y.
func dominates(x, y *EntityMapping) bool {
	if !y.coveredBy(x) {
		return false
	}
	if len(x.classSet) > len(y.classSet) {
		return true
	}
	return x.Type != y.Type && x.Type.AssignableTo(y.Type)
}

// ResolvePropertyByName finds the property named name across views, matching
// either the member name or the predicate's local name. Matches that share a
// predicate are not ambiguous.
func (s *Set) ResolvePropertyByName(name string, views []*TypeDescriptor) (PropertyMapping, error) {
	var found []PropertyMapping
	byPredicate := map[quad.IRI]bool{}
	seenView := map[*TypeDescriptor]bool{}
	for _, v := range views {
		if seenView[v] {
			continue
		}
		seenView[v] = true
		m, ok := s.mappings[v]
		if !ok {
			continue
		}
		for _, p := range m.Properties {
			if p.Name != name && p.ShortName() != name {
				continue
			}
			if byPredicate[p.Predicate] {
				continue
			}
			byPredicate[p.Predicate] = true
			found = append(found, p)
		}
	}

	switch len(found) {
	case 0:
		return PropertyMapping{}, fmt.Errorf("%w %q", ErrUnknownProperty, name)
	case 1:
		return found[0], nil
	}
	candidates := make([]string, 0, len(found))
	for _, p := range found {
		candidates = append(candidates, s.registry.Shorten(p.Predicate))
	}
	sort.Strings(candidates)
	return PropertyMapping{}, &AmbiguousPropertyError{Name: name, Candidates: candidates}
}

// ResolvePropertyMapping resolves a property directive's predicate through
// registry.
func ResolvePropertyMapping(registry *vocabulary.Registry, d PropertyDirective) (PropertyMapping, error) {
	predicate, err := resolveIRI(registry, d.IRI, d.Prefix, d.Local)
	if err != nil {
		return PropertyMapping{}, fmt.Errorf("resolve property %s: %w", memberName(d.Member, d.Local), err)
	}
	p := PropertyMapping{
		Name:       memberName(d.Member, vocabulary.LocalName(predicate)),
		Predicate:  predicate,
		Collection: d.Collection,
		Kind:       d.Kind,
		Target:     d.Target,
		Graph:      d.Graph,
	}
	if p.Kind == KindEntity && p.Target == nil {
		p.Target = Resource
	}
	return p, nil
}

// ResolveTypeMapping resolves a class directive through registry.
func ResolveTypeMapping(registry *vocabulary.Registry, d ClassDirective) (TypeMapping, error) {
	class, err := resolveIRI(registry, d.IRI, d.Prefix, d.Local)
	if err != nil {
		return TypeMapping{}, fmt.Errorf("resolve class %s: %w", memberName(d.Member, d.Local), err)
	}
	return TypeMapping{Name: memberName(d.Member, vocabulary.LocalName(class)), Class: class}, nil
}

func resolveIRI(registry *vocabulary.Registry, iri quad.IRI, prefix, local string) (quad.IRI, error) {
	if iri != "" {
		return iri, nil
	}
	if local == "" {
		return "", fmt.Errorf("%w: missing predicate", ErrMapping)
	}
	resolved, err := registry.ResolveURI(prefix, local)
	if err != nil {
		return "", fmt.Errorf("%w: %s:%s", ErrUnknownPrefix, prefix, local)
	}
	return resolved, nil
}

func memberName(member, fallback string) string {
	if member != "" {
		return member
	}
	return fallback
}
