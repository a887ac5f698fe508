// Package mappingfile reads mapping directives from YAML files and keeps a
// mapping.Repository in sync with them.
//
// A mapping file looks like:
//
//	namespaces:
//	  ex: http://example.com/schema#
//	entities:
//	  - type: Person
//	    parents: [Agent]
//	    classes: [foaf:Person]
//	    properties:
//	      - predicate: foaf:givenName
//	        kind: string
//	      - name: friends
//	        predicate: foaf:knows
//	        collection: true
//	        kind: entity
//	        target: Person
//	      - predicate: ex:rating
//	        graph: "#meta"
package mappingfile

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/cayleygraph/quad"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semmap/mapping"
	"github.com/c360studio/semmap/vocabulary"
)

// ErrInvalidFile is returned for mapping files that cannot be turned into
// directives.
var ErrInvalidFile = fmt.Errorf("%w: invalid mapping file", mapping.ErrMapping)

// File is the YAML form of a mapping file.
type File struct {
	Namespaces map[string]string `yaml:"namespaces,omitempty"`
	Entities   []Entity          `yaml:"entities"`
}

// Entity declares one view.
type Entity struct {
	Type       string     `yaml:"type"`
	Parents    []string   `yaml:"parents,omitempty"`
	Classes    []string   `yaml:"classes,omitempty"`
	Properties []Property `yaml:"properties,omitempty"`
}

// Property declares one member. Predicate is a prefixed name or a full IRI.
// Graph is either a "#suffix" appended to the entity IRI or a fixed graph
// IRI.
type Property struct {
	Name       string `yaml:"name,omitempty"`
	Predicate  string `yaml:"predicate"`
	Collection bool   `yaml:"collection,omitempty"`
	Kind       string `yaml:"kind,omitempty"`
	Target     string `yaml:"target,omitempty"`
	Graph      string `yaml:"graph,omitempty"`
}

// Parse decodes a mapping file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return &f, nil
}

// ReadFile reads and decodes the mapping file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Build turns files into a registry extended with their namespaces and the
// directives they declare. Types are looked up in known first so that views
// declared in Go code and in files share descriptors; other types are
// created. Parents may be declared in any of the files.
func Build(base *vocabulary.Registry, known []*mapping.TypeDescriptor, files ...*File) (*vocabulary.Registry, []mapping.EntityDirective, error) {
	if base == nil {
		base = vocabulary.DefaultRegistry()
	}
	b := &builder{
		types:    map[string]*mapping.TypeDescriptor{mapping.Resource.Name(): mapping.Resource},
		declared: map[string]Entity{},
		visiting: map[string]bool{},
	}
	for _, t := range known {
		b.types[t.Name()] = t
	}

	var namespaces []vocabulary.Namespace
	var entities []Entity
	for _, f := range files {
		for _, prefix := range slices.Sorted(maps.Keys(f.Namespaces)) {
			namespaces = append(namespaces, vocabulary.Namespace{Prefix: prefix, IRI: f.Namespaces[prefix]})
		}
		for _, e := range f.Entities {
			if e.Type == "" {
				return nil, nil, fmt.Errorf("%w: entity without type", ErrInvalidFile)
			}
			if _, dup := b.declared[e.Type]; dup {
				return nil, nil, fmt.Errorf("%w: type %q declared twice", ErrInvalidFile, e.Type)
			}
			b.declared[e.Type] = e
			entities = append(entities, e)
		}
	}

	directives := make([]mapping.EntityDirective, 0, len(entities))
	for _, e := range entities {
		d, err := b.directive(e)
		if err != nil {
			return nil, nil, err
		}
		directives = append(directives, d)
	}
	return base.With(namespaces...), directives, nil
}

type builder struct {
	types    map[string]*mapping.TypeDescriptor
	declared map[string]Entity
	visiting map[string]bool
}

// typeFor returns the descriptor named name, creating it and its parents
// on first use.
func (b *builder) typeFor(name string) (*mapping.TypeDescriptor, error) {
	if t, ok := b.types[name]; ok {
		return t, nil
	}
	e, ok := b.declared[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidFile, name)
	}
	if b.visiting[name] {
		return nil, fmt.Errorf("%w: type %q inherits from itself", ErrInvalidFile, name)
	}
	b.visiting[name] = true
	defer delete(b.visiting, name)

	parents := make([]*mapping.TypeDescriptor, 0, len(e.Parents))
	for _, p := range e.Parents {
		pt, err := b.typeFor(p)
		if err != nil {
			return nil, fmt.Errorf("parent of %s: %w", name, err)
		}
		parents = append(parents, pt)
	}
	t := mapping.NewType(name, parents...)
	b.types[name] = t
	return t, nil
}

func (b *builder) directive(e Entity) (mapping.EntityDirective, error) {
	t, err := b.typeFor(e.Type)
	if err != nil {
		return mapping.EntityDirective{}, err
	}
	d := mapping.EntityDirective{Type: t}
	for _, c := range e.Classes {
		prefix, local, iri := splitName(c)
		d.Classes = append(d.Classes, mapping.ClassDirective{Prefix: prefix, Local: local, IRI: iri})
	}
	for _, p := range e.Properties {
		pd, err := b.property(e.Type, p)
		if err != nil {
			return mapping.EntityDirective{}, err
		}
		d.Properties = append(d.Properties, pd)
	}
	return d, nil
}

func (b *builder) property(owner string, p Property) (mapping.PropertyDirective, error) {
	if p.Predicate == "" {
		return mapping.PropertyDirective{}, fmt.Errorf("%w: %s.%s has no predicate", ErrInvalidFile, owner, p.Name)
	}
	kind, ok := mapping.ParseValueKind(p.Kind)
	if !ok {
		return mapping.PropertyDirective{}, fmt.Errorf("%w: %s.%s has unknown kind %q", ErrInvalidFile, owner, p.Name, p.Kind)
	}
	prefix, local, iri := splitName(p.Predicate)
	d := mapping.PropertyDirective{
		Member:     p.Name,
		Prefix:     prefix,
		Local:      local,
		IRI:        iri,
		Collection: p.Collection,
		Kind:       kind,
	}
	if p.Target != "" {
		t, err := b.typeFor(p.Target)
		if err != nil {
			return mapping.PropertyDirective{}, fmt.Errorf("target of %s.%s: %w", owner, p.Predicate, err)
		}
		d.Target = t
		if d.Kind == mapping.KindAny {
			d.Kind = mapping.KindEntity
		}
	}
	d.Graph = GraphSelector(p.Graph)
	return d, nil
}

// GraphSelector parses a graph setting. "#suffix" names a graph after each
// entity, anything else is a fixed graph IRI. Empty yields nil.
func GraphSelector(s string) mapping.GraphSelector {
	switch {
	case s == "":
		return nil
	case strings.HasPrefix(s, "#"):
		return mapping.EntityGraph{Suffix: s}
	default:
		return mapping.FixedGraph(strings.Trim(s, "<>"))
	}
}

// splitName splits "prefix:local" names. Full IRIs, with or without angle
// brackets, are returned as iri.
func splitName(name string) (prefix, local string, iri quad.IRI) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "<") || strings.Contains(name, "://") {
		return "", "", quad.IRI(strings.Trim(name, "<>"))
	}
	prefix, local, found := strings.Cut(name, ":")
	if !found {
		return "", name, ""
	}
	return prefix, local, ""
}
