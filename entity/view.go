package entity

import (
	"context"
	"fmt"
	"slices"

	"github.com/cayleygraph/quad"

	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
)

// View reads and writes an entity through one mapped type. Every view of an
// identifier shares the same Entity and fact store.
type View struct {
	entity  *Entity
	mapping *mapping.EntityMapping
}

// ID returns the entity identifier.
func (v *View) ID() graph.EntityID { return v.entity.id }

// Entity returns the underlying entity.
func (v *View) Entity() *Entity { return v.entity }

// Type returns the view type.
func (v *View) Type() *mapping.TypeDescriptor { return v.mapping.Type }

// Mapping returns the resolved mapping of the view type.
func (v *View) Mapping() *mapping.EntityMapping { return v.mapping }

// As re-materializes the entity as t.
func (v *View) As(ctx context.Context, t *mapping.TypeDescriptor) (*View, error) {
	return v.entity.cache.MaterializeAs(ctx, v.entity, t)
}

// Types returns the entity's rdf:type classes. Allowed on deleted entities.
func (v *View) Types() []quad.IRI {
	return v.entity.cache.Classes(v.entity)
}

// Is reports whether class is among the entity's rdf:type classes.
func (v *View) Is(class quad.IRI) bool {
	return slices.Contains(v.Types(), class)
}

// Property resolves name to a mapping. Members of the view type win;
// otherwise the bare name is resolved across every view the entity's
// classes match, and conflicting predicates are an error.
func (v *View) Property(name string) (mapping.PropertyMapping, error) {
	if p, ok := v.mapping.Property(name); ok {
		return p, nil
	}
	c := v.entity.cache
	ambient := append(c.mappings.MatchingTypes(c.Classes(v.entity)), v.mapping.Type)
	p, err := c.mappings.ResolvePropertyByName(name, ambient)
	if err != nil {
		return mapping.PropertyMapping{}, fmt.Errorf("%s: %w", v.entity.id, err)
	}
	return p, nil
}

func (v *View) readable(p mapping.PropertyMapping) error {
	if v.entity.state == Deleted && p.Predicate != graph.RDFType {
		return fmt.Errorf("read %s of %s: %w", p.Name, v.entity.id, ErrDeleted)
	}
	return nil
}

func (v *View) nodes(p mapping.PropertyMapping) []quad.Value {
	facts := v.entity.cache.facts
	if p.Graph != nil {
		return facts.ObjectsIn(v.entity.id, p.Predicate, p.Graph.SelectGraph(v.entity.id))
	}
	return facts.Objects(v.entity.id, p.Predicate)
}

// Nodes returns the raw graph nodes of a property.
func (v *View) Nodes(name string) ([]quad.Value, error) {
	p, err := v.Property(name)
	if err != nil {
		return nil, err
	}
	if err := v.readable(p); err != nil {
		return nil, err
	}
	return v.nodes(p), nil
}

// Get returns the converted value of a property. Collection properties
// yield []any; missing single values yield nil. With a session language set,
// a string in that language is preferred over other values.
func (v *View) Get(name string) (any, error) {
	p, err := v.Property(name)
	if err != nil {
		return nil, err
	}
	if err := v.readable(p); err != nil {
		return nil, err
	}
	nodes := v.nodes(p)
	if p.Collection {
		return v.convertAll(nodes)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return v.convert(v.pick(nodes))
}

// GetAll returns every converted value of a property.
func (v *View) GetAll(name string) ([]any, error) {
	p, err := v.Property(name)
	if err != nil {
		return nil, err
	}
	if err := v.readable(p); err != nil {
		return nil, err
	}
	return v.convertAll(v.nodes(p))
}

// String returns a property value as a string. Missing values yield "".
func (v *View) String(name string) (string, error) {
	val, err := v.Get(name)
	if err != nil || val == nil {
		return "", err
	}
	s, ok := val.(string)
	if !ok {
		return fmt.Sprint(val), nil
	}
	return s, nil
}

// Ref follows a single-valued reference and materializes its target as the
// property's target type. A missing reference yields nil.
func (v *View) Ref(ctx context.Context, name string) (*View, error) {
	refs, err := v.Refs(ctx, name)
	if err != nil || len(refs) == 0 {
		return nil, err
	}
	return refs[0], nil
}

// Refs follows every reference of a property.
func (v *View) Refs(ctx context.Context, name string) ([]*View, error) {
	p, err := v.Property(name)
	if err != nil {
		return nil, err
	}
	if err := v.readable(p); err != nil {
		return nil, err
	}
	target := p.Target
	if target == nil {
		target = mapping.Resource
	}
	c := v.entity.cache
	var out []*View
	for _, n := range v.nodes(p) {
		id, ok := graph.IDFromNode(n)
		if !ok {
			return nil, fmt.Errorf("%s.%s: %w", v.entity.id, p.Name, ErrNotReference)
		}
		ref, err := c.MaterializeAs(ctx, c.GetOrCreate(id, false), target)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// Set replaces every value of a property in its write graph.
func (v *View) Set(name string, values ...any) error {
	p, g, err := v.writable(name)
	if err != nil {
		return err
	}
	nodes, err := v.convertBack(values)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", v.entity.id, p.Name, err)
	}
	facts := v.entity.cache.facts
	for _, old := range facts.ObjectsIn(v.entity.id, p.Predicate, g) {
		facts.Retract(graph.NewFact(v.entity.id, p.Predicate, old).InGraph(g))
	}
	for _, n := range nodes {
		facts.Assert(graph.NewFact(v.entity.id, p.Predicate, n).InGraph(g))
	}
	return nil
}

// Add appends values to a property.
func (v *View) Add(name string, values ...any) error {
	p, g, err := v.writable(name)
	if err != nil {
		return err
	}
	nodes, err := v.convertBack(values)
	if err != nil {
		return fmt.Errorf("add %s.%s: %w", v.entity.id, p.Name, err)
	}
	for _, n := range nodes {
		v.entity.cache.facts.Assert(graph.NewFact(v.entity.id, p.Predicate, n).InGraph(g))
	}
	return nil
}

// Remove retracts values from a property.
func (v *View) Remove(name string, values ...any) error {
	p, g, err := v.writable(name)
	if err != nil {
		return err
	}
	nodes, err := v.convertBack(values)
	if err != nil {
		return fmt.Errorf("remove %s.%s: %w", v.entity.id, p.Name, err)
	}
	for _, n := range nodes {
		v.entity.cache.facts.Retract(graph.NewFact(v.entity.id, p.Predicate, n).InGraph(g))
	}
	return nil
}

// AddType asserts an rdf:type class on the entity.
func (v *View) AddType(class quad.IRI) error {
	if v.entity.state == Deleted {
		return fmt.Errorf("add type to %s: %w", v.entity.id, ErrDeleted)
	}
	g := graph.DefaultGraph
	if sel := v.entity.cache.typeGraph; sel != nil {
		g = sel.SelectGraph(v.entity.id)
	}
	v.entity.cache.facts.Assert(graph.NewFact(v.entity.id, graph.RDFType, class).InGraph(g))
	return nil
}

func (v *View) writable(name string) (mapping.PropertyMapping, quad.IRI, error) {
	p, err := v.Property(name)
	if err != nil {
		return p, "", err
	}
	if v.entity.state == Deleted {
		return p, "", fmt.Errorf("write %s of %s: %w", p.Name, v.entity.id, ErrDeleted)
	}
	g := graph.DefaultGraph
	if p.Graph != nil {
		g = p.Graph.SelectGraph(v.entity.id)
	}
	return p, g, nil
}

func (v *View) pick(nodes []quad.Value) quad.Value {
	if lang := v.entity.cache.language(); lang != "" {
		for _, n := range nodes {
			if l, ok := graph.Language(n); ok && l == lang {
				return n
			}
		}
	}
	return nodes[0]
}

func (v *View) convert(n quad.Value) (any, error) {
	return v.entity.cache.converter.Convert(n, v.entity.cache.convertContext())
}

func (v *View) convertAll(nodes []quad.Value) ([]any, error) {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		val, err := v.convert(n)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func (v *View) convertBack(values []any) ([]quad.Value, error) {
	ctx := v.entity.cache.convertContext()
	out := make([]quad.Value, 0, len(values))
	for _, val := range values {
		if ref, ok := val.(*View); ok {
			val = ref.ID()
		}
		n, err := v.entity.cache.converter.ConvertBack(val, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
