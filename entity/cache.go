package entity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cayleygraph/quad"

	"github.com/c360studio/semmap/convert"
	"github.com/c360studio/semmap/factstore"
	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
)

// Loader pulls the facts about one entity from the backing store.
type Loader interface {
	LoadEntity(ctx context.Context, id graph.EntityID) ([]graph.Fact, error)
}

// Config holds the collaborators of a Cache.
type Config struct {
	// Facts is the session fact store. Required.
	Facts *factstore.Store

	// Mappings resolves views and properties. Required.
	Mappings mapping.Resolver

	// Loader pulls facts for uninitialized entities. Nil means entities
	// are initialized empty.
	Loader Loader

	// Converter converts nodes to values. Defaults to convert.NewFallback.
	Converter convert.Converter

	// TypeGraph restricts rdf:type reads to one named graph per entity.
	// Nil reads types through the union view.
	TypeGraph mapping.GraphSelector

	// Language returns the current session language for string values.
	Language func() string

	Logger *slog.Logger
}

// Cache is the identity map of one session. It guarantees one Entity per
// identifier. Not safe for concurrent use.
type Cache struct {
	entities  map[graph.EntityID]*Entity
	order     []graph.EntityID
	facts     *factstore.Store
	mappings  mapping.Resolver
	loader    Loader
	converter convert.Converter
	typeGraph mapping.GraphSelector
	language  func() string
	logger    *slog.Logger
}

// NewCache creates an empty identity map.
func NewCache(cfg Config) *Cache {
	c := &Cache{
		entities:  make(map[graph.EntityID]*Entity),
		facts:     cfg.Facts,
		mappings:  cfg.Mappings,
		loader:    cfg.Loader,
		converter: cfg.Converter,
		typeGraph: cfg.TypeGraph,
		language:  cfg.Language,
		logger:    cfg.Logger,
	}
	if c.facts == nil {
		c.facts = factstore.New(false)
	}
	if c.mappings == nil {
		c.mappings = mapping.MustSet(nil)
	}
	if c.converter == nil {
		c.converter = convert.NewFallback()
	}
	if c.language == nil {
		c.language = func() string { return "" }
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Facts returns the fact store backing the cache.
func (c *Cache) Facts() *factstore.Store { return c.facts }

// Mappings returns the resolver the cache materializes with.
func (c *Cache) Mappings() mapping.Resolver { return c.mappings }

// GetOrCreate returns the entity for id, registering a new uninitialized
// one if needed. Blank identifiers are always initialized since they cannot
// be fetched independently.
func (c *Cache) GetOrCreate(id graph.EntityID, markInitialized bool) *Entity {
	e, ok := c.entities[id]
	if !ok {
		e = &Entity{id: id, state: Uninitialized, cache: c}
		c.entities[id] = e
		c.order = append(c.order, id)
	}
	if e.state == Uninitialized && (markInitialized || id.IsBlank()) {
		e.state = Initialized
	}
	return e
}

// Lookup returns the entity for id if it is registered.
func (c *Cache) Lookup(id graph.EntityID) (*Entity, bool) {
	e, ok := c.entities[id]
	return e, ok
}

// Entities lists registered entities in registration order.
func (c *Cache) Entities() []*Entity {
	out := make([]*Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entities[id])
	}
	return out
}

// Len returns the number of registered entities.
func (c *Cache) Len() int { return len(c.entities) }

// MarkDeleted flags e as deleted. It stays addressable by identifier.
func (c *Cache) MarkDeleted(e *Entity) {
	e.state = Deleted
}

// Restore returns a deleted entity to the initialized state, as on rollback.
func (c *Cache) Restore(e *Entity) {
	if e.state == Deleted {
		e.state = Initialized
	}
}

// Initialize pulls e's facts from the loader once.
func (c *Cache) Initialize(ctx context.Context, e *Entity) error {
	if e.state != Uninitialized {
		return nil
	}
	if c.loader != nil {
		facts, err := c.loader.LoadEntity(ctx, e.id)
		if err != nil {
			return fmt.Errorf("load entity %s: %w", e.id, err)
		}
		n := c.facts.Load(facts...)
		c.logger.Debug("Initialized entity", "entity", e.id.String(), "facts", n)
	}
	e.state = Initialized
	return nil
}

// Classes returns the rdf:type classes of e, read from the type graph when
// one is configured and from the union view otherwise.
func (c *Cache) Classes(e *Entity) []quad.IRI {
	var nodes []quad.Value
	if c.typeGraph != nil {
		nodes = c.facts.ObjectsIn(e.id, graph.RDFType, c.typeGraph.SelectGraph(e.id))
	} else {
		nodes = c.facts.Objects(e.id, graph.RDFType)
	}
	out := make([]quad.IRI, 0, len(nodes))
	for _, n := range nodes {
		if iri, ok := n.(quad.IRI); ok {
			out = append(out, iri)
		}
	}
	return out
}

// MaterializeAs initializes e if needed and returns a view of the most
// derived mapped type assignable to t. Deleted entities still materialize;
// their views only read identity and rdf:type.
func (c *Cache) MaterializeAs(ctx context.Context, e *Entity, t *mapping.TypeDescriptor) (*View, error) {
	if err := c.Initialize(ctx, e); err != nil {
		return nil, err
	}
	classes := c.Classes(e)
	resolved, err := c.mappings.ResolveMostDerivedType(nil, classes, t)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", e.id, err)
	}
	m, err := c.mappings.MappingFor(resolved)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", e.id, err)
	}
	return &View{entity: e, mapping: m}, nil
}

func (c *Cache) convertContext() convert.Context {
	return convert.Context{Language: c.language()}
}
