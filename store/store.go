// Package store defines the contracts between a session and the triple
// store behind it. Implementations live in subpackages.
package store

import (
	"context"
	"errors"

	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/query"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// EntityFact is a fact returned by an entity query, tagged with the entity
// it was fetched for.
type EntityFact struct {
	EntityID graph.EntityID
	Fact     graph.Fact
}

// Source answers queries and entity loads.
type Source interface {
	// ExecuteEntityQuery returns the facts of every matching entity. Facts
	// are grouped by entity, in result order.
	ExecuteEntityQuery(ctx context.Context, q *query.Query) ([]EntityFact, error)

	// ExecuteAskQuery reports whether any entity matches.
	ExecuteAskQuery(ctx context.Context, q *query.Query) (bool, error)

	// ExecuteScalarQuery computes the query's aggregate.
	ExecuteScalarQuery(ctx context.Context, q *query.Query) (int64, error)

	// LoadEntity returns every fact about id across all graphs.
	LoadEntity(ctx context.Context, id graph.EntityID) ([]graph.Fact, error)

	// EntityExists reports whether any fact about id exists.
	EntityExists(ctx context.Context, id graph.EntityID) (bool, error)
}

// Sink applies committed changes.
type Sink interface {
	Commit(ctx context.Context, changes ChangeSet) error
}

// Store is a readable and writable triple store.
type Store interface {
	Source
	Sink
}

// ChangeSet is the net effect of a unit of work. Removed facts are applied
// before Added facts. DeletedEntities lists entities deleted in the unit of
// work; their facts are already part of Removed.
type ChangeSet struct {
	Added           []graph.Fact
	Removed         []graph.Fact
	DeletedEntities []graph.EntityID
}

// IsEmpty reports whether the change set carries no changes.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.DeletedEntities) == 0
}

// Subjects returns the distinct subjects touched by the change set, in
// first-seen order.
func (c ChangeSet) Subjects() []graph.EntityID {
	seen := map[graph.EntityID]bool{}
	var out []graph.EntityID
	add := func(id graph.EntityID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, f := range c.Removed {
		add(f.Subject)
	}
	for _, f := range c.Added {
		add(f.Subject)
	}
	for _, id := range c.DeletedEntities {
		add(id)
	}
	return out
}
