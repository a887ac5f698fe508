package session

import (
	"context"

	"github.com/c360studio/semmap/entity"
	"github.com/c360studio/semmap/graph"
)

// BaseURISelector chooses the base a relative identifier is resolved
// against.
type BaseURISelector interface {
	SelectBaseURI(id graph.EntityID) (string, error)
}

// StaticBaseURI resolves every relative identifier against one base.
type StaticBaseURI string

// SelectBaseURI implements BaseURISelector.
func (b StaticBaseURI) SelectBaseURI(graph.EntityID) (string, error) {
	return string(b), nil
}

// ResourceResolver can answer a Load without going through the identity
// map, for identifiers that resolve to externally supplied entities. A nil
// view with a nil error means the identifier is not handled.
type ResourceResolver interface {
	Resolve(ctx context.Context, id graph.EntityID) (*entity.View, error)
}

// ResourceResolverFunc adapts a function to ResourceResolver.
type ResourceResolverFunc func(ctx context.Context, id graph.EntityID) (*entity.View, error)

// Resolve implements ResourceResolver.
func (f ResourceResolverFunc) Resolve(ctx context.Context, id graph.EntityID) (*entity.View, error) {
	return f(ctx, id)
}

// DeleteBehavior selects which facts besides the subject's own are retracted
// by Delete.
type DeleteBehavior uint8

// Delete behaviors. They combine as flags.
const (
	// DeleteSubject retracts facts whose subject is the entity.
	DeleteSubject DeleteBehavior = 0

	// DeleteBlankChildren also deletes blank nodes the entity points at,
	// recursively.
	DeleteBlankChildren DeleteBehavior = 1 << iota

	// DeleteReferences also retracts loaded facts whose object is the
	// entity.
	DeleteReferences
)

func (b DeleteBehavior) has(flag DeleteBehavior) bool { return b&flag != 0 }
