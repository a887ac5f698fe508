// Package entity implements the per-session identity map and the generic
// typed view over an entity's facts.
//
// Entities live in a Cache keyed by identifier. Relationships are followed by
// looking the target identifier up in the same Cache, so entities never hold
// references to each other.
package entity

import (
	"errors"
	"fmt"

	"github.com/c360studio/semmap/convert"
	"github.com/c360studio/semmap/graph"
)

// Entity errors.
var (
	// ErrDeleted is returned when reading or writing a deleted entity.
	ErrDeleted = errors.New("entity deleted")

	// ErrNotReference is returned when a value expected to reference an
	// entity is a literal.
	ErrNotReference = fmt.Errorf("%w: value is not an entity reference", convert.ErrConversion)
)

// State is the lifecycle state of an entity.
type State int

// Lifecycle states.
const (
	// Uninitialized entities are handles whose facts were never pulled.
	Uninitialized State = iota
	// Initialized entities have had their facts pulled at least once.
	Initialized
	// Deleted entities are scheduled for retraction.
	Deleted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Entity is the single live handle for an identifier within a session.
type Entity struct {
	id    graph.EntityID
	state State
	cache *Cache
}

// ID returns the entity identifier.
func (e *Entity) ID() graph.EntityID { return e.id }

// State returns the lifecycle state.
func (e *Entity) State() State { return e.state }

// IsDeleted reports whether the entity was deleted in this session.
func (e *Entity) IsDeleted() bool { return e.state == Deleted }

func (e *Entity) String() string { return e.id.String() }
