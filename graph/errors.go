package graph

import "errors"

// Identifier and fact errors.
var (
	// ErrEmptyID is returned when an identifier is built from an empty string.
	ErrEmptyID = errors.New("empty entity id")

	// ErrRelativeID is returned when a relative identifier is used where an
	// absolute one is required.
	ErrRelativeID = errors.New("relative entity id")

	// ErrInvalidFact is returned for facts with missing or misplaced nodes.
	ErrInvalidFact = errors.New("invalid fact")
)
