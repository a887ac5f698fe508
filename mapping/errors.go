package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/semmap/vocabulary"
)

// ErrMapping is the root of every mapping failure.
var ErrMapping = errors.New("mapping error")

// Mapping errors. Each wraps ErrMapping.
var (
	// ErrUnknownPrefix is returned when a directive names an unregistered
	// namespace prefix.
	ErrUnknownPrefix = fmt.Errorf("%w: %w", ErrMapping, vocabulary.ErrUnknownPrefix)

	// ErrNoMapping is returned when no mapping exists for a requested type.
	ErrNoMapping = fmt.Errorf("%w: mapping not found", ErrMapping)

	// ErrUnknownProperty is returned when a bare name matches no property.
	ErrUnknownProperty = fmt.Errorf("%w: unknown property", ErrMapping)

	// ErrAmbiguousProperty is returned when a bare name matches properties
	// with different predicates.
	ErrAmbiguousProperty = fmt.Errorf("%w: ambiguous property", ErrMapping)

	// ErrAmbiguousType is returned when two equally specific views match the
	// observed classes.
	ErrAmbiguousType = fmt.Errorf("%w: ambiguous type", ErrMapping)

	// ErrDuplicateMember is returned when a view declares a member twice.
	ErrDuplicateMember = fmt.Errorf("%w: duplicate member", ErrMapping)
)

// AmbiguousPropertyError lists every predicate a bare property name resolved
// to, in prefix:local form.
type AmbiguousPropertyError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguousPropertyError) Error() string {
	return fmt.Sprintf("ambiguous property %q: candidates %s", e.Name, strings.Join(e.Candidates, ", "))
}

// Unwrap lets errors.Is match ErrAmbiguousProperty and ErrMapping.
func (e *AmbiguousPropertyError) Unwrap() error { return ErrAmbiguousProperty }

// AmbiguousTypeError lists the non-comparable views that matched the
// observed classes.
type AmbiguousTypeError struct {
	Requested  string
	Candidates []string
}

func (e *AmbiguousTypeError) Error() string {
	return fmt.Sprintf("ambiguous type for %s: candidates %s", e.Requested, strings.Join(e.Candidates, ", "))
}

// Unwrap lets errors.Is match ErrAmbiguousType and ErrMapping.
func (e *AmbiguousTypeError) Unwrap() error { return ErrAmbiguousType }
