// Package graph defines the identifier, node and fact values shared by every
// layer of the mapper. Nodes are github.com/cayleygraph/quad values; facts are
// comparable so they can be used directly as set members.
package graph

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/google/uuid"
)

// EntityID identifies a graph subject. A named ID carries an IRI which may be
// relative until it is made absolute; a blank ID carries a store-scoped label
// which never resolves across stores.
type EntityID struct {
	value string
	blank bool
}

// NewID parses and normalizes a named identifier. Only the scheme and host
// are case-folded; the rest of the IRI is kept as written. Relative IRIs are
// accepted and must be made absolute with MakeAbsolute before they reach a
// store.
func NewID(iri string) (EntityID, error) {
	iri = strings.TrimSpace(iri)
	if iri == "" {
		return EntityID{}, ErrEmptyID
	}
	if strings.HasPrefix(iri, "_:") {
		return BlankID(strings.TrimPrefix(iri, "_:")), nil
	}
	if _, err := url.Parse(iri); err != nil {
		return EntityID{}, fmt.Errorf("parse entity id %q: %w", iri, err)
	}
	return EntityID{value: normalizeIRI(iri)}, nil
}

// MustID is like NewID but panics on malformed input. Intended for constants
// and tests.
func MustID(iri string) EntityID {
	id, err := NewID(iri)
	if err != nil {
		panic(err)
	}
	return id
}

// BlankID returns an anonymous identifier with the given label.
func BlankID(label string) EntityID {
	return EntityID{value: label, blank: true}
}

// NewBlankID generates a fresh anonymous identifier.
func NewBlankID() EntityID {
	return BlankID("b" + strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// IDFromNode converts an IRI or blank node into an identifier. Literals are
// not identifiers.
func IDFromNode(v quad.Value) (EntityID, bool) {
	switch n := v.(type) {
	case quad.IRI:
		id, err := NewID(string(n))
		if err != nil {
			return EntityID{}, false
		}
		return id, true
	case quad.BNode:
		return BlankID(string(n)), true
	default:
		return EntityID{}, false
	}
}

// IsBlank reports whether the identifier is anonymous.
func (id EntityID) IsBlank() bool { return id.blank }

// IsZero reports whether the identifier is unset.
func (id EntityID) IsZero() bool { return id.value == "" }

// IsAbsolute reports whether the identifier can be used against a store.
// Blank identifiers are always considered absolute.
func (id EntityID) IsAbsolute() bool {
	if id.blank {
		return true
	}
	_, _, ok := splitScheme(id.value)
	return ok
}

// IRI returns the IRI of a named identifier or the label of a blank one.
func (id EntityID) IRI() string { return id.value }

// String returns the IRI, or "_:label" for blank identifiers.
func (id EntityID) String() string {
	if id.blank {
		return "_:" + id.value
	}
	return id.value
}

// Node returns the identifier as a graph node.
func (id EntityID) Node() quad.Value {
	if id.blank {
		return quad.BNode(id.value)
	}
	return quad.IRI(id.value)
}

// MakeAbsolute resolves a relative identifier against base. Absolute and
// blank identifiers are returned unchanged.
func (id EntityID) MakeAbsolute(base string) (EntityID, error) {
	if id.IsAbsolute() {
		return id, nil
	}
	if _, err := url.Parse(base); err != nil {
		return EntityID{}, fmt.Errorf("parse base uri %q: %w", base, err)
	}
	if _, _, ok := splitScheme(base); !ok {
		return EntityID{}, fmt.Errorf("%w: base uri %q", ErrRelativeID, base)
	}
	return EntityID{value: resolveIRI(base, id.value)}, nil
}
