package graph

import (
	"fmt"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/rdf"
)

// RDFType is the full rdf:type predicate IRI.
var RDFType = quad.IRI(rdf.NS + "type")

// DefaultGraph is the unnamed graph partition.
const DefaultGraph = quad.IRI("")

// Fact is a subject-predicate-object statement, optionally scoped to a named
// graph. Facts are plain values and compare structurally.
type Fact struct {
	Subject   EntityID
	Predicate quad.IRI
	Object    quad.Value
	Graph     quad.IRI
}

// NewFact returns a fact in the default graph.
// IRI objects are normalized like identifiers so references compare equal to
// the subjects they point at.
func NewFact(subject EntityID, predicate quad.IRI, object quad.Value) Fact {
	return Fact{Subject: subject, Predicate: predicate, Object: NormalizeNode(object)}
}

// NormalizeNode normalizes IRI nodes the way NewID does. Other nodes are
// returned unchanged.
func NormalizeNode(v quad.Value) quad.Value {
	if iri, ok := v.(quad.IRI); ok {
		return quad.IRI(normalizeIRI(string(iri)))
	}
	return v
}

// InGraph returns a copy of the fact scoped to graph g.
func (f Fact) InGraph(g quad.IRI) Fact {
	f.Graph = g
	return f
}

// ObjectID returns the object as an identifier when it references a resource.
func (f Fact) ObjectID() (EntityID, bool) {
	return IDFromNode(f.Object)
}

// String renders the fact as an N-Quads statement.
func (f Fact) String() string {
	var sb strings.Builder
	sb.WriteString(f.Subject.Node().String())
	sb.WriteByte(' ')
	sb.WriteString(f.Predicate.String())
	sb.WriteByte(' ')
	if f.Object != nil {
		sb.WriteString(f.Object.String())
	}
	if f.Graph != DefaultGraph {
		sb.WriteByte(' ')
		sb.WriteString(f.Graph.String())
	}
	sb.WriteString(" .")
	return sb.String()
}

// Quad converts the fact to a quad. The default graph has no label.
func (f Fact) Quad() quad.Quad {
	q := quad.Quad{Subject: f.Subject.Node(), Predicate: f.Predicate, Object: f.Object}
	if f.Graph != DefaultGraph {
		q.Label = f.Graph
	}
	return q
}

// FromQuad converts a quad to a validated fact. Native literal values such as
// quad.Int are stored in their lexical typed form.
func FromQuad(q quad.Quad) (Fact, error) {
	subject, ok := IDFromNode(q.Subject)
	if !ok {
		return Fact{}, fmt.Errorf("%w: subject %v", ErrInvalidFact, q.Subject)
	}
	predicate, ok := q.Predicate.(quad.IRI)
	if !ok {
		return Fact{}, fmt.Errorf("%w: predicate %v", ErrInvalidFact, q.Predicate)
	}
	object := q.Object
	if native, ok := object.(quad.TypedStringer); ok {
		ts := native.TypedString()
		object = quad.TypedString{Value: ts.Value, Type: ts.Type.Full()}
	}
	f := NewFact(subject, predicate, object)
	switch g := q.Label.(type) {
	case nil:
	case quad.IRI:
		f.Graph = g
	default:
		return Fact{}, fmt.Errorf("%w: graph %v", ErrInvalidFact, q.Label)
	}
	if err := f.Validate(); err != nil {
		return Fact{}, err
	}
	return f, nil
}

// Validate checks that every position of the fact is populated with a node
// allowed in that position.
func (f Fact) Validate() error {
	if f.Subject.IsZero() {
		return fmt.Errorf("%w: missing subject", ErrInvalidFact)
	}
	if !f.Subject.IsAbsolute() {
		return fmt.Errorf("%w: subject %s", ErrRelativeID, f.Subject)
	}
	if f.Predicate == "" {
		return fmt.Errorf("%w: missing predicate", ErrInvalidFact)
	}
	switch f.Object.(type) {
	case quad.IRI, quad.BNode, quad.String, quad.TypedString, quad.LangString:
		return nil
	case nil:
		return fmt.Errorf("%w: missing object", ErrInvalidFact)
	default:
		return fmt.Errorf("%w: unsupported object node %T", ErrInvalidFact, f.Object)
	}
}

// IsLiteral reports whether v is a literal node.
func IsLiteral(v quad.Value) bool {
	switch v.(type) {
	case quad.String, quad.TypedString, quad.LangString:
		return true
	}
	return false
}

// Language returns the language tag of a language-tagged literal.
func Language(v quad.Value) (string, bool) {
	if ls, ok := v.(quad.LangString); ok && ls.Lang != "" {
		return ls.Lang, true
	}
	return "", false
}
