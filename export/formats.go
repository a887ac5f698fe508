package export

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/nquads"

	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/vocabulary"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"

	// FormatNQuads produces N-Quads (.nq) output, keeping named graphs.
	FormatNQuads Format = "nquads"

	// FormatJSONLD produces JSON-LD (.jsonld) output.
	FormatJSONLD Format = "jsonld"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string

	// Graphs reports whether named graphs survive serialization.
	Graphs bool
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatTurtle: {
		Name:        FormatTurtle,
		MIMEType:    "text/turtle",
		Extension:   ".ttl",
		Description: "Turtle - Terse RDF Triple Language",
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples - Line-based RDF format",
	},
	FormatNQuads: {
		Name:        FormatNQuads,
		MIMEType:    "application/n-quads",
		Extension:   ".nq",
		Description: "N-Quads - N-Triples with named graphs",
		Graphs:      true,
	},
	FormatJSONLD: {
		Name:        FormatJSONLD,
		MIMEType:    "application/ld+json",
		Extension:   ".jsonld",
		Description: "JSON-LD - JSON for Linked Data",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// ParseFormat resolves a format name or file extension.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, info := range FormatRegistry {
		if name == string(f) || name == info.Extension || "."+name == info.Extension {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

var localName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// TurtleWriter writes RDF in Turtle format, one block per subject.
type TurtleWriter struct {
	w        io.Writer
	registry *vocabulary.Registry
	err      error
}

// NewTurtleWriter creates a Turtle writer abbreviating IRIs with registry.
func NewTurtleWriter(w io.Writer, registry *vocabulary.Registry) *TurtleWriter {
	if registry == nil {
		registry = vocabulary.DefaultRegistry()
	}
	return &TurtleWriter{w: w, registry: registry}
}

func (t *TurtleWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

// WritePrefixes writes prefix declarations sorted by prefix.
func (t *TurtleWriter) WritePrefixes() error {
	for _, ns := range t.registry.Namespaces() {
		t.printf("@prefix %s: <%s> .\n", ns.Prefix, ns.IRI)
	}
	t.printf("\n")
	return t.err
}

// WriteSubject writes every fact of one subject as a single statement block.
func (t *TurtleWriter) WriteSubject(subject graph.EntityID, facts []graph.Fact) error {
	if len(facts) == 0 {
		return t.err
	}
	t.printf("%s\n", t.term(subject.Node()))
	for i, f := range facts {
		terminator := " ;"
		if i == len(facts)-1 {
			terminator = " ."
		}
		predicate := t.term(f.Predicate)
		if f.Predicate == graph.RDFType {
			predicate = "a"
		}
		t.printf("    %s %s%s\n", predicate, t.term(f.Object), terminator)
	}
	t.printf("\n")
	return t.err
}

// term renders a node, abbreviating IRIs whose local part is a valid
// prefixed name.
func (t *TurtleWriter) term(v quad.Value) string {
	switch x := v.(type) {
	case quad.IRI:
		if short := t.registry.Shorten(x); !strings.HasPrefix(short, "<") {
			if _, local, _ := strings.Cut(short, ":"); localName.MatchString(local) {
				return short
			}
		}
		return x.String()
	case quad.TypedString:
		return quad.String(x.Value).String() + "^^" + t.term(x.Type)
	case nil:
		return `""`
	default:
		return x.String()
	}
}

// NTriplesWriter writes RDF in N-Triples or N-Quads format.
type NTriplesWriter struct {
	qw     *nquads.Writer
	graphs bool
}

// NewNTriplesWriter creates a writer. When graphs is false graph labels are
// dropped and the output is N-Triples.
func NewNTriplesWriter(w io.Writer, graphs bool) *NTriplesWriter {
	return &NTriplesWriter{qw: nquads.NewWriter(w), graphs: graphs}
}

// WriteFact writes a single statement.
func (n *NTriplesWriter) WriteFact(f graph.Fact) error {
	if !n.graphs {
		f.Graph = graph.DefaultGraph
	}
	return n.qw.WriteQuad(f.Quad())
}

// JSONLDDocument represents a JSON-LD document structure.
type JSONLDDocument struct {
	Context map[string]any `json:"@context"`
	Graph   []JSONLDNode   `json:"@graph"`
}

// JSONLDNode represents a node in a JSON-LD graph.
type JSONLDNode struct {
	ID         string         `json:"@id"`
	Type       []string       `json:"@type,omitempty"`
	Properties map[string]any `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for JSONLDNode.
func (n JSONLDNode) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Properties)+2)
	for k, v := range n.Properties {
		m[k] = v
	}
	m["@id"] = n.ID
	if len(n.Type) > 0 {
		m["@type"] = n.Type
	}
	return json.Marshal(m)
}

// JSONLDWriter accumulates nodes and writes them as one expanded document
// with a prefix context.
type JSONLDWriter struct {
	doc JSONLDDocument
}

// NewJSONLDWriter creates a JSON-LD writer with the registry's namespaces
// as @context.
func NewJSONLDWriter(registry *vocabulary.Registry) *JSONLDWriter {
	if registry == nil {
		registry = vocabulary.DefaultRegistry()
	}
	ctx := make(map[string]any)
	for _, ns := range registry.Namespaces() {
		ctx[ns.Prefix] = ns.IRI
	}
	return &JSONLDWriter{doc: JSONLDDocument{Context: ctx, Graph: []JSONLDNode{}}}
}

// AddSubject adds a node built from the facts of one subject. rdf:type IRIs
// become @type, repeated predicates become arrays.
func (j *JSONLDWriter) AddSubject(subject graph.EntityID, facts []graph.Fact) {
	node := JSONLDNode{ID: subject.Node().String(), Properties: map[string]any{}}
	if !subject.IsBlank() {
		node.ID = subject.IRI()
	}
	for _, f := range facts {
		if iri, ok := f.Object.(quad.IRI); ok && f.Predicate == graph.RDFType {
			node.Type = append(node.Type, string(iri))
			continue
		}
		key := string(f.Predicate)
		val := jsonLDValue(f.Object)
		switch cur := node.Properties[key].(type) {
		case nil:
			node.Properties[key] = val
		case []any:
			node.Properties[key] = append(cur, val)
		default:
			node.Properties[key] = []any{cur, val}
		}
	}
	j.doc.Graph = append(j.doc.Graph, node)
}

// WriteTo writes the indented document.
func (j *JSONLDWriter) WriteTo(w io.Writer) (int64, error) {
	data, err := json.MarshalIndent(j.doc, "", "  ")
	if err != nil {
		return 0, err
	}
	n, err := w.Write(append(data, '\n'))
	return int64(n), err
}

func jsonLDValue(v quad.Value) any {
	switch x := v.(type) {
	case quad.IRI:
		return map[string]string{"@id": string(x)}
	case quad.BNode:
		return map[string]string{"@id": x.String()}
	case quad.String:
		return string(x)
	case quad.LangString:
		return map[string]string{"@value": string(x.Value), "@language": x.Lang}
	case quad.TypedString:
		return map[string]string{"@value": string(x.Value), "@type": string(x.Type)}
	case nil:
		return nil
	default:
		return x.String()
	}
}
