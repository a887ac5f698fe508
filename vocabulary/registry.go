// Package vocabulary provides the namespace registry used to turn prefixed
// names into predicate and class IRIs, and back into prefix:local form for
// diagnostics and serialization.
//
// A Registry is read-only once built. With returns an extended copy, so a
// registry can be shared between concurrent sessions.
package vocabulary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/owl"
	"github.com/cayleygraph/quad/voc/rdf"
	"github.com/cayleygraph/quad/voc/rdfs"
	"github.com/cayleygraph/quad/voc/xsd"

	"github.com/c360studio/semmap/vocabulary/foaf"
)

// Well-known namespace IRIs not covered by the quad voc packages.
const (
	FOAF   = foaf.Namespace
	DC     = "http://purl.org/dc/terms/"
	SKOS   = "http://www.w3.org/2004/02/skos/core#"
	PROV   = "http://www.w3.org/ns/prov#"
	Schema = "https://schema.org/"
)

// Namespace binds a prefix to a namespace IRI.
type Namespace struct {
	Prefix string `yaml:"prefix" json:"prefix"`
	IRI    string `yaml:"iri" json:"iri"`
}

// Registry maps prefixes to namespace IRIs.
type Registry struct {
	prefixes map[string]string
}

// NewRegistry creates a registry holding the given namespaces. Later entries
// win when a prefix is repeated.
func NewRegistry(namespaces ...Namespace) *Registry {
	r := &Registry{prefixes: make(map[string]string, len(namespaces))}
	for _, ns := range namespaces {
		r.prefixes[strings.TrimSuffix(ns.Prefix, ":")] = ns.IRI
	}
	return r
}

// DefaultRegistry returns a registry with the standard RDF, OWL, XSD, FOAF,
// Dublin Core, SKOS, PROV-O and Schema.org prefixes.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultNamespaces()...)
}

func defaultNamespaces() []Namespace {
	return []Namespace{
		{Prefix: "rdf", IRI: rdf.NS},
		{Prefix: "rdfs", IRI: rdfs.NS},
		{Prefix: "owl", IRI: owl.NS},
		{Prefix: "xsd", IRI: xsd.NS},
		{Prefix: "foaf", IRI: FOAF},
		{Prefix: "dc", IRI: DC},
		{Prefix: "skos", IRI: SKOS},
		{Prefix: "prov", IRI: PROV},
		{Prefix: "schema", IRI: Schema},
	}
}

// With returns a copy of the registry extended with namespaces.
func (r *Registry) With(namespaces ...Namespace) *Registry {
	out := &Registry{prefixes: make(map[string]string, len(r.prefixes)+len(namespaces))}
	for p, iri := range r.prefixes {
		out.prefixes[p] = iri
	}
	for _, ns := range namespaces {
		out.prefixes[strings.TrimSuffix(ns.Prefix, ":")] = ns.IRI
	}
	return out
}

// ResolveURI resolves prefix and local name into a full IRI.
func (r *Registry) ResolveURI(prefix, localName string) (quad.IRI, error) {
	ns, ok := r.prefixes[prefix]
	if !ok {
		return "", fmt.Errorf("%w: %s:%s", ErrUnknownPrefix, prefix, localName)
	}
	return quad.IRI(ns + localName), nil
}

// Expand resolves a "prefix:local" name. Names wrapped in angle brackets
// and names whose scheme is not a registered prefix are returned as full IRIs.
func (r *Registry) Expand(name string) (quad.IRI, error) {
	if strings.HasPrefix(name, "<") && strings.HasSuffix(name, ">") {
		return quad.IRI(name[1 : len(name)-1]), nil
	}
	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		return "", fmt.Errorf("%w: %q has no prefix", ErrUnknownPrefix, name)
	}
	if _, known := r.prefixes[prefix]; !known && strings.HasPrefix(local, "//") {
		return quad.IRI(name), nil
	}
	return r.ResolveURI(prefix, local)
}

// Shorten renders iri as prefix:local using the longest matching namespace.
// IRIs outside every registered namespace are rendered as <iri>.
func (r *Registry) Shorten(iri quad.IRI) string {
	s := string(iri)
	best, bestPrefix := "", ""
	for p, ns := range r.prefixes {
		if len(ns) > len(best) && strings.HasPrefix(s, ns) {
			best, bestPrefix = ns, p
		}
	}
	if best == "" {
		return iri.String()
	}
	return bestPrefix + ":" + s[len(best):]
}

// Namespaces lists the registered namespaces sorted by prefix.
func (r *Registry) Namespaces() []Namespace {
	out := make([]Namespace, 0, len(r.prefixes))
	for p, iri := range r.prefixes {
		out = append(out, Namespace{Prefix: p, IRI: iri})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// LocalName returns the part of iri after the last '#' or '/'.
func LocalName(iri quad.IRI) string {
	s := string(iri)
	if i := strings.LastIndexAny(s, "#/"); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}
