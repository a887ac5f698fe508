// Package convert turns graph nodes into Go values and back. A Fallback
// converter picks the best-matching literal converter by datatype; resource
// nodes become entity identifiers.
package convert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/xsd"

	"github.com/c360studio/semmap/graph"
)

// ErrConversion is returned when a node or value has no conversion.
var ErrConversion = errors.New("conversion error")

// XSD datatype IRIs in expanded form.
var (
	XSDString   = quad.IRI(xsd.NS + "string")
	XSDBoolean  = quad.IRI(xsd.NS + "boolean")
	XSDInteger  = quad.IRI(xsd.NS + "integer")
	XSDInt      = quad.IRI(xsd.NS + "int")
	XSDLong     = quad.IRI(xsd.NS + "long")
	XSDShort    = quad.IRI(xsd.NS + "short")
	XSDDouble   = quad.IRI(xsd.NS + "double")
	XSDFloat    = quad.IRI(xsd.NS + "float")
	XSDDecimal  = quad.IRI(xsd.NS + "decimal")
	XSDDateTime = quad.IRI(xsd.NS + "dateTime")
	XSDDate     = quad.IRI(xsd.NS + "date")
)

// Context carries the session state conversions depend on.
type Context struct {
	// Language tags plain strings written back to the graph. Empty means
	// untagged.
	Language string
}

// Converter converts between graph nodes and Go values.
type Converter interface {
	Convert(v quad.Value, ctx Context) (any, error)
	ConvertBack(v any, ctx Context) (quad.Value, error)
}

// Match ranks how well a converter handles a node. Zero means not at all.
type Match int

// Match levels.
const (
	NoMatch Match = iota
	GenericMatch
	DatatypeMatch
)

// LiteralConverter converts one family of literal nodes.
type LiteralConverter interface {
	Match(v quad.Value) Match
	Convert(v quad.Value, ctx Context) (any, error)
}

// Fallback converts nodes not handled by a specialized converter. Literal
// converters are tried by best match; ties go to the earliest registered.
type Fallback struct {
	converters []LiteralConverter
}

var _ Converter = (*Fallback)(nil)

// NewFallback creates a converter with the built-in XSD catalog followed by
// extra converters.
func NewFallback(extra ...LiteralConverter) *Fallback {
	cs := []LiteralConverter{
		datatypeConverter{types: []quad.IRI{XSDInteger, XSDInt, XSDLong, XSDShort}, parse: parseInt},
		datatypeConverter{types: []quad.IRI{XSDDouble, XSDFloat, XSDDecimal}, parse: parseFloat},
		datatypeConverter{types: []quad.IRI{XSDBoolean}, parse: parseBool},
		datatypeConverter{types: []quad.IRI{XSDDateTime, XSDDate}, parse: parseTime},
		stringConverter{},
	}
	return &Fallback{converters: append(cs, extra...)}
}

// Convert returns an EntityID for IRI and blank nodes and a Go value for
// literals.
func (c *Fallback) Convert(v quad.Value, ctx Context) (any, error) {
	if id, ok := graph.IDFromNode(v); ok {
		return id, nil
	}
	var best LiteralConverter
	bestMatch := NoMatch
	for _, lc := range c.converters {
		if m := lc.Match(v); m > bestMatch {
			best, bestMatch = lc, m
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no converter for %T", ErrConversion, v)
	}
	return best.Convert(v, ctx)
}

// ConvertBack returns the node for a Go value. Strings are tagged with the
// context language when one is set.
func (c *Fallback) ConvertBack(v any, ctx Context) (quad.Value, error) {
	switch x := v.(type) {
	case quad.Value:
		return x, nil
	case graph.EntityID:
		return x.Node(), nil
	case string:
		if ctx.Language != "" {
			return quad.LangString{Value: quad.String(x), Lang: ctx.Language}, nil
		}
		return quad.String(x), nil
	case int:
		return typed(strconv.FormatInt(int64(x), 10), XSDInteger), nil
	case int32:
		return typed(strconv.FormatInt(int64(x), 10), XSDInt), nil
	case int64:
		return typed(strconv.FormatInt(x, 10), XSDLong), nil
	case float32:
		return typed(strconv.FormatFloat(float64(x), 'g', -1, 32), XSDFloat), nil
	case float64:
		return typed(strconv.FormatFloat(x, 'g', -1, 64), XSDDouble), nil
	case bool:
		return typed(strconv.FormatBool(x), XSDBoolean), nil
	case time.Time:
		return typed(x.Format(time.RFC3339Nano), XSDDateTime), nil
	case nil:
		return nil, fmt.Errorf("%w: nil value", ErrConversion)
	default:
		return nil, fmt.Errorf("%w: unsupported value %T", ErrConversion, v)
	}
}

func typed(s string, datatype quad.IRI) quad.TypedString {
	return quad.TypedString{Value: quad.String(s), Type: datatype}
}

// Datatype returns the expanded datatype of a typed literal. The compact
// "xsd:" form is expanded.
func Datatype(v quad.Value) (quad.IRI, bool) {
	ts, ok := v.(quad.TypedString)
	if !ok {
		return "", false
	}
	return expand(ts.Type), true
}

func expand(t quad.IRI) quad.IRI {
	if s := string(t); strings.HasPrefix(s, "xsd:") {
		return quad.IRI(xsd.NS + strings.TrimPrefix(s, "xsd:"))
	}
	return t
}

type datatypeConverter struct {
	types []quad.IRI
	parse func(string) (any, error)
}

func (d datatypeConverter) Match(v quad.Value) Match {
	dt, ok := Datatype(v)
	if !ok {
		return NoMatch
	}
	for _, t := range d.types {
		if t == dt {
			return DatatypeMatch
		}
	}
	return NoMatch
}

func (d datatypeConverter) Convert(v quad.Value, _ Context) (any, error) {
	ts := v.(quad.TypedString)
	out, err := d.parse(strings.TrimSpace(string(ts.Value)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConversion, ts, err)
	}
	return out, nil
}

func parseInt(s string) (any, error)   { return strconv.ParseInt(s, 10, 64) }
func parseFloat(s string) (any, error) { return strconv.ParseFloat(s, 64) }
func parseBool(s string) (any, error)  { return strconv.ParseBool(s) }

func parseTime(s string) (any, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", s)
}

// stringConverter handles plain and language-tagged strings, and falls back
// to the lexical form for typed literals no other converter claims.
type stringConverter struct{}

func (stringConverter) Match(v quad.Value) Match {
	switch v.(type) {
	case quad.String, quad.LangString:
		return DatatypeMatch
	case quad.TypedString:
		if dt, _ := Datatype(v); dt == XSDString {
			return DatatypeMatch
		}
		return GenericMatch
	}
	return NoMatch
}

func (stringConverter) Convert(v quad.Value, _ Context) (any, error) {
	switch x := v.(type) {
	case quad.String:
		return string(x), nil
	case quad.LangString:
		return string(x.Value), nil
	case quad.TypedString:
		return string(x.Value), nil
	}
	return nil, fmt.Errorf("%w: not a string literal: %T", ErrConversion, v)
}
