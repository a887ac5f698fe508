package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/c360studio/semmap/graph"
)

const xsdDouble = "http://www.w3.org/2001/XMLSchema#double"

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// RenderLiteral renders a constant operand in query syntax. Strings are
// quoted, integers and finite reals are bare and locale independent, identifiers
// and IRIs are angle-bracketed, and graph literals keep their own form.
// Any other value is rendered as a quoted string.
func RenderLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return quote(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		if special, ok := renderSpecialFloat(float64(x)); ok {
			return special
		}
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		if special, ok := renderSpecialFloat(x); ok {
			return special
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case graph.EntityID:
		if x.IsBlank() {
			return x.String()
		}
		return "<" + x.IRI() + ">"
	case quad.IRI:
		return "<" + string(x) + ">"
	case *url.URL:
		return "<" + x.String() + ">"
	case quad.String:
		return quote(string(x))
	case quad.TypedString, quad.LangString, quad.BNode:
		return x.(quad.Value).String()
	default:
		return quote(fmt.Sprint(v))
	}
}

// renderSpecialFloat renders NaN and the infinities as typed doubles, which
// have no bare numeric form.
func renderSpecialFloat(f float64) (string, bool) {
	var lexical string
	switch {
	case math.IsNaN(f):
		lexical = "NaN"
	case math.IsInf(f, 1):
		lexical = "INF"
	case math.IsInf(f, -1):
		lexical = "-INF"
	default:
		return "", false
	}
	return `"` + lexical + `"^^<` + xsdDouble + `>`, true
}

func quote(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}
