package query

import (
	"strconv"
	"strings"

	"github.com/c360studio/semmap/mapping"
)

// Form is the result form of a translated query.
type Form int

// Query forms.
const (
	FormSelect Form = iota
	FormAsk
	FormConstruct
	FormScalarAggregate
)

func (f Form) String() string {
	switch f {
	case FormSelect:
		return "select"
	case FormAsk:
		return "ask"
	case FormConstruct:
		return "construct"
	case FormScalarAggregate:
		return "scalar"
	default:
		return "unknown"
	}
}

// Cardinality is the result-count contract of a Select query.
type Cardinality int

// Cardinalities.
const (
	CardinalityMany Cardinality = iota
	CardinalityFirst
	CardinalitySingle
)

// Term is a pattern or filter operand.
type Term interface {
	String() string
	term()
}

// Var is a query variable.
type Var string

// Literal is a constant operand. Value is a Go value or a graph node.
type Literal struct {
	Value any
}

func (Var) term()     {}
func (Literal) term() {}

func (v Var) String() string { return "?" + string(v) }

func (l Literal) String() string { return RenderLiteral(l.Value) }

// Pattern is a triple pattern. Optional patterns may stay unbound; Multi
// marks collection members, which join on any element.
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
	Optional  bool
	Multi     bool
}

func (p Pattern) String() string {
	s := p.Subject.String() + " " + p.Predicate.String() + " " + p.Object.String() + " ."
	if p.Optional {
		return "OPTIONAL { " + s + " }"
	}
	return s
}

// Condition is a filter expression.
type Condition interface {
	String() string
	condition()
}

// Comparison compares two terms.
type Comparison struct {
	Op          Op
	Left, Right Term
}

// Logical joins conditions with OpAnd or OpOr.
type Logical struct {
	Op       Op
	Operands []Condition
}

// Negation negates a condition.
type Negation struct {
	Operand Condition
}

// Exists holds when the patterns match.
type Exists struct {
	Patterns []Pattern
}

func (Comparison) condition() {}
func (Logical) condition()    {}
func (Negation) condition()   {}
func (Exists) condition()     {}

func (c Comparison) String() string {
	return c.Left.String() + " " + c.Op.String() + " " + c.Right.String()
}

func (l Logical) String() string {
	parts := make([]string, 0, len(l.Operands))
	for _, o := range l.Operands {
		parts = append(parts, o.String())
	}
	return "(" + strings.Join(parts, " "+l.Op.String()+" ") + ")"
}

func (n Negation) String() string { return "!(" + n.Operand.String() + ")" }

func (e Exists) String() string {
	parts := make([]string, 0, len(e.Patterns))
	for _, p := range e.Patterns {
		parts = append(parts, p.String())
	}
	return "EXISTS { " + strings.Join(parts, " ") + " }"
}

// OrderTerm sorts by a variable.
type OrderTerm struct {
	Var        Var
	Descending bool
}

// Query is a translated query. It is built once by Translate and not
// modified afterward.
type Query struct {
	Form        Form
	Subject     Var
	Patterns    []Pattern
	Filters     []Condition
	Projection  []Var
	Aggregate   string
	Order       []OrderTerm
	Distinct    bool
	Limit       int
	Offset      int
	Cardinality Cardinality

	// Casts are applied to materialized entities after execution, in order.
	Casts []*mapping.TypeDescriptor
}

// HasLimit reports whether the query is limited.
func (q *Query) HasLimit() bool { return q.Limit >= 0 }

// String renders the query as SPARQL.
func (q *Query) String() string {
	var sb strings.Builder
	switch q.Form {
	case FormAsk:
		sb.WriteString("ASK\n")
		if q.HasLimit() || q.Offset > 0 {
			sb.WriteString("WHERE {\n{\nSELECT DISTINCT " + q.Subject.String() + "\n")
			q.writeWhere(&sb)
			q.writeModifiers(&sb)
			sb.WriteString("}\n}")
			return sb.String()
		}
		q.writeWhere(&sb)
		return strings.TrimRight(sb.String(), "\n")
	case FormScalarAggregate:
		sb.WriteString("SELECT (" + q.Aggregate + "(DISTINCT " + q.Subject.String() + ") AS ?value)\n")
		if q.HasLimit() || q.Offset > 0 {
			sb.WriteString("WHERE {\n{\nSELECT DISTINCT " + q.Subject.String() + "\n")
			q.writeWhere(&sb)
			q.writeModifiers(&sb)
			sb.WriteString("}\n}")
			return sb.String()
		}
		q.writeWhere(&sb)
		return strings.TrimRight(sb.String(), "\n")
	case FormConstruct:
		s := q.Subject.String()
		sb.WriteString("CONSTRUCT { " + s + " ?p ?o . }\nWHERE {\n{\n")
		sb.WriteString("SELECT DISTINCT " + s + "\n")
		q.writeWhere(&sb)
		q.writeModifiers(&sb)
		sb.WriteString("}\n" + s + " ?p ?o .\n}")
		return sb.String()
	default:
		sb.WriteString("SELECT ")
		if q.Distinct {
			sb.WriteString("DISTINCT ")
		}
		vars := make([]string, 0, len(q.Projection))
		for _, v := range q.Projection {
			vars = append(vars, v.String())
		}
		sb.WriteString(strings.Join(vars, " ") + "\n")
		q.writeWhere(&sb)
		q.writeModifiers(&sb)
		return strings.TrimRight(sb.String(), "\n")
	}
}

func (q *Query) writeWhere(sb *strings.Builder) {
	sb.WriteString("WHERE {\n")
	for _, p := range q.Patterns {
		sb.WriteString("  " + p.String() + "\n")
	}
	for _, f := range q.Filters {
		sb.WriteString("  FILTER(" + f.String() + ")\n")
	}
	sb.WriteString("}\n")
}

func (q *Query) writeModifiers(sb *strings.Builder) {
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			if o.Descending {
				parts = append(parts, "DESC("+o.Var.String()+")")
			} else {
				parts = append(parts, "ASC("+o.Var.String()+")")
			}
		}
		sb.WriteString("ORDER BY " + strings.Join(parts, " ") + "\n")
	}
	if q.HasLimit() {
		sb.WriteString("LIMIT " + strconv.Itoa(q.Limit) + "\n")
	}
	if q.Offset > 0 {
		sb.WriteString("OFFSET " + strconv.Itoa(q.Offset) + "\n")
	}
}
