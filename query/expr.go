// Package query holds the caller-facing query expression tree and its
// translation into a SPARQL-shaped Query.
//
// A Model names a source view, filter expressions over view members, an
// ordering and a chain of result operators. Translate resolves members
// through the mapping resolver and emits graph patterns, filters and a
// result form.
package query

import (
	"fmt"
	"strings"

	"github.com/c360studio/semmap/mapping"
)

// Expr is a node of the filter expression tree.
type Expr interface {
	fmt.Stringer
	expr()
}

// Subject is the entity being queried.
type Subject struct{}

// Member reads a property of Source, which is Subject or another Member.
type Member struct {
	Source Expr
	Name   string
}

// Constant is a literal operand.
type Constant struct {
	Value any
}

// Op is a binary operator.
type Op int

// Binary operators.
const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var opSymbols = [...]string{"=", "!=", "<", "<=", ">", ">=", "&&", "||"}

func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

func (o Op) comparison() bool { return o <= OpGe }

// Binary applies Op to Left and Right.
type Binary struct {
	Op          Op
	Left, Right Expr
}

// Not negates Operand.
type Not struct {
	Operand Expr
}

// TypeIs holds when Source carries every class of Type.
type TypeIs struct {
	Source Expr
	Type   *mapping.TypeDescriptor
}

func (Subject) expr()  {}
func (Member) expr()   {}
func (Constant) expr() {}
func (Binary) expr()   {}
func (Not) expr()      {}
func (TypeIs) expr()   {}

func (Subject) String() string { return "it" }

func (m Member) String() string { return m.Source.String() + "." + m.Name }

func (c Constant) String() string { return fmt.Sprintf("%#v", c.Value) }

func (b Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

func (n Not) String() string { return "!" + n.Operand.String() }

func (t TypeIs) String() string { return t.Source.String() + " is " + t.Type.Name() }

// Path builds a member chain starting at the subject:
// Path("knows", "givenName") reads it.knows.givenName.
func Path(names ...string) Expr {
	var e Expr = Subject{}
	for _, n := range names {
		e = Member{Source: e, Name: n}
	}
	return e
}

// Dotted is Path for a dot-separated chain.
func Dotted(path string) Expr {
	return Path(strings.Split(path, ".")...)
}

// Val wraps a literal operand.
func Val(v any) Expr { return Constant{Value: v} }

// Eq is left == right.
func Eq(left, right Expr) Expr { return Binary{Op: OpEq, Left: left, Right: right} }

// Ne is left != right.
func Ne(left, right Expr) Expr { return Binary{Op: OpNe, Left: left, Right: right} }

// Lt is left < right.
func Lt(left, right Expr) Expr { return Binary{Op: OpLt, Left: left, Right: right} }

// Le is left <= right.
func Le(left, right Expr) Expr { return Binary{Op: OpLe, Left: left, Right: right} }

// Gt is left > right.
func Gt(left, right Expr) Expr { return Binary{Op: OpGt, Left: left, Right: right} }

// Ge is left >= right.
func Ge(left, right Expr) Expr { return Binary{Op: OpGe, Left: left, Right: right} }

// And joins operands conjunctively.
func And(operands ...Expr) Expr { return fold(OpAnd, operands) }

// Or joins operands disjunctively.
func Or(operands ...Expr) Expr { return fold(OpOr, operands) }

// Negate is !operand.
func Negate(operand Expr) Expr { return Not{Operand: operand} }

// Is holds when the subject carries every class of t.
func Is(t *mapping.TypeDescriptor) Expr { return TypeIs{Source: Subject{}, Type: t} }

func fold(op Op, operands []Expr) Expr {
	if len(operands) == 0 {
		return Constant{Value: op == OpAnd}
	}
	e := operands[0]
	for _, o := range operands[1:] {
		e = Binary{Op: op, Left: e, Right: o}
	}
	return e
}
