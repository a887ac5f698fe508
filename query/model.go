package query

import (
	"fmt"
	"slices"

	"github.com/c360studio/semmap/mapping"
)

// ResultOperator shapes the result of a query.
type ResultOperator interface {
	OperatorName() string
}

// Take limits the result to N entities.
type Take struct{ N int }

// Skip drops the first N entities.
type Skip struct{ N int }

// First returns the first entity.
type First struct{}

// Single returns the only entity and fails on more than one.
type Single struct{}

// Count returns the number of matching entities.
type Count struct{}

// Any reports whether any entity matches.
type Any struct{}

// Cast checks every materialized entity against Type.
type Cast struct{ Type *mapping.TypeDescriptor }

// Distinct drops duplicate entities.
type Distinct struct{}

func (Take) OperatorName() string     { return "Take" }
func (Skip) OperatorName() string     { return "Skip" }
func (First) OperatorName() string    { return "First" }
func (Single) OperatorName() string   { return "Single" }
func (Count) OperatorName() string    { return "Count" }
func (Any) OperatorName() string      { return "Any" }
func (Cast) OperatorName() string     { return "Cast" }
func (Distinct) OperatorName() string { return "Distinct" }

// Ordering sorts by a member path.
type Ordering struct {
	Key        Expr
	Descending bool
}

// Model is a query expression over one source view. Builder methods return
// modified copies; a Model is never changed in place.
type Model struct {
	Source    *mapping.TypeDescriptor
	Filters   []Expr
	Orderings []Ordering
	Operators []ResultOperator
}

// From starts a query over entities viewed as t.
func From(t *mapping.TypeDescriptor) Model {
	return Model{Source: t}
}

// Where adds a conjunctive filter.
func (m Model) Where(e Expr) Model {
	m.Filters = append(slices.Clip(m.Filters), e)
	return m
}

// OrderBy sorts ascending by the member at path.
func (m Model) OrderBy(path string) Model {
	m.Orderings = append(slices.Clip(m.Orderings), Ordering{Key: Dotted(path)})
	return m
}

// OrderByDesc sorts descending by the member at path.
func (m Model) OrderByDesc(path string) Model {
	m.Orderings = append(slices.Clip(m.Orderings), Ordering{Key: Dotted(path), Descending: true})
	return m
}

// With appends result operators.
func (m Model) With(ops ...ResultOperator) Model {
	m.Operators = append(slices.Clip(m.Operators), ops...)
	return m
}

// Take limits the result to n entities.
func (m Model) Take(n int) Model { return m.With(Take{N: n}) }

// Skip drops the first n entities.
func (m Model) Skip(n int) Model { return m.With(Skip{N: n}) }

// First returns the first entity.
func (m Model) First() Model { return m.With(First{}) }

// Single returns the only entity.
func (m Model) Single() Model { return m.With(Single{}) }

// Count counts matching entities.
func (m Model) Count() Model { return m.With(Count{}) }

// Any checks for existence.
func (m Model) Any() Model { return m.With(Any{}) }

// Cast checks materialized entities against t.
func (m Model) Cast(t *mapping.TypeDescriptor) Model { return m.With(Cast{Type: t}) }

// Distinct drops duplicates.
func (m Model) Distinct() Model { return m.With(Distinct{}) }

func (m Model) String() string {
	s := "from " + m.Source.Name()
	for _, f := range m.Filters {
		s += " where " + f.String()
	}
	for _, o := range m.Orderings {
		s += " orderby " + o.Key.String()
		if o.Descending {
			s += " desc"
		}
	}
	for _, op := range m.Operators {
		s += fmt.Sprintf(" | %s", op.OperatorName())
	}
	return s
}
