package memstore

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cayleygraph/quad"

	"github.com/c360studio/semmap/convert"
	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/query"
)

var (
	errUnbound      = errors.New("unbound variable")
	errIncomparable = errors.New("incomparable values")
)

type row map[query.Var]quad.Value

func (r row) with(v query.Var, n quad.Value) row {
	out := make(row, len(r)+1)
	for k, val := range r {
		out[k] = val
	}
	out[v] = n
	return out
}

// evaluator solves a query over a fixed fact snapshot.
type evaluator struct {
	facts     []graph.Fact
	converter convert.Converter
}

// subjects returns the distinct subject bindings of q in solution order,
// after filtering and ordering.
func (e *evaluator) subjects(q *query.Query) []graph.EntityID {
	rows := e.match([]row{{}}, q.Patterns)
	rows = e.filter(rows, q.Filters)
	if len(q.Order) > 0 {
		e.sort(rows, q.Order)
	}

	seen := map[graph.EntityID]bool{}
	var out []graph.EntityID
	for _, r := range rows {
		id, ok := graph.IDFromNode(r[q.Subject])
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (e *evaluator) match(rows []row, patterns []query.Pattern) []row {
	for _, p := range patterns {
		var next []row
		for _, r := range rows {
			ext := e.matchPattern(r, p)
			if len(ext) == 0 && p.Optional {
				next = append(next, r)
				continue
			}
			next = append(next, ext...)
		}
		rows = next
	}
	return rows
}

func (e *evaluator) matchPattern(r row, p query.Pattern) []row {
	var out []row
	for _, f := range e.facts {
		cur := r
		ok := true
		for _, pos := range []struct {
			term query.Term
			node quad.Value
		}{
			{p.Subject, f.Subject.Node()},
			{p.Predicate, f.Predicate},
			{p.Object, f.Object},
		} {
			cur, ok = e.unify(cur, pos.term, pos.node)
			if !ok {
				break
			}
		}
		if ok {
			out = append(out, cur)
		}
	}
	return out
}

func (e *evaluator) unify(r row, t query.Term, n quad.Value) (row, bool) {
	switch x := t.(type) {
	case query.Var:
		if bound, ok := r[x]; ok {
			return r, bound == n
		}
		return r.with(x, n), true
	case query.Literal:
		return r, e.literalMatches(n, x.Value)
	default:
		return r, false
	}
}

// literalMatches compares a node with a constant. Graph nodes and
// identifiers compare structurally; Go values compare with the node's
// converted value.
func (e *evaluator) literalMatches(n quad.Value, lit any) bool {
	switch l := lit.(type) {
	case graph.EntityID:
		return n == l.Node()
	case quad.IRI:
		return n == graph.NormalizeNode(l)
	case quad.BNode, quad.TypedString, quad.LangString:
		return n == lit
	case quad.String:
		if n == lit {
			return true
		}
		lit = string(l)
	}
	if _, isResource := graph.IDFromNode(n); isResource {
		return false
	}
	val, err := e.converter.Convert(n, convert.Context{})
	if err != nil {
		return false
	}
	c, err := compare(val, lit)
	return err == nil && c == 0
}

func (e *evaluator) filter(rows []row, conds []query.Condition) []row {
	if len(conds) == 0 {
		return rows
	}
	var out []row
	for _, r := range rows {
		keep := true
		for _, c := range conds {
			ok, err := e.eval(r, c)
			if err != nil || !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

// eval evaluates a condition with SPARQL error semantics: an error in one
// branch of || is masked by a true sibling, and && is false if any operand
// is false.
func (e *evaluator) eval(r row, c query.Condition) (bool, error) {
	switch x := c.(type) {
	case query.Comparison:
		left, err := e.value(r, x.Left)
		if err != nil {
			return false, err
		}
		right, err := e.value(r, x.Right)
		if err != nil {
			return false, err
		}
		return applyOp(x.Op, left, right)
	case query.Logical:
		var firstErr error
		for _, o := range x.Operands {
			ok, err := e.eval(r, o)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if x.Op == query.OpOr && ok {
				return true, nil
			}
			if x.Op == query.OpAnd && !ok {
				return false, nil
			}
		}
		if firstErr != nil {
			return false, firstErr
		}
		return x.Op == query.OpAnd, nil
	case query.Negation:
		ok, err := e.eval(r, x.Operand)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case query.Exists:
		return len(e.match([]row{r}, x.Patterns)) > 0, nil
	default:
		return false, errIncomparable
	}
}

func (e *evaluator) value(r row, t query.Term) (any, error) {
	switch x := t.(type) {
	case query.Var:
		n, ok := r[x]
		if !ok {
			return nil, errUnbound
		}
		return e.converter.Convert(n, convert.Context{})
	case query.Literal:
		if n, ok := x.Value.(quad.Value); ok {
			return e.converter.Convert(n, convert.Context{})
		}
		return x.Value, nil
	default:
		return nil, errIncomparable
	}
}

func applyOp(op query.Op, left, right any) (bool, error) {
	c, err := compare(left, right)
	if err != nil {
		switch op {
		case query.OpEq:
			return false, nil
		case query.OpNe:
			return true, nil
		}
		return false, err
	}
	switch op {
	case query.OpEq:
		return c == 0, nil
	case query.OpNe:
		return c != 0, nil
	case query.OpLt:
		return c < 0, nil
	case query.OpLe:
		return c <= 0, nil
	case query.OpGt:
		return c > 0, nil
	case query.OpGe:
		return c >= 0, nil
	}
	return false, errIncomparable
}

// compare orders two converted values of the same family.
func compare(a, b any) (int, error) {
	if x, ok := number(a); ok {
		y, ok := number(b)
		if !ok {
			return 0, errIncomparable
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, errIncomparable
		}
		return strings.Compare(x, y), nil
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, errIncomparable
		}
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		}
		return 1, nil
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, errIncomparable
		}
		return x.Compare(y), nil
	case graph.EntityID:
		y, ok := b.(graph.EntityID)
		if !ok {
			return 0, errIncomparable
		}
		return strings.Compare(x.String(), y.String()), nil
	}
	return 0, errIncomparable
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// sort orders rows by the order terms. Unbound values sort first; values of
// different families fall back to their lexical form.
func (e *evaluator) sort(rows []row, order []query.OrderTerm) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			c := e.compareNodes(rows[i][o.Var], rows[j][o.Var])
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func (e *evaluator) compareNodes(a, b quad.Value) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	av, errA := e.converter.Convert(a, convert.Context{})
	bv, errB := e.converter.Convert(b, convert.Context{})
	if errA == nil && errB == nil {
		if c, err := compare(av, bv); err == nil {
			return c
		}
	}
	return strings.Compare(a.String(), b.String())
}
