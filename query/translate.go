package query

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
)

// ErrTranslation is returned when a model has no query equivalent.
var ErrTranslation = errors.New("translation error")

// SubjectVar is the variable bound to the queried entity.
const SubjectVar Var = "s"

// Translator turns models into queries using a mapping resolver.
type Translator struct {
	resolver mapping.Resolver
	logger   *slog.Logger
}

// NewTranslator creates a translator.
func NewTranslator(resolver mapping.Resolver, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{resolver: resolver, logger: logger}
}

// Translate is a shorthand for NewTranslator(resolver, nil).Translate(m).
func Translate(m Model, resolver mapping.Resolver) (*Query, error) {
	return NewTranslator(resolver, nil).Translate(m)
}

type pathVar struct {
	v        Var
	prop     mapping.PropertyMapping
	patterns int
}

type builder struct {
	resolver mapping.Resolver
	source   *mapping.TypeDescriptor
	q        *Query
	paths    map[string]pathVar
	next     int
}

// Translate builds a query from m. Clauses are processed in order: source
// type constraint, filters, ordering, then result operators.
func (t *Translator) Translate(m Model) (*Query, error) {
	if m.Source == nil {
		return nil, fmt.Errorf("%w: query without source type", ErrTranslation)
	}
	b := &builder{
		resolver: t.resolver,
		source:   m.Source,
		q: &Query{
			Form:       FormSelect,
			Subject:    SubjectVar,
			Projection: []Var{SubjectVar},
			Distinct:   true,
			Limit:      -1,
		},
		paths: map[string]pathVar{},
	}

	if err := b.sourceConstraint(); err != nil {
		return nil, err
	}
	for _, f := range m.Filters {
		for _, c := range conjuncts(f) {
			if err := b.filter(c); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrTranslation, c, err)
			}
		}
	}
	for _, o := range m.Orderings {
		term, err := b.term(o.Key, true)
		if err != nil {
			return nil, fmt.Errorf("%w: order by %s: %w", ErrTranslation, o.Key, err)
		}
		v, ok := term.(Var)
		if !ok {
			return nil, fmt.Errorf("%w: order by constant %s", ErrTranslation, o.Key)
		}
		b.q.Order = append(b.q.Order, OrderTerm{Var: v, Descending: o.Descending})
	}
	if err := b.operators(m.Operators); err != nil {
		return nil, err
	}
	b.ensureBinding()

	t.logger.Debug("Translated query",
		"model", m.String(),
		"form", b.q.Form.String(),
		"patterns", len(b.q.Patterns),
		"filters", len(b.q.Filters))
	return b.q, nil
}

func conjuncts(e Expr) []Expr {
	if bin, ok := e.(Binary); ok && bin.Op == OpAnd {
		return append(conjuncts(bin.Left), conjuncts(bin.Right)...)
	}
	return []Expr{e}
}

func (b *builder) sourceConstraint() error {
	m, err := b.resolver.MappingFor(b.source)
	if err != nil {
		return fmt.Errorf("%w: source %s: %w", ErrTranslation, b.source, err)
	}
	b.q.Patterns = append(b.q.Patterns, classPatterns(b.q.Subject, m, false)...)
	return nil
}

func classPatterns(subject Term, m *mapping.EntityMapping, optional bool) []Pattern {
	out := make([]Pattern, 0, len(m.Classes))
	for _, c := range m.ClassIRIs() {
		out = append(out, Pattern{
			Subject:   subject,
			Predicate: Literal{Value: graph.RDFType},
			Object:    Literal{Value: c},
			Optional:  optional,
		})
	}
	return out
}

// ensureBinding binds the subject variable when no required pattern does.
func (b *builder) ensureBinding() {
	for _, p := range b.q.Patterns {
		if !p.Optional {
			return
		}
	}
	bind := Pattern{Subject: b.q.Subject, Predicate: Var("p"), Object: Var("o")}
	b.q.Patterns = append([]Pattern{bind}, b.q.Patterns...)
}

// filter translates one top-level conjunct. Equality between a member and a
// constant becomes a pattern with a literal object; anything else becomes a
// FILTER.
func (b *builder) filter(e Expr) error {
	switch x := e.(type) {
	case Constant:
		if v, ok := x.Value.(bool); ok && v {
			return nil
		}
		return errors.New("constant filter")
	case TypeIs:
		if _, ok := x.Source.(Subject); ok {
			m, err := b.resolver.MappingFor(x.Type)
			if err != nil {
				return err
			}
			b.q.Patterns = append(b.q.Patterns, classPatterns(b.q.Subject, m, false)...)
			return nil
		}
	case Binary:
		if x.Op == OpEq {
			member, constant, ok := memberConstant(x)
			if ok && constant.Value != nil {
				return b.literalPattern(member, constant)
			}
		}
	}
	c, err := b.condition(e, false)
	if err != nil {
		return err
	}
	b.q.Filters = append(b.q.Filters, c)
	return nil
}

func memberConstant(x Binary) (Member, Constant, bool) {
	if m, ok := x.Left.(Member); ok {
		if c, ok := x.Right.(Constant); ok {
			return m, c, true
		}
	}
	if m, ok := x.Right.(Member); ok {
		if c, ok := x.Left.(Constant); ok {
			return m, c, true
		}
	}
	return Member{}, Constant{}, false
}

func (b *builder) literalPattern(m Member, c Constant) error {
	subject, typ, err := b.owner(m, false)
	if err != nil {
		return err
	}
	prop, err := b.property(typ, m.Name)
	if err != nil {
		return err
	}
	b.q.Patterns = append(b.q.Patterns, Pattern{
		Subject:   subject,
		Predicate: Literal{Value: prop.Predicate},
		Object:    Literal{Value: c.Value},
		Multi:     prop.Collection,
	})
	return nil
}

// owner resolves the term and view type a member is read from.
func (b *builder) owner(m Member, optional bool) (Term, *mapping.TypeDescriptor, error) {
	switch src := m.Source.(type) {
	case Subject:
		return b.q.Subject, b.source, nil
	case Member:
		pv, err := b.path(src, optional)
		if err != nil {
			return nil, nil, err
		}
		switch pv.prop.Kind {
		case mapping.KindEntity, mapping.KindAny:
		default:
			return nil, nil, fmt.Errorf("member %s of %s value %s", m.Name, pv.prop.Kind, src)
		}
		target := pv.prop.Target
		if target == nil {
			target = mapping.Resource
		}
		return pv.v, target, nil
	default:
		return nil, nil, fmt.Errorf("member %s of unsupported operand %s", m.Name, m.Source)
	}
}

func (b *builder) property(t *mapping.TypeDescriptor, name string) (mapping.PropertyMapping, error) {
	m, err := b.resolver.MappingFor(t)
	if err != nil {
		return mapping.PropertyMapping{}, err
	}
	if p, ok := m.Property(name); ok {
		return p, nil
	}
	views := append([]*mapping.TypeDescriptor{t}, b.resolver.MatchingTypes(m.ClassIRIs())...)
	return b.resolver.ResolvePropertyByName(name, views)
}

// path binds a member chain to a variable, reusing earlier bindings of the
// same chain. A required use upgrades an optional binding.
func (b *builder) path(m Member, optional bool) (pathVar, error) {
	key := m.String()
	if pv, ok := b.paths[key]; ok {
		if !optional {
			b.require(m)
		}
		return pv, nil
	}
	subject, typ, err := b.owner(m, optional)
	if err != nil {
		return pathVar{}, err
	}
	prop, err := b.property(typ, m.Name)
	if err != nil {
		return pathVar{}, err
	}
	v := Var(fmt.Sprintf("v%d", b.next))
	b.next++
	pv := pathVar{v: v, prop: prop, patterns: len(b.q.Patterns)}
	b.q.Patterns = append(b.q.Patterns, Pattern{
		Subject:   subject,
		Predicate: Literal{Value: prop.Predicate},
		Object:    v,
		Optional:  optional,
		Multi:     prop.Collection,
	})
	b.paths[key] = pv
	return pv, nil
}

func (b *builder) require(m Member) {
	for e := Expr(m); ; {
		mem, ok := e.(Member)
		if !ok {
			return
		}
		if pv, ok := b.paths[mem.String()]; ok {
			b.q.Patterns[pv.patterns].Optional = false
		}
		e = mem.Source
	}
}

func (b *builder) term(e Expr, optional bool) (Term, error) {
	switch x := e.(type) {
	case Subject:
		return b.q.Subject, nil
	case Member:
		pv, err := b.path(x, optional)
		if err != nil {
			return nil, err
		}
		return pv.v, nil
	case Constant:
		if x.Value == nil {
			return nil, errors.New("nil constant")
		}
		return Literal{Value: x.Value}, nil
	default:
		return nil, fmt.Errorf("unsupported operand %s", e)
	}
}

// condition translates e into a filter. Members under Or and Not are bound
// through optional patterns so that one unbound branch does not eliminate
// the row.
func (b *builder) condition(e Expr, optional bool) (Condition, error) {
	switch x := e.(type) {
	case Binary:
		if x.Op.comparison() {
			left, err := b.term(x.Left, optional)
			if err != nil {
				return nil, err
			}
			right, err := b.term(x.Right, optional)
			if err != nil {
				return nil, err
			}
			_, lc := left.(Literal)
			_, rc := right.(Literal)
			if lc && rc {
				return nil, errors.New("comparison between constants")
			}
			return Comparison{Op: x.Op, Left: left, Right: right}, nil
		}
		childOptional := optional || x.Op == OpOr
		left, err := b.condition(x.Left, childOptional)
		if err != nil {
			return nil, err
		}
		right, err := b.condition(x.Right, childOptional)
		if err != nil {
			return nil, err
		}
		return Logical{Op: x.Op, Operands: flatten(x.Op, left, right)}, nil
	case Not:
		inner, err := b.condition(x.Operand, true)
		if err != nil {
			return nil, err
		}
		return Negation{Operand: inner}, nil
	case TypeIs:
		subject, err := b.term(x.Source, true)
		if err != nil {
			return nil, err
		}
		m, err := b.resolver.MappingFor(x.Type)
		if err != nil {
			return nil, err
		}
		return Exists{Patterns: classPatterns(subject, m, false)}, nil
	default:
		return nil, fmt.Errorf("non-boolean expression %s", e)
	}
}

func flatten(op Op, operands ...Condition) []Condition {
	var out []Condition
	for _, c := range operands {
		if l, ok := c.(Logical); ok && l.Op == op {
			out = append(out, l.Operands...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// operators applies result operators in order. Count, Any, First and Single
// end the chain.
func (b *builder) operators(ops []ResultOperator) error {
	q := b.q
	var terminal ResultOperator
	for _, op := range ops {
		if terminal != nil {
			if _, ok := op.(Cast); !ok {
				return fmt.Errorf("%w: %s after %s", ErrTranslation, op.OperatorName(), terminal.OperatorName())
			}
		}
		switch x := op.(type) {
		case Take:
			if x.N < 0 {
				return fmt.Errorf("%w: negative Take(%d)", ErrTranslation, x.N)
			}
			q.Limit = limit(q.Limit, x.N)
		case Skip:
			if x.N < 0 {
				return fmt.Errorf("%w: negative Skip(%d)", ErrTranslation, x.N)
			}
			q.Offset += x.N
			if q.HasLimit() {
				q.Limit = max(0, q.Limit-x.N)
			}
		case First:
			q.Limit = limit(q.Limit, 1)
			q.Cardinality = CardinalityFirst
			terminal = op
		case Single:
			q.Limit = limit(q.Limit, 2)
			q.Cardinality = CardinalitySingle
			terminal = op
		case Count:
			q.Form = FormScalarAggregate
			q.Aggregate = "COUNT"
			q.Projection = nil
			terminal = op
		case Any:
			q.Form = FormAsk
			q.Projection = nil
			terminal = op
		case Cast:
			if x.Type == nil {
				return fmt.Errorf("%w: Cast without type", ErrTranslation)
			}
			if q.Form != FormSelect {
				return fmt.Errorf("%w: Cast of %s result", ErrTranslation, q.Form)
			}
			q.Casts = append(q.Casts, x.Type)
		case Distinct:
			q.Distinct = true
		default:
			return fmt.Errorf("%w: unsupported result operator %s", ErrTranslation, op.OperatorName())
		}
	}
	return nil
}

func limit(current, n int) int {
	if current < 0 || n < current {
		return n
	}
	return current
}
