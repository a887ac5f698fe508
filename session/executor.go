package session

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/c360studio/semmap/entity"
	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
	"github.com/c360studio/semmap/query"
	"github.com/c360studio/semmap/store"
)

// Executor runs translated queries against a store and materializes the
// matching entities through an identity map.
type Executor struct {
	source     store.Source
	cache      *entity.Cache
	translator *query.Translator
	logger     *slog.Logger
}

// NewExecutor creates an executor over source that materializes into cache.
func NewExecutor(source store.Source, cache *entity.Cache, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		source:     source,
		cache:      cache,
		translator: query.NewTranslator(cache.Mappings(), logger),
		logger:     logger,
	}
}

// Results is a lazily executed entity query. Every enumeration runs the
// query again.
type Results struct {
	exec  *Executor
	model query.Model
	query *query.Query
}

// Query returns the translated query.
func (r *Results) Query() *query.Query { return r.query }

// Iter runs the query and yields materialized views in result order. Cast
// failures are yielded as errors for the offending entity and end the
// sequence.
func (r *Results) Iter(ctx context.Context) iter.Seq2[*entity.View, error] {
	return func(yield func(*entity.View, error) bool) {
		views, err := r.exec.execute(ctx, r.model, r.query)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, v := range views {
			cast, err := r.exec.cast(ctx, v, r.query.Casts)
			if !yield(cast, err) || err != nil {
				return
			}
		}
	}
}

// All runs the query and collects every view.
func (r *Results) All(ctx context.Context) ([]*entity.View, error) {
	var out []*entity.View
	for v, err := range r.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ExecuteCollection translates m and returns its results. Translation errors
// are returned immediately; the store is not queried until the results are
// enumerated.
func (x *Executor) ExecuteCollection(m query.Model) (*Results, error) {
	q, err := x.translate(m, query.FormSelect, query.FormConstruct)
	if err != nil {
		return nil, err
	}
	return &Results{exec: x, model: m, query: q}, nil
}

// ExecuteSingle returns the one entity matching m. Zero matches fail with
// ErrNoResults unless allowDefault is set, in which case a nil view is
// returned. More than one match fails with ErrMultipleResults.
func (x *Executor) ExecuteSingle(ctx context.Context, m query.Model, allowDefault bool) (*entity.View, error) {
	if !hasCardinality(m) {
		m = m.Single()
	}
	results, err := x.ExecuteCollection(m)
	if err != nil {
		return nil, err
	}
	views, err := results.All(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case len(views) == 0 && allowDefault:
		return nil, nil
	case len(views) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNoResults, m)
	case len(views) > 1:
		return nil, fmt.Errorf("%w: %s", ErrMultipleResults, m)
	}
	return views[0], nil
}

// ExecuteScalar runs an aggregate query such as m.Count().
func (x *Executor) ExecuteScalar(ctx context.Context, m query.Model) (int64, error) {
	q, err := x.translate(m, query.FormScalarAggregate)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := x.source.ExecuteScalarQuery(ctx, q)
	x.observe(q.Form, start, err)
	if err != nil {
		return 0, fmt.Errorf("execute scalar query: %w", err)
	}
	return n, nil
}

// ExecuteAsk runs an existence query such as m.Any().
func (x *Executor) ExecuteAsk(ctx context.Context, m query.Model) (bool, error) {
	q, err := x.translate(m, query.FormAsk)
	if err != nil {
		return false, err
	}
	start := time.Now()
	ok, err := x.source.ExecuteAskQuery(ctx, q)
	x.observe(q.Form, start, err)
	if err != nil {
		return false, fmt.Errorf("execute ask query: %w", err)
	}
	return ok, nil
}

func (x *Executor) translate(m query.Model, forms ...query.Form) (*query.Query, error) {
	q, err := x.translator.Translate(m)
	if err != nil {
		return nil, err
	}
	for _, f := range forms {
		if q.Form == f {
			return q, nil
		}
	}
	return nil, fmt.Errorf("%w: %s query cannot be executed here", query.ErrTranslation, q.Form)
}

// execute fetches the facts of every matching entity, loads each subject's
// facts into the session and materializes the views in first-seen subject
// order. Entities already initialized in the session keep their local
// facts; deleted entities are skipped.
func (x *Executor) execute(ctx context.Context, m query.Model, q *query.Query) ([]*entity.View, error) {
	start := time.Now()
	rows, err := x.source.ExecuteEntityQuery(ctx, q)
	x.observe(q.Form, start, err)
	if err != nil {
		return nil, fmt.Errorf("execute entity query: %w", err)
	}

	var order []graph.EntityID
	groups := make(map[graph.EntityID][]graph.Fact)
	for _, r := range rows {
		if _, seen := groups[r.EntityID]; !seen {
			order = append(order, r.EntityID)
		}
		groups[r.EntityID] = append(groups[r.EntityID], r.Fact)
	}

	views := make([]*entity.View, 0, len(order))
	for _, id := range order {
		if e, ok := x.cache.Lookup(id); ok && e.State() != entity.Uninitialized {
			if e.IsDeleted() {
				continue
			}
		} else {
			x.cache.Facts().Load(groups[id]...)
		}
		e := x.cache.GetOrCreate(id, true)
		v, err := x.cache.MaterializeAs(ctx, e, m.Source)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	materializedEntities.Observe(float64(len(views)))
	x.logger.Debug("Executed entity query", "form", q.Form.String(), "entities", len(views))
	return views, nil
}

// cast views v as each target in turn. The entity must carry every class
// the target view requires.
func (x *Executor) cast(ctx context.Context, v *entity.View, targets []*mapping.TypeDescriptor) (*entity.View, error) {
	for _, t := range targets {
		next, err := v.As(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("%w: %s as %s: %w", ErrCast, v.ID(), t, err)
		}
		for _, class := range next.Mapping().ClassIRIs() {
			if !next.Is(class) {
				return nil, fmt.Errorf("%w: %s is not a %s", ErrCast, v.ID(), t)
			}
		}
		v = next
	}
	return v, nil
}

func (x *Executor) observe(form query.Form, start time.Time, err error) {
	queryDuration.WithLabelValues(form.String()).Observe(time.Since(start).Seconds())
	queriesTotal.WithLabelValues(form.String(), outcome(err)).Inc()
}

func hasCardinality(m query.Model) bool {
	for _, op := range m.Operators {
		switch op.(type) {
		case query.First, query.Single:
			return true
		}
	}
	return false
}
