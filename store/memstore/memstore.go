// Package memstore is an in-memory triple store. It evaluates translated
// queries directly against its facts and is used as the default backend and
// as the query engine of snapshot-based stores.
package memstore

import (
	"context"
	"fmt"

	"github.com/c360studio/semmap/convert"
	"github.com/c360studio/semmap/factstore"
	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/query"
	"github.com/c360studio/semmap/store"
)

// Store keeps facts in memory. Safe for concurrent use.
type Store struct {
	facts     *factstore.Store
	converter convert.Converter
}

var _ store.Store = (*Store)(nil)

// New creates a store holding facts.
func New(facts ...graph.Fact) *Store {
	s := &Store{
		facts:     factstore.New(false),
		converter: convert.NewFallback(),
	}
	s.facts.Load(facts...)
	return s
}

// Add inserts facts.
func (s *Store) Add(facts ...graph.Fact) {
	s.facts.Load(facts...)
}

// Facts returns every fact in the store.
func (s *Store) Facts() []graph.Fact {
	return s.facts.All()
}

// Len returns the number of facts.
func (s *Store) Len() int { return s.facts.Len() }

// LoadEntity implements store.Source. The facts of blank nodes reachable
// from id are included since they cannot be loaded on their own.
func (s *Store) LoadEntity(_ context.Context, id graph.EntityID) ([]graph.Fact, error) {
	return s.closure(id), nil
}

// EntityExists implements store.Source.
func (s *Store) EntityExists(_ context.Context, id graph.EntityID) (bool, error) {
	return len(s.facts.UnionFacts(id)) > 0, nil
}

// ExecuteEntityQuery implements store.Source.
func (s *Store) ExecuteEntityQuery(ctx context.Context, q *query.Query) ([]store.EntityFact, error) {
	if q.Form != query.FormSelect && q.Form != query.FormConstruct {
		return nil, fmt.Errorf("entity query of %s form", q.Form)
	}
	subjects, err := s.evaluate(ctx, q)
	if err != nil {
		return nil, err
	}
	var out []store.EntityFact
	for _, id := range subjects {
		for _, f := range s.closure(id) {
			out = append(out, store.EntityFact{EntityID: id, Fact: f})
		}
	}
	return out, nil
}

// ExecuteAskQuery implements store.Source.
func (s *Store) ExecuteAskQuery(ctx context.Context, q *query.Query) (bool, error) {
	subjects, err := s.evaluate(ctx, q)
	if err != nil {
		return false, err
	}
	return len(subjects) > 0, nil
}

// ExecuteScalarQuery implements store.Source. Only COUNT is supported.
func (s *Store) ExecuteScalarQuery(ctx context.Context, q *query.Query) (int64, error) {
	if q.Aggregate != "COUNT" {
		return 0, fmt.Errorf("unsupported aggregate %q", q.Aggregate)
	}
	subjects, err := s.evaluate(ctx, q)
	if err != nil {
		return 0, err
	}
	return int64(len(subjects)), nil
}

// Commit implements store.Sink.
func (s *Store) Commit(_ context.Context, changes store.ChangeSet) error {
	for _, f := range changes.Added {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	for _, f := range changes.Removed {
		s.facts.Retract(f)
	}
	for _, f := range changes.Added {
		s.facts.Assert(f)
	}
	return nil
}

func (s *Store) closure(id graph.EntityID) []graph.Fact {
	facts := s.facts.UnionFacts(id)
	seen := map[graph.EntityID]bool{id: true}
	for i := 0; i < len(facts); i++ {
		child, ok := graph.IDFromNode(facts[i].Object)
		if !ok || !child.IsBlank() || seen[child] {
			continue
		}
		seen[child] = true
		facts = append(facts, s.facts.UnionFacts(child)...)
	}
	return facts
}

// evaluate returns the matching subjects in the query's order, after its
// offset and limit.
func (s *Store) evaluate(ctx context.Context, q *query.Query) ([]graph.EntityID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := &evaluator{facts: s.facts.All(), converter: s.converter}
	subjects := e.subjects(q)
	if q.Offset > 0 {
		if q.Offset >= len(subjects) {
			return nil, nil
		}
		subjects = subjects[q.Offset:]
	}
	if q.HasLimit() && q.Limit < len(subjects) {
		subjects = subjects[:q.Limit]
	}
	return subjects, nil
}
