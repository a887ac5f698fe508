// Package factstore holds the facts a session has pulled or asserted,
// indexed by named graph and subject, with an optional change log that
// drives commit and rollback.
//
// Reads are safe while a single writer asserts; the owning session is still
// expected to serialize its own mutations.
package factstore

import (
	"sort"
	"sync"

	"github.com/cayleygraph/quad"

	"github.com/c360studio/semmap/graph"
)

type partitionKey struct {
	graph   quad.IRI
	subject graph.EntityID
}

// partition is an insertion-ordered fact set.
type partition struct {
	facts []graph.Fact
	index map[graph.Fact]int
}

func (p *partition) add(f graph.Fact) bool {
	if _, ok := p.index[f]; ok {
		return false
	}
	p.index[f] = len(p.facts)
	p.facts = append(p.facts, f)
	return true
}

func (p *partition) remove(f graph.Fact) bool {
	i, ok := p.index[f]
	if !ok {
		return false
	}
	delete(p.index, f)
	p.facts = append(p.facts[:i], p.facts[i+1:]...)
	for j := i; j < len(p.facts); j++ {
		p.index[p.facts[j]] = j
	}
	return true
}

type change struct {
	fact  graph.Fact
	added bool
}

// Store is an in-memory fact index with set semantics per graph partition.
type Store struct {
	mu         sync.RWMutex
	partitions map[partitionKey]*partition
	graphs     map[graph.EntityID][]quad.IRI
	subjects   []graph.EntityID
	tracking   bool
	log        []change
}

// New creates an empty store. With tracking enabled, Assert and Retract are
// recorded for Pending, Commit and Rollback.
func New(tracking bool) *Store {
	return &Store{
		partitions: make(map[partitionKey]*partition),
		graphs:     make(map[graph.EntityID][]quad.IRI),
		tracking:   tracking,
	}
}

// Tracking reports whether changes are being recorded.
func (s *Store) Tracking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracking
}

// SetTracking turns change recording on or off. Already recorded changes are
// kept.
func (s *Store) SetTracking(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = on
}

// Assert adds f and reports whether it was new. Asserting an existing fact is
// a no-op.
func (s *Store) Assert(f graph.Fact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assert(f, s.tracking)
}

// Retract removes f and reports whether it was present.
func (s *Store) Retract(f graph.Fact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retract(f, s.tracking)
}

// Load adds facts pulled from a store without recording them as changes.
// It returns the number of facts that were new.
func (s *Store) Load(facts ...graph.Fact) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range facts {
		if s.assert(f, false) {
			n++
		}
	}
	return n
}

// RetractSubject retracts every fact about subject in every graph and
// returns the removed facts.
func (s *Store) RetractSubject(subject graph.EntityID) []graph.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []graph.Fact
	for _, g := range append([]quad.IRI(nil), s.graphs[subject]...) {
		p := s.partitions[partitionKey{g, subject}]
		if p == nil {
			continue
		}
		for _, f := range append([]graph.Fact(nil), p.facts...) {
			if s.retract(f, s.tracking) {
				removed = append(removed, f)
			}
		}
	}
	return removed
}

func (s *Store) assert(f graph.Fact, record bool) bool {
	key := partitionKey{f.Graph, f.Subject}
	p, ok := s.partitions[key]
	if !ok {
		p = &partition{index: make(map[graph.Fact]int)}
		s.partitions[key] = p
		if _, known := s.graphs[f.Subject]; !known {
			s.subjects = append(s.subjects, f.Subject)
		}
		s.graphs[f.Subject] = append(s.graphs[f.Subject], f.Graph)
	}
	if !p.add(f) {
		return false
	}
	if record {
		s.log = append(s.log, change{fact: f, added: true})
	}
	return true
}

func (s *Store) retract(f graph.Fact, record bool) bool {
	p, ok := s.partitions[partitionKey{f.Graph, f.Subject}]
	if !ok || !p.remove(f) {
		return false
	}
	if record {
		s.log = append(s.log, change{fact: f, added: false})
	}
	return true
}

// Facts returns the facts about subject in graph g, in insertion order.
func (s *Store) Facts(subject graph.EntityID, g quad.IRI) []graph.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.partitions[partitionKey{g, subject}]
	if p == nil {
		return nil
	}
	return append([]graph.Fact(nil), p.facts...)
}

// UnionFacts returns the facts about subject across every graph, grouped by
// graph in first-seen order.
func (s *Store) UnionFacts(subject graph.EntityID) []graph.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graph.Fact
	for _, g := range s.graphs[subject] {
		if p := s.partitions[partitionKey{g, subject}]; p != nil {
			out = append(out, p.facts...)
		}
	}
	return out
}

// Objects returns the distinct objects of subject's predicate facts across
// every graph.
func (s *Store) Objects(subject graph.EntityID, predicate quad.IRI) []quad.Value {
	return distinctObjects(s.UnionFacts(subject), predicate)
}

// ObjectsIn returns the objects of subject's predicate facts in graph g.
func (s *Store) ObjectsIn(subject graph.EntityID, predicate quad.IRI, g quad.IRI) []quad.Value {
	return distinctObjects(s.Facts(subject, g), predicate)
}

func distinctObjects(facts []graph.Fact, predicate quad.IRI) []quad.Value {
	var out []quad.Value
	seen := map[quad.Value]bool{}
	for _, f := range facts {
		if f.Predicate != predicate || seen[f.Object] {
			continue
		}
		seen[f.Object] = true
		out = append(out, f.Object)
	}
	return out
}

// ReferencesTo returns every fact whose object is id.
func (s *Store) ReferencesTo(id graph.EntityID) []graph.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node := id.Node()
	var out []graph.Fact
	for _, subject := range s.subjects {
		for _, g := range s.graphs[subject] {
			p := s.partitions[partitionKey{g, subject}]
			if p == nil {
				continue
			}
			for _, f := range p.facts {
				if f.Object == node {
					out = append(out, f)
				}
			}
		}
	}
	return out
}

// Count returns the number of facts about subject in graph g.
func (s *Store) Count(subject graph.EntityID, g quad.IRI) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.partitions[partitionKey{g, subject}]; p != nil {
		return len(p.facts)
	}
	return 0
}

// Len returns the total number of facts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.partitions {
		n += len(p.facts)
	}
	return n
}

// Subjects lists subjects in first-seen order. Subjects whose facts were all
// retracted are still listed.
func (s *Store) Subjects() []graph.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]graph.EntityID(nil), s.subjects...)
}

// All returns every fact, by subject then graph in first-seen order.
func (s *Store) All() []graph.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graph.Fact
	for _, subject := range s.subjects {
		for _, g := range s.graphs[subject] {
			if p := s.partitions[partitionKey{g, subject}]; p != nil {
				out = append(out, p.facts...)
			}
		}
	}
	return out
}

// Languages lists the distinct language tags of literals in the store.
func (s *Store) Languages() []string {
	seen := map[string]bool{}
	for _, f := range s.All() {
		if lang, ok := graph.Language(f.Object); ok {
			seen[lang] = true
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
