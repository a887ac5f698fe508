package factstore

import "github.com/c360studio/semmap/graph"

// HasChanges reports whether any recorded change is pending.
func (s *Store) HasChanges() bool {
	added, removed := s.Pending()
	return len(added) > 0 || len(removed) > 0
}

// Pending nets the change log into facts to add and facts to remove. A fact
// asserted and then retracted, or the reverse, cancels out.
func (s *Store) Pending() (added, removed []graph.Fact) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	net := make(map[graph.Fact]int, len(s.log))
	var order []graph.Fact
	for _, c := range s.log {
		if _, ok := net[c.fact]; !ok {
			order = append(order, c.fact)
		}
		if c.added {
			net[c.fact]++
		} else {
			net[c.fact]--
		}
	}
	for _, f := range order {
		switch {
		case net[f] > 0:
			added = append(added, f)
		case net[f] < 0:
			removed = append(removed, f)
		}
	}
	return added, removed
}

// Commit accepts the pending changes as the new baseline.
func (s *Store) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

// Rollback undoes every pending change, newest first, restoring the state
// at the last Commit.
func (s *Store) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.log) - 1; i >= 0; i-- {
		c := s.log[i]
		if c.added {
			s.retract(c.fact, false)
		} else {
			s.assert(c.fact, false)
		}
	}
	s.log = nil
}
