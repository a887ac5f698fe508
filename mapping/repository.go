package mapping

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/c360studio/semmap/vocabulary"
)

// Repository publishes the current mapping Set. Readers never observe a
// partially rebuilt set: Rebuild resolves a complete Set first and swaps it in
// as a unit.
type Repository struct {
	current atomic.Pointer[Set]
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewRepository creates a repository holding only the built-in Resource view.
func NewRepository(logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{logger: logger}
	r.current.Store(MustSet(vocabulary.DefaultRegistry()))
	return r
}

// Set returns the current mapping set. The result is immutable and remains
// valid after later rebuilds.
func (r *Repository) Set() *Set {
	return r.current.Load()
}

// MappingFor looks up t in the current set.
func (r *Repository) MappingFor(t *TypeDescriptor) (*EntityMapping, error) {
	return r.Set().MappingFor(t)
}

// Rebuild resolves directives into a new Set and publishes it. On failure
// the previous set stays in place.
func (r *Repository) Rebuild(registry *vocabulary.Registry, directives ...EntityDirective) error {
	s, err := NewSet(registry, directives...)
	if err != nil {
		r.logger.Warn("Mapping rebuild failed", "error", err)
		return err
	}
	r.Publish(s)
	return nil
}

// Publish swaps in a prebuilt set.
func (r *Repository) Publish(s *Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.current.Swap(s)
	r.logger.Info("Mappings rebuilt",
		"types", len(s.order),
		"previous_types", len(prev.order))
}

// Process-wide repository and initialization guard.
var (
	globalRepository *Repository
	globalOnce       sync.Once
)

// Global returns the process-wide repository, creating an empty one on
// first use.
func Global() *Repository {
	globalOnce.Do(func() {
		globalRepository = NewRepository(nil)
	})
	return globalRepository
}

// InitGlobal installs r as the process-wide repository. Only the first call
// before Global has any effect.
func InitGlobal(r *Repository) {
	globalOnce.Do(func() {
		globalRepository = r
	})
}

// ResetGlobal clears the process-wide repository. Not safe for concurrent
// use; tests only.
func ResetGlobal() {
	globalOnce = sync.Once{}
	globalRepository = nil
}
