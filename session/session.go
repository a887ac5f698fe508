// Package session implements the unit of work over a triple store: loading
// and creating entities, running queries, and committing or rolling back the
// changes made through entity views.
//
// A Session is owned by one goroutine at a time. Sessions never share
// mutable state; only the mapping set is shared, read-only.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/semmap/convert"
	"github.com/c360studio/semmap/entity"
	"github.com/c360studio/semmap/factstore"
	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
	"github.com/c360studio/semmap/query"
	"github.com/c360studio/semmap/store"
)

// Config holds the collaborators and policies of a Session.
type Config struct {
	// Store loads, queries and commits facts. Required.
	Store store.Store

	// Mappings resolves views. Defaults to the current global mapping set.
	Mappings mapping.Resolver

	// BaseURI resolves relative identifiers. Nil rejects them.
	BaseURI BaseURISelector

	// Resolver short-circuits Load and Create for externally supplied
	// entities.
	Resolver ResourceResolver

	// Converter converts between nodes and Go values.
	Converter convert.Converter

	// TypeGraph restricts rdf:type reads to one named graph per entity.
	TypeGraph mapping.GraphSelector

	// Language tags strings written through views and is preferred when
	// reading single string values.
	Language string

	// DisableTracking turns change tracking off at start. Untracked
	// changes are neither committed nor rolled back.
	DisableTracking bool

	Logger *slog.Logger
}

// Session is one unit of work. Not safe for concurrent use.
type Session struct {
	store    store.Store
	facts    *factstore.Store
	cache    *entity.Cache
	exec     *Executor
	baseURI  BaseURISelector
	resolver ResourceResolver
	language string
	deleted  []*entity.Entity
	closed   bool
	logger   *slog.Logger
}

// New creates a session over cfg.Store.
func New(cfg Config) (*Session, error) {
	if cfg.Store == nil {
		return nil, errors.New("session: store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mappings := cfg.Mappings
	if mappings == nil {
		mappings = mapping.Global().Set()
	}

	s := &Session{
		store:    cfg.Store,
		facts:    factstore.New(!cfg.DisableTracking),
		baseURI:  cfg.BaseURI,
		resolver: cfg.Resolver,
		language: cfg.Language,
		logger:   logger,
	}
	s.cache = entity.NewCache(entity.Config{
		Facts:     s.facts,
		Mappings:  mappings,
		Loader:    cfg.Store,
		Converter: cfg.Converter,
		TypeGraph: cfg.TypeGraph,
		Language:  func() string { return s.language },
		Logger:    logger,
	})
	s.exec = NewExecutor(cfg.Store, s.cache, logger)
	return s, nil
}

// Load returns id viewed as the most derived mapped type assignable to t.
// Facts are pulled from the store on first access. A nil t means
// mapping.Resource.
func (s *Session) Load(ctx context.Context, id graph.EntityID, t *mapping.TypeDescriptor) (*entity.View, error) {
	return s.materialize(ctx, id, t, false)
}

// Create returns a view of id without pulling facts from the store, for
// subjects that are new in this session.
func (s *Session) Create(ctx context.Context, id graph.EntityID, t *mapping.TypeDescriptor) (*entity.View, error) {
	return s.materialize(ctx, id, t, true)
}

func (s *Session) materialize(ctx context.Context, id graph.EntityID, t *mapping.TypeDescriptor, create bool) (*entity.View, error) {
	if s.closed {
		return nil, ErrClosed
	}
	id, err := s.absolute(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = mapping.Resource
	}
	if s.resolver != nil {
		v, err := s.resolver.Resolve(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", id, err)
		}
		if v != nil {
			return v, nil
		}
	}
	if _, known := s.cache.Lookup(id); !known && create {
		s.logger.Info("Creating entity", "entity", id.String())
	}
	e := s.cache.GetOrCreate(id, create)
	return s.cache.MaterializeAs(ctx, e, t)
}

// Exists reports whether the store holds any fact about id.
func (s *Session) Exists(ctx context.Context, id graph.EntityID) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	id, err := s.absolute(id)
	if err != nil {
		return false, err
	}
	ok, err := s.store.EntityExists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("entity exists %s: %w", id, err)
	}
	return ok, nil
}

// Delete marks id deleted and retracts its facts. behavior widens the
// retraction to owned blank nodes and to loaded references.
func (s *Session) Delete(ctx context.Context, id graph.EntityID, behavior DeleteBehavior) error {
	if s.closed {
		return ErrClosed
	}
	id, err := s.absolute(id)
	if err != nil {
		return err
	}
	e := s.cache.GetOrCreate(id, false)
	if e.IsDeleted() {
		return nil
	}
	if err := s.cache.Initialize(ctx, e); err != nil {
		return err
	}
	s.logger.Info("Deleting entity", "entity", id.String())
	s.delete(e, behavior)
	return nil
}

func (s *Session) delete(e *entity.Entity, behavior DeleteBehavior) {
	removed := s.facts.RetractSubject(e.ID())
	s.cache.MarkDeleted(e)
	s.deleted = append(s.deleted, e)

	if behavior.has(DeleteReferences) {
		for _, f := range s.facts.ReferencesTo(e.ID()) {
			s.facts.Retract(f)
		}
	}
	if behavior.has(DeleteBlankChildren) {
		for _, f := range removed {
			child, ok := graph.IDFromNode(f.Object)
			if !ok || !child.IsBlank() {
				continue
			}
			if c := s.cache.GetOrCreate(child, true); !c.IsDeleted() {
				s.delete(c, behavior)
			}
		}
	}
}

// Commit hands the pending changes to the store and makes them the new
// baseline. The identity map is kept; views stay usable. On a store error
// the changes stay pending.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	changes := s.Changes()
	if changes.IsEmpty() {
		return nil
	}
	s.logger.Info("Committing changes to triple store",
		"added", len(changes.Added), "removed", len(changes.Removed), "deleted", len(changes.DeletedEntities))
	err := s.store.Commit(ctx, changes)
	commitsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.facts.Commit()
	s.deleted = nil
	return nil
}

// Rollback discards pending changes and restores deleted entities.
func (s *Session) Rollback() {
	s.facts.Rollback()
	for _, e := range s.deleted {
		s.cache.Restore(e)
	}
	s.deleted = nil
	s.logger.Info("Rolled back session")
}

// Changes returns the net pending changes.
func (s *Session) Changes() store.ChangeSet {
	added, removed := s.facts.Pending()
	cs := store.ChangeSet{Added: added, Removed: removed}
	for _, e := range s.deleted {
		cs.DeletedEntities = append(cs.DeletedEntities, e.ID())
	}
	return cs
}

// HasChanges reports whether anything is pending.
func (s *Session) HasChanges() bool {
	return s.facts.HasChanges() || len(s.deleted) > 0
}

// TrackChanges reports whether changes are being recorded.
func (s *Session) TrackChanges() bool { return s.facts.Tracking() }

// SetTrackChanges turns change recording on or off.
func (s *Session) SetTrackChanges(on bool) { s.facts.SetTracking(on) }

// Language returns the session language.
func (s *Session) Language() string { return s.language }

// SetLanguage changes the language used for string values.
func (s *Session) SetLanguage(lang string) { s.language = lang }

// Languages lists the language tags of strings loaded in the session.
func (s *Session) Languages() []string { return s.facts.Languages() }

// As views an already loaded entity as t.
func (s *Session) As(ctx context.Context, v *entity.View, t *mapping.TypeDescriptor) (*entity.View, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return v.As(ctx, t)
}

// Query translates m into a lazily executed result sequence.
func (s *Session) Query(m query.Model) (*Results, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.exec.ExecuteCollection(m)
}

// Single returns the one entity matching m. See Executor.ExecuteSingle.
func (s *Session) Single(ctx context.Context, m query.Model, allowDefault bool) (*entity.View, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.exec.ExecuteSingle(ctx, m, allowDefault)
}

// Count returns the number of entities matching m.
func (s *Session) Count(ctx context.Context, m query.Model) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return s.exec.ExecuteScalar(ctx, m.Count())
}

// Any reports whether any entity matches m.
func (s *Session) Any(ctx context.Context, m query.Model) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	return s.exec.ExecuteAsk(ctx, m.Any())
}

// Facts returns the session's fact store.
func (s *Session) Facts() *factstore.Store { return s.facts }

// Entities lists the entities known to the session.
func (s *Session) Entities() []*entity.Entity { return s.cache.Entities() }

// Close ends the session. Pending changes are discarded.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("Closed session", "entities", s.cache.Len(), "discarded", s.HasChanges())
	return nil
}

// absolute resolves a relative identifier with the base URI policy.
func (s *Session) absolute(id graph.EntityID) (graph.EntityID, error) {
	if id.IsZero() {
		return graph.EntityID{}, graph.ErrEmptyID
	}
	if id.IsAbsolute() {
		return id, nil
	}
	if s.baseURI == nil {
		s.logger.Warn("Relative entity id without base URI policy", "entity", id.String())
		return graph.EntityID{}, fmt.Errorf("%w: %s", ErrNoBaseURI, id)
	}
	base, err := s.baseURI.SelectBaseURI(id)
	if err != nil {
		return graph.EntityID{}, fmt.Errorf("select base uri for %s: %w", id, err)
	}
	return id.MakeAbsolute(base)
}
