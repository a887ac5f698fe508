// Package kvstore keeps facts in a NATS JetStream key/value bucket, one
// document per subject. Queries are answered by an in-memory snapshot of
// the bucket.
package kvstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cayleygraph/quad/nquads"

	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/query"
	"github.com/c360studio/semmap/store"
	"github.com/c360studio/semmap/store/memstore"
)

// document is the stored form of one subject's facts. Facts are N-Quads
// statements.
type document struct {
	Subject   string    `json:"subject"`
	Facts     []string  `json:"facts"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a store.Store over a Bucket.
type Store struct {
	bucket Bucket
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New creates a store over bucket.
func New(bucket Bucket, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{bucket: bucket, logger: logger}
}

// Key returns the bucket key of a subject. Keys are URL-safe base64 since
// IRIs contain characters KV keys do not allow.
func Key(id graph.EntityID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

func (s *Store) read(ctx context.Context, id graph.EntityID) ([]graph.Fact, error) {
	data, err := s.bucket.Get(ctx, Key(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return decode(data)
}

func (s *Store) write(ctx context.Context, id graph.EntityID, facts []graph.Fact) error {
	if len(facts) == 0 {
		if err := s.bucket.Delete(ctx, Key(id)); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		return nil
	}
	doc := document{Subject: id.String(), UpdatedAt: time.Now().UTC()}
	for _, f := range facts {
		doc.Facts = append(doc.Facts, f.String())
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", id, err)
	}
	if err := s.bucket.Put(ctx, Key(id), data); err != nil {
		return fmt.Errorf("put %s: %w", id, err)
	}
	return nil
}

func decode(data []byte) ([]graph.Fact, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	facts := make([]graph.Fact, 0, len(doc.Facts))
	for _, line := range doc.Facts {
		q, err := nquads.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("parse fact of %s: %w", doc.Subject, err)
		}
		f, err := graph.FromQuad(q)
		if err != nil {
			return nil, fmt.Errorf("fact of %s: %w", doc.Subject, err)
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// LoadEntity implements store.Source. Blank nodes reachable from id are
// included.
func (s *Store) LoadEntity(ctx context.Context, id graph.EntityID) ([]graph.Fact, error) {
	facts, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	seen := map[graph.EntityID]bool{id: true}
	for i := 0; i < len(facts); i++ {
		child, ok := graph.IDFromNode(facts[i].Object)
		if !ok || !child.IsBlank() || seen[child] {
			continue
		}
		seen[child] = true
		more, err := s.read(ctx, child)
		if err != nil {
			return nil, err
		}
		facts = append(facts, more...)
	}
	return facts, nil
}

// EntityExists implements store.Source.
func (s *Store) EntityExists(ctx context.Context, id graph.EntityID) (bool, error) {
	facts, err := s.read(ctx, id)
	if err != nil {
		return false, err
	}
	return len(facts) > 0, nil
}

// Snapshot loads the whole bucket into an in-memory store.
func (s *Store) Snapshot(ctx context.Context) (*memstore.Store, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	snap := memstore.New()
	for _, key := range keys {
		data, err := s.bucket.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		facts, err := decode(data)
		if err != nil {
			s.logger.Warn("Skipping unreadable document", "key", key, "error", err)
			continue
		}
		snap.Add(facts...)
	}
	return snap, nil
}

// ExecuteEntityQuery implements store.Source.
func (s *Store) ExecuteEntityQuery(ctx context.Context, q *query.Query) ([]store.EntityFact, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ExecuteEntityQuery(ctx, q)
}

// ExecuteAskQuery implements store.Source.
func (s *Store) ExecuteAskQuery(ctx context.Context, q *query.Query) (bool, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.ExecuteAskQuery(ctx, q)
}

// ExecuteScalarQuery implements store.Source.
func (s *Store) ExecuteScalarQuery(ctx context.Context, q *query.Query) (int64, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return snap.ExecuteScalarQuery(ctx, q)
}

// Commit implements store.Sink. Each touched subject's document is
// rewritten once. Writes are not atomic across subjects.
func (s *Store) Commit(ctx context.Context, changes store.ChangeSet) error {
	for _, f := range changes.Added {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	removed := make(map[graph.Fact]bool, len(changes.Removed))
	for _, f := range changes.Removed {
		removed[f] = true
	}
	added := make(map[graph.EntityID][]graph.Fact)
	for _, f := range changes.Added {
		added[f.Subject] = append(added[f.Subject], f)
	}

	for _, id := range changes.Subjects() {
		current, err := s.read(ctx, id)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		next := make([]graph.Fact, 0, len(current)+len(added[id]))
		seen := make(map[graph.Fact]bool, len(current))
		for _, f := range append(current, added[id]...) {
			if seen[f] || (removed[f] && !slices.Contains(added[id], f)) {
				continue
			}
			seen[f] = true
			next = append(next, f)
		}
		if err := s.write(ctx, id, next); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	s.logger.Debug("Committed change set", "subjects", len(changes.Subjects()),
		"added", len(changes.Added), "removed", len(changes.Removed))
	return nil
}
