package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cayleygraph/quad/nquads"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semmap/config"
	"github.com/c360studio/semmap/export"
	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/mapping"
	"github.com/c360studio/semmap/mapping/mappingfile"
	"github.com/c360studio/semmap/query"
	"github.com/c360studio/semmap/session"
	"github.com/c360studio/semmap/store"
	"github.com/c360studio/semmap/store/kvstore"
	"github.com/c360studio/semmap/store/memstore"
)

// App wires configuration, mappings and the configured store together.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	mappings *mapping.Repository
	source   mappingfile.Source

	// NATS
	natsConn *nats.Conn

	// Storage
	store  store.Store
	memory *memstore.Store
	kv     *kvstore.Store
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		mappings: mapping.NewRepository(logger),
		source:   mappingfile.Source{Patterns: cfg.MappingPatterns()},
	}
}

// Start loads mappings and opens the store.
func (a *App) Start(ctx context.Context) error {
	if err := a.LoadMappings(); err != nil {
		return fmt.Errorf("load mappings: %w", err)
	}
	if err := a.openStore(ctx); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	return nil
}

// LoadMappings rebuilds the mapping repository from the configured files.
// Having no mapping files is not an error; only the resource view is
// available then.
func (a *App) LoadMappings() error {
	err := a.source.Apply(a.mappings)
	if errors.Is(err, mappingfile.ErrNoFiles) {
		a.logger.Warn("No mapping files found, only the resource view is available",
			slog.Any("patterns", a.source.Patterns))
		return nil
	}
	return err
}

// Mappings returns the current mapping set.
func (a *App) Mappings() *mapping.Set {
	return a.mappings.Set()
}

func (a *App) openStore(ctx context.Context) error {
	switch a.cfg.Store.Backend {
	case config.BackendNATS:
		a.logger.Info("Connecting to NATS", slog.String("url", a.cfg.Store.NATSURL))
		conn, err := nats.Connect(a.cfg.Store.NATSURL, nats.Timeout(a.cfg.Store.Timeout))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn

		js, err := jetstream.New(conn)
		if err != nil {
			return fmt.Errorf("create JetStream context: %w", err)
		}
		bucketCtx, cancel := context.WithTimeout(ctx, a.cfg.Store.Timeout)
		defer cancel()
		bucket, err := kvstore.OpenBucket(bucketCtx, js, a.cfg.Store.Bucket)
		if err != nil {
			return err
		}
		a.kv = kvstore.New(bucket, a.logger)
		a.store = a.kv
	default:
		a.memory = memstore.New()
		a.store = a.memory
	}
	return nil
}

// NewSession opens a unit of work against the store with the configured
// session policies.
func (a *App) NewSession() (*session.Session, error) {
	cfg := session.Config{
		Store:           a.store,
		Mappings:        a.mappings.Set(),
		Language:        a.cfg.Session.Language,
		TypeGraph:       mappingfile.GraphSelector(a.cfg.Session.TypeGraph),
		DisableTracking: !a.cfg.Session.TrackChanges,
		Logger:          a.logger,
	}
	if a.cfg.Session.BaseURI != "" {
		cfg.BaseURI = session.StaticBaseURI(a.cfg.Session.BaseURI)
	}
	return session.New(cfg)
}

// Import reads N-Quads from r and commits them to the store. Blank lines and
// comments are skipped.
func (a *App) Import(ctx context.Context, r io.Reader) (int, error) {
	var facts []graph.Fact
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		q, err := nquads.Parse(text)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		f, err := graph.FromQuad(q)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		facts = append(facts, f)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read input: %w", err)
	}
	if len(facts) == 0 {
		return 0, nil
	}
	if err := a.store.Commit(ctx, store.ChangeSet{Added: facts}); err != nil {
		return 0, err
	}
	a.logger.Info("Imported facts", slog.Int("facts", len(facts)))
	return len(facts), nil
}

// Facts returns every fact in the store.
func (a *App) Facts(ctx context.Context) ([]graph.Fact, error) {
	if a.kv != nil {
		snapshot, err := a.kv.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return snapshot.Facts(), nil
	}
	return a.memory.Facts(), nil
}

// Export writes the store's facts to w.
func (a *App) Export(ctx context.Context, w io.Writer, format export.Format, profile export.Profile) error {
	facts, err := a.Facts(ctx)
	if err != nil {
		return err
	}
	return export.NewExporter(profile, a.Mappings().Registry(), a.logger).Export(w, format, facts)
}

// Describe writes the mapped properties of one entity viewed as typeName.
// An empty typeName uses the resource view.
func (a *App) Describe(ctx context.Context, w io.Writer, id, typeName string) error {
	t, err := a.lookupType(typeName)
	if err != nil {
		return err
	}
	entityID, err := graph.NewID(id)
	if err != nil {
		return err
	}
	sess, err := a.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	v, err := sess.Load(ctx, entityID, t)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (%s)\n", v.ID(), v.Type())
	for _, class := range v.Types() {
		fmt.Fprintf(w, "  a %s\n", a.Mappings().Registry().Shorten(class))
	}
	for _, p := range v.Mapping().Properties {
		values, err := v.GetAll(p.Name)
		if err != nil || len(values) == 0 {
			continue
		}
		for _, val := range values {
			fmt.Fprintf(w, "  %s: %v\n", p.Name, val)
		}
	}
	return nil
}

// Count counts the entities matching a view.
func (a *App) Count(ctx context.Context, typeName string) (int64, error) {
	t, err := a.lookupType(typeName)
	if err != nil {
		return 0, err
	}
	sess, err := a.NewSession()
	if err != nil {
		return 0, err
	}
	defer sess.Close()
	return sess.Count(ctx, query.From(t))
}

// Watch rebuilds mappings whenever mapping files change, until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	w, err := mappingfile.NewWatcher(a.source, a.mappings, a.cfg.Mappings.Debounce, a.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Rebuilt():
			if err == nil {
				a.logger.Info("Mappings reloaded", slog.Int("types", len(a.Mappings().Types())))
			}
		}
	}
}

func (a *App) lookupType(name string) (*mapping.TypeDescriptor, error) {
	if name == "" {
		return mapping.Resource, nil
	}
	t, ok := a.Mappings().TypeByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", mapping.ErrNoMapping, name)
	}
	return t, nil
}

// Shutdown closes the NATS connection.
func (a *App) Shutdown() {
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.logger.Warn("Failed to drain NATS connection", slog.String("error", err.Error()))
		}
		a.natsConn.Close()
	}
}
