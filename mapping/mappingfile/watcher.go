package mappingfile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/c360studio/semmap/mapping"
)

// DefaultDebounce is how long the watcher waits for more changes before
// rebuilding.
const DefaultDebounce = 500 * time.Millisecond

// Watcher rebuilds a mapping.Repository whenever a mapping file changes.
// Bursts of changes are collapsed into one rebuild; a failed rebuild keeps
// the previous set.
type Watcher struct {
	source   Source
	repo     *mapping.Repository
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   bool

	rebuilt chan error
}

// NewWatcher creates a watcher for source publishing into repo.
func NewWatcher(source Source, repo *mapping.Repository, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		source:   source,
		repo:     repo,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		rebuilt:  make(chan error, 1),
	}, nil
}

// Rebuilt delivers the outcome of each rebuild. Outcomes are dropped when
// nobody reads them.
func (w *Watcher) Rebuilt() <-chan error {
	return w.rebuilt
}

// Start watches the directories the patterns can match and processes events
// until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.dirs() {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("Failed to watch directory", "path", dir, "error", err)
			continue
		}
		w.logger.Debug("Watching directory", "path", dir)
	}
	go w.processEvents(ctx)
	w.logger.Info("Mapping watcher started", "patterns", w.source.Patterns, "debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// dirs returns the static base of every pattern plus its existing
// subdirectories when the pattern is recursive.
func (w *Watcher) dirs() []string {
	seen := map[string]bool{}
	var out []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, pattern := range w.source.Patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			continue
		}
		base, _ := doublestar.SplitPattern(filepath.ToSlash(abs))
		base = filepath.FromSlash(base)
		if !strings.Contains(pattern, "**") {
			add(base)
			continue
		}
		_ = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != base {
					return filepath.SkipDir
				}
				add(path)
			}
			return nil
		})
	}
	return out
}

func (w *Watcher) matches(path string) bool {
	for _, pattern := range w.source.Patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			continue
		}
		if ok, _ := doublestar.PathMatch(abs, path); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err == nil {
				w.logger.Debug("Added watch for new directory", "path", event.Name)
			}
			return
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.matches(event.Name) {
		return
	}
	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()
	w.logger.Debug("Mapping file change detected", "path", event.Name, "op", event.Op.String())
}

func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	if !w.pending {
		w.pendingMu.Unlock()
		return
	}
	w.pending = false
	w.pendingMu.Unlock()

	err := w.source.Apply(w.repo)
	if err != nil {
		w.logger.Warn("Mapping reload failed, keeping previous mappings", "error", err)
	}
	select {
	case w.rebuilt <- err:
	default:
	}
}
