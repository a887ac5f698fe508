package mappingfile

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/semmap/mapping"
	"github.com/c360studio/semmap/vocabulary"
)

// ErrNoFiles is returned when no file matches the configured patterns.
var ErrNoFiles = errors.New("no mapping files matched")

// Source is a set of mapping files selected by glob patterns. Patterns
// support ** for recursive matching.
type Source struct {
	Patterns []string

	// Registry is extended with the namespaces the files declare.
	// Defaults to vocabulary.DefaultRegistry.
	Registry *vocabulary.Registry

	// Known are descriptors declared in code that files may refer to and
	// extend by name.
	Known []*mapping.TypeDescriptor
}

// Files expands the patterns into a sorted list of distinct paths.
func (s Source) Files() ([]string, error) {
	var out []string
	for _, pattern := range s.Patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}
		matches, err := doublestar.FilepathGlob(abs, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		out = append(out, matches...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// Load reads every matched file and builds the registry and directives.
func (s Source) Load() (*vocabulary.Registry, []mapping.EntityDirective, error) {
	paths, err := s.Files()
	if err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoFiles, s.Patterns)
	}
	files := make([]*File, 0, len(paths))
	for _, p := range paths {
		f, err := ReadFile(p)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, f)
	}
	return Build(s.Registry, s.Known, files...)
}

// Set loads the files into a resolved mapping set.
func (s Source) Set() (*mapping.Set, error) {
	registry, directives, err := s.Load()
	if err != nil {
		return nil, err
	}
	return mapping.NewSet(registry, directives...)
}

// Apply loads the files and rebuilds repo from them. On failure repo keeps
// its current set.
func (s Source) Apply(repo *mapping.Repository) error {
	registry, directives, err := s.Load()
	if err != nil {
		return err
	}
	return repo.Rebuild(registry, directives...)
}
