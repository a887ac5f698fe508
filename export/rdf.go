package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/c360studio/semmap/graph"
	"github.com/c360studio/semmap/vocabulary"
)

// ErrUnsupportedFormat is returned for formats outside FormatRegistry.
var ErrUnsupportedFormat = errors.New("unsupported format")

// FactSource provides the facts to export. A session's *factstore.Store
// satisfies it.
type FactSource interface {
	All() []graph.Fact
}

// Exporter exports facts to RDF with a configurable alignment profile.
type Exporter struct {
	asserter *TypeAsserter
	registry *vocabulary.Registry
	logger   *slog.Logger
}

// NewExporter creates an exporter. A nil registry uses the default prefixes.
func NewExporter(profile Profile, registry *vocabulary.Registry, logger *slog.Logger) *Exporter {
	if registry == nil {
		registry = vocabulary.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		asserter: NewTypeAsserter(profile),
		registry: registry,
		logger:   logger,
	}
}

// ExportSource serializes every fact of src.
func (e *Exporter) ExportSource(w io.Writer, format Format, src FactSource) error {
	return e.Export(w, format, src.All())
}

// Export serializes facts to w. Formats without named graphs receive the
// union of all graphs with duplicates removed.
func (e *Exporter) Export(w io.Writer, format Format, facts []graph.Fact) error {
	info, ok := GetFormatInfo(format)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	subjects, grouped := e.group(facts, info.Graphs)
	e.logger.Debug("Exporting facts",
		slog.String("format", string(format)),
		slog.Int("facts", len(facts)),
		slog.Int("subjects", len(subjects)))

	switch format {
	case FormatTurtle:
		tw := NewTurtleWriter(w, e.registry)
		if err := tw.WritePrefixes(); err != nil {
			return err
		}
		for _, id := range subjects {
			if err := tw.WriteSubject(id, grouped[id]); err != nil {
				return err
			}
		}
	case FormatNTriples, FormatNQuads:
		nw := NewNTriplesWriter(w, info.Graphs)
		for _, id := range subjects {
			for _, f := range grouped[id] {
				if err := nw.WriteFact(f); err != nil {
					return err
				}
			}
		}
	case FormatJSONLD:
		jw := NewJSONLDWriter(e.registry)
		for _, id := range subjects {
			jw.AddSubject(id, grouped[id])
		}
		if _, err := jw.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// ExportString serializes facts to a string.
func (e *Exporter) ExportString(format Format, facts []graph.Fact) (string, error) {
	var buf bytes.Buffer
	if err := e.Export(&buf, format, facts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// group orders facts by subject in first-seen order and appends the
// profile's alignment types after each subject's own facts.
func (e *Exporter) group(facts []graph.Fact, keepGraphs bool) ([]graph.EntityID, map[graph.EntityID][]graph.Fact) {
	var subjects []graph.EntityID
	grouped := make(map[graph.EntityID][]graph.Fact)
	seen := make(map[graph.Fact]bool, len(facts))

	add := func(f graph.Fact) {
		if !keepGraphs {
			f.Graph = graph.DefaultGraph
		}
		if seen[f] {
			return
		}
		seen[f] = true
		if _, ok := grouped[f.Subject]; !ok {
			subjects = append(subjects, f.Subject)
		}
		grouped[f.Subject] = append(grouped[f.Subject], f)
	}

	for _, f := range facts {
		add(f)
	}
	for _, id := range subjects {
		for _, f := range e.asserter.TypeFacts(id) {
			add(f)
		}
	}
	return subjects, grouped
}
