package layer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/cdbgen/internal/backend/raster"
)

type projectDocument struct {
	Name   string         `yaml:"name"`
	Layers []projectLayer `yaml:"layers"`
}

type projectLayer struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Kind   string `yaml:"kind"`
	Bands  int    `yaml:"bands"`
}

// ProjectFile reads layers from a YAML project document. Relative sources
// resolve against the document's directory. Layers without kind or band
// count are probed from their source file.
type ProjectFile struct {
	Path string
}

func (p ProjectFile) Layers(ctx context.Context) ([]Layer, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file %s: %w", p.Path, err)
	}

	var doc projectDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse project file %s: %w", p.Path, err)
	}

	baseDir := filepath.Dir(p.Path)
	layers := make([]Layer, 0, len(doc.Layers))
	for i, entry := range doc.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(entry.Source) == "" {
			return nil, fmt.Errorf("layer at index %d has empty source", i)
		}

		source := entry.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(baseDir, source)
		}

		l := Layer{
			ID:        entry.ID,
			Name:      entry.Name,
			Source:    source,
			BandCount: entry.Bands,
		}
		if l.ID == "" {
			l.ID = fmt.Sprintf("%s_%d", baseName(source), i)
		}
		if l.Name == "" {
			l.Name = baseName(source)
		}

		if entry.Kind != "" {
			kind, err := ParseKind(entry.Kind)
			if err != nil {
				return nil, fmt.Errorf("layer %s: %w", l.Name, err)
			}
			l.Kind = kind
		}
		describe("ProjectFile", &l)
		layers = append(layers, l)
	}
	return layers, nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// describe fills in kind and band count from the source file where unknown.
// Unreadable files keep their zero values; the dispatcher reports missing files.
// component names the collection in log messages.
func describe(component string, l *Layer) {
	if l.Kind == "" {
		switch {
		case raster.IsVectorFile(l.Source):
			l.Kind = KindVector
		default:
			l.Kind = KindRaster
		}
	}
	if l.Kind != KindRaster || l.BandCount > 0 {
		return
	}
	if _, err := os.Stat(l.Source); err != nil {
		return
	}
	info, err := raster.Probe(l.Source)
	if err != nil {
		slog.Warn(component+": could not probe raster layer",
			"layer", l.Name,
			"source", l.Source,
			"error", err)
		return
	}
	l.BandCount = info.Bands
}
