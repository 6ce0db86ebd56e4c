package layer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jo-hoe/cdbgen/internal/backend/raster"
)

const defaultProbeWorkers = 4

// DirectoryScan turns raster and vector files below the given roots into
// layers, ordered by path.
type DirectoryScan struct {
	Roots   []string
	Workers int
}

func (d DirectoryScan) Layers(ctx context.Context) ([]Layer, error) {
	var paths []string
	for _, root := range d.Roots {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			if raster.IsRasterFile(path) || raster.IsVectorFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}
	sort.Strings(paths)

	workers := d.Workers
	if workers <= 0 {
		workers = defaultProbeWorkers
	}

	layers := make([]Layer, len(paths))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			l := Layer{
				ID:     fmt.Sprintf("%s_%d", baseName(path), i),
				Name:   baseName(path),
				Source: path,
			}
			describe("DirectoryScan", &l)
			layers[i] = l
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("DirectoryScan: layers discovered", "roots", d.Roots, "count", len(layers))
	return layers, nil
}
