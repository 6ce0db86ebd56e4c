package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/cdbgen/internal/backend/cdb"
	"github.com/jo-hoe/cdbgen/internal/backend/dispatch"
	"github.com/jo-hoe/cdbgen/internal/backend/layer"
	"github.com/jo-hoe/cdbgen/internal/backend/progress"
	"github.com/jo-hoe/cdbgen/internal/backend/raster"
)

// ErrRedisDisabled is returned by LiveProgress when no Redis address is configured.
var ErrRedisDisabled = errors.New("redis progress publishing is disabled")

// ProbeResult describes a single file as the dispatcher would see it.
type ProbeResult struct {
	Path   string         `json:"path"`
	Kind   layer.Kind     `json:"kind"`
	Class  dispatch.Class `json:"class"`
	Format string         `json:"format,omitempty"`
	Width  int            `json:"width,omitempty"`
	Height int            `json:"height,omitempty"`
	Bands  int            `json:"bands"`

	// Set for georeferenced rasters only.
	PixelSize float64 `json:"pixelSize,omitempty"`
	Lod       *int    `json:"lod,omitempty"`
	TileSize  int     `json:"tileSize,omitempty"`

	// Set for GeoJSON layers only.
	Features      int      `json:"features,omitempty"`
	GeometryTypes []string `json:"geometryTypes,omitempty"`
}

// ProbeFile classifies a raster or vector file without running any tool.
func ProbeFile(path string) (*ProbeResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	result := &ProbeResult{Path: path}
	if raster.IsVectorFile(path) {
		result.Kind = layer.KindVector
		result.Class = dispatch.ClassIgnored
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".geojson" || ext == ".json" {
			summary, err := raster.SummarizeGeoJSON(path)
			if err != nil {
				return nil, err
			}
			result.Format = "geojson"
			result.Features = summary.Features
			result.GeometryTypes = summary.GeometryTypes
		}
		return result, nil
	}

	info, err := raster.Probe(path)
	if err != nil {
		return nil, err
	}
	result.Kind = layer.KindRaster
	result.Format = info.Format
	result.Width = info.Width
	result.Height = info.Height
	result.Bands = info.Bands
	result.Class = dispatch.Classify(layer.Layer{Source: path, Kind: layer.KindRaster, BandCount: info.Bands})
	if info.PixelSize > 0 {
		lod := cdb.LodForPixelSize(info.PixelSize)
		result.PixelSize = info.PixelSize
		result.Lod = &lod
		result.TileSize = cdb.TileDimensionForLod(lod)
	}
	return result, nil
}

// LiveProgress returns the progress lines of a run retained in Redis.
func (service *CoreService) LiveProgress(ctx context.Context, runID string) ([]string, error) {
	if service.redisClient == nil {
		return nil, ErrRedisDisabled
	}
	sink := progress.NewRedisSink(service.redisClient, service.config.Redis.Channel, runID, service.config.Redis.History)
	return sink.History(ctx)
}
