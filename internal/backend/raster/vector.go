package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
)

var vectorExtensions = map[string]bool{
	".geojson": true,
	".json":    true,
	".shp":     true,
	".gpkg":    true,
	".kml":     true,
}

// IsVectorFile reports whether the file extension belongs to a vector format.
func IsVectorFile(path string) bool {
	return vectorExtensions[strings.ToLower(filepath.Ext(path))]
}

// VectorSummary describes a GeoJSON layer for listings.
type VectorSummary struct {
	Features      int
	GeometryTypes []string
}

// SummarizeGeoJSON counts the features of a GeoJSON feature collection.
func SummarizeGeoJSON(path string) (VectorSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return VectorSummary{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return VectorSummary{}, fmt.Errorf("failed to parse geojson %s: %w", path, err)
	}

	seen := make(map[string]bool)
	summary := VectorSummary{Features: len(fc.Features)}
	for _, feature := range fc.Features {
		if feature.Geometry == nil {
			continue
		}
		geometryType := feature.Geometry.GeoJSONType()
		if !seen[geometryType] {
			seen[geometryType] = true
			summary.GeometryTypes = append(summary.GeometryTypes, geometryType)
		}
	}
	return summary, nil
}
