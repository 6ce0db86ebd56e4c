package cdb

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const (
	// ImageryDataset is the GDAL CDB driver subdataset holding yearly imagery.
	ImageryDataset = "Imagery_Yearly"

	MinLod = -10
	MaxLod = 23
)

// ImageryURI returns the GDAL open string for the imagery dataset of a datastore.
func ImageryURI(datastore string) string {
	return "CDB:" + datastore + ":" + ImageryDataset
}

func versionPath(datastore string) string {
	return filepath.Join(datastore, "Metadata", "Version.xml")
}

// IsCDB reports whether the directory already holds a CDB datastore.
func IsCDB(datastore string) bool {
	info, err := os.Stat(versionPath(datastore))
	return err == nil && !info.IsDir()
}

type previousRoot struct {
	Name string `xml:"name,attr"`
}

type version struct {
	XMLName  xml.Name     `xml:"Version"`
	XSI      string       `xml:"xmlns:xsi,attr"`
	XSD      string       `xml:"xmlns:xsd,attr"`
	Previous previousRoot `xml:"PreviousIncrementalRootDirectory"`
	Comment  string       `xml:"Comment"`
}

// ErrAlreadyExists is returned by MakeCDB when the datastore is already initialised.
var ErrAlreadyExists = errors.New("cdb datastore already exists")

// MakeCDB initialises an empty datastore by writing Metadata/Version.xml.
func MakeCDB(datastore, comment string) error {
	if IsCDB(datastore) {
		return ErrAlreadyExists
	}
	if err := os.MkdirAll(filepath.Dir(versionPath(datastore)), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	doc := version{
		XSI:     "http://www.w3.org/2001/XMLSchema-instance",
		XSD:     "http://www.w3.org/2001/XMLSchema",
		Comment: comment,
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode version metadata: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')

	if err := os.WriteFile(versionPath(datastore), data, 0o644); err != nil {
		return fmt.Errorf("failed to write version metadata: %w", err)
	}
	return nil
}

// LodForPixelSize returns the coarsest LOD whose pixel spacing (in degrees)
// is finer than pixelSize.
func LodForPixelSize(pixelSize float64) int {
	for lod := MinLod; lod <= MaxLod; lod++ {
		if PixelSpacingForLod(lod) < pixelSize {
			return lod
		}
	}
	return MaxLod
}

// PixelSpacingForLod returns the pixel spacing in degrees of a 1024 pixel tile at lod.
func PixelSpacingForLod(lod int) float64 {
	return (1.0 / 1024) / math.Pow(2, float64(lod))
}

// TileDimensionForLod returns the tile edge in pixels; negative LODs shrink the tile.
func TileDimensionForLod(lod int) int {
	return int(math.Min(math.Pow(2, float64(lod+10)), 1024))
}
