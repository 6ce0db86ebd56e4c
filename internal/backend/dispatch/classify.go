package dispatch

import "github.com/jo-hoe/cdbgen/internal/backend/layer"

// Class is the role a layer plays in the datastore.
type Class string

const (
	ClassIgnored   Class = "ignored"
	ClassElevation Class = "elevation"
	ClassImagery   Class = "imagery"
)

// Classify maps a layer to its class by kind and band count. Single band
// rasters are elevation, three and four band rasters are imagery, and
// everything else is ignored.
func Classify(l layer.Layer) Class {
	if !l.IsRaster() {
		return ClassIgnored
	}
	switch l.BandCount {
	case 1:
		return ClassElevation
	case 3, 4:
		return ClassImagery
	}
	return ClassIgnored
}
