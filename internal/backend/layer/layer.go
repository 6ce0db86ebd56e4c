package layer

import (
	"context"
	"fmt"
	"strings"
)

// Kind is the map layer type as seen by the host project.
type Kind string

const (
	KindRaster Kind = "raster"
	KindVector Kind = "vector"
)

// ParseKind normalises a user supplied layer kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindRaster:
		return KindRaster, nil
	case KindVector:
		return KindVector, nil
	}
	return "", fmt.Errorf("unknown layer kind: %q (must be 'raster' or 'vector')", s)
}

// Layer is a project layer. The dispatcher never modifies it.
type Layer struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Source    string `json:"source" yaml:"source"`
	Kind      Kind   `json:"kind" yaml:"kind"`
	BandCount int    `json:"bandCount" yaml:"bands"`
}

func (l Layer) IsRaster() bool {
	return l.Kind == KindRaster
}

// Collection yields the layers of a project. Order is implementation defined.
type Collection interface {
	Layers(ctx context.Context) ([]Layer, error)
}

// Static is a fixed in-memory collection.
type Static []Layer

func (s Static) Layers(context.Context) ([]Layer, error) {
	out := make([]Layer, len(s))
	copy(out, s)
	return out, nil
}

// Multi concatenates collections in order.
type Multi []Collection

func (m Multi) Layers(ctx context.Context) ([]Layer, error) {
	var out []Layer
	for _, collection := range m {
		layers, err := collection.Layers(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, layers...)
	}
	return out, nil
}

// CollectionFunc adapts a function to a Collection.
type CollectionFunc func(ctx context.Context) ([]Layer, error)

func (f CollectionFunc) Layers(ctx context.Context) ([]Layer, error) {
	return f(ctx)
}
