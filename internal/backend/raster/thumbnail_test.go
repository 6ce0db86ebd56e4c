package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestThumbnail_PreservesAspectRatio(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	path := writeFile(t, "ortho.png", encodePNG(t, src))

	data, err := Thumbnail(path, 50)
	if err != nil {
		t.Fatalf("Thumbnail error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("thumbnail is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 50 || img.Bounds().Dy() != 25 {
		t.Errorf("expected 50x25, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Errorf("unexpected pixel colour %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestThumbnail_DoesNotEnlarge(t *testing.T) {
	path := writeFile(t, "dem.png", encodePNG(t, image.NewGray(image.Rect(0, 0, 8, 4))))
	data, err := Thumbnail(path, 64)
	if err != nil {
		t.Fatalf("Thumbnail error: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig error: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 4 {
		t.Errorf("expected 8x4, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestThumbnail_Errors(t *testing.T) {
	path := writeFile(t, "ortho.png", encodePNG(t, image.NewGray(image.Rect(0, 0, 2, 2))))
	if _, err := Thumbnail(path, 0); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := Thumbnail(writeFile(t, "junk.png", []byte("not an image")), 10); err == nil {
		t.Error("expected error for undecodable file")
	}
}
