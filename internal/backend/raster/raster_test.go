package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// minimalTIFF builds a little-endian TIFF header with one IFD and a pixel scale.
func minimalTIFF(width, height, samples uint16, pixelScale float64) []byte {
	const entries = 4
	ifdOffset := uint32(8)
	scaleOffset := ifdOffset + 2 + entries*12 + 4

	var buf bytes.Buffer
	buf.WriteString("II")
	_ = binary.Write(&buf, binary.LittleEndian, uint16(42))
	_ = binary.Write(&buf, binary.LittleEndian, ifdOffset)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(entries))

	writeShort := func(tag, value uint16) {
		_ = binary.Write(&buf, binary.LittleEndian, tag)
		_ = binary.Write(&buf, binary.LittleEndian, uint16(typeShort))
		_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
		_ = binary.Write(&buf, binary.LittleEndian, value)
		_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	writeShort(tagImageWidth, width)
	writeShort(tagImageLength, height)
	writeShort(tagSamplesPerPixel, samples)

	_ = binary.Write(&buf, binary.LittleEndian, uint16(tagModelPixelScale))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(typeDouble))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	_ = binary.Write(&buf, binary.LittleEndian, scaleOffset)

	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	for _, v := range []float64{pixelScale, pixelScale, 0} {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float64bits(v))
	}
	return buf.Bytes()
}

// minimalBigTIFF builds a BigTIFF header with one IFD and a pixel scale.
func minimalBigTIFF(order binary.ByteOrder, width uint64, height, samples uint16, pixelScale float64) []byte {
	const entries = 4
	ifdOffset := uint64(16)
	scaleOffset := ifdOffset + 8 + entries*20 + 8

	var buf bytes.Buffer
	if order == binary.ByteOrder(binary.LittleEndian) {
		buf.WriteString("II")
	} else {
		buf.WriteString("MM")
	}
	_ = binary.Write(&buf, order, uint16(versionBig))
	_ = binary.Write(&buf, order, uint16(8))
	_ = binary.Write(&buf, order, uint16(0))
	_ = binary.Write(&buf, order, ifdOffset)
	_ = binary.Write(&buf, order, uint64(entries))

	writeEntry := func(tag, typ uint16, count uint64, value []byte) {
		_ = binary.Write(&buf, order, tag)
		_ = binary.Write(&buf, order, typ)
		_ = binary.Write(&buf, order, count)
		padded := make([]byte, 8)
		copy(padded, value)
		buf.Write(padded)
	}
	short := func(v uint16) []byte {
		b := make([]byte, 2)
		order.PutUint16(b, v)
		return b
	}
	long8 := func(v uint64) []byte {
		b := make([]byte, 8)
		order.PutUint64(b, v)
		return b
	}
	writeEntry(tagImageWidth, typeLong8, 1, long8(width))
	writeEntry(tagImageLength, typeShort, 1, short(height))
	writeEntry(tagSamplesPerPixel, typeShort, 1, short(samples))
	writeEntry(tagModelPixelScale, typeDouble, 3, long8(scaleOffset))

	_ = binary.Write(&buf, order, uint64(0))
	for _, v := range []float64{pixelScale, pixelScale, 0} {
		_ = binary.Write(&buf, order, math.Float64bits(v))
	}
	return buf.Bytes()
}

func TestProbe_BigTIFF(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
	}{
		{"little endian", binary.LittleEndian},
		{"big endian", binary.BigEndian},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "large.tif", minimalBigTIFF(tt.order, 40000, 20000, 3, 0.00025))
			info, err := Probe(path)
			if err != nil {
				t.Fatalf("Probe failed: %v", err)
			}
			if info.Bands != 3 {
				t.Errorf("expected 3 bands, got %d", info.Bands)
			}
			if info.Width != 40000 || info.Height != 20000 {
				t.Errorf("expected 40000x20000, got %dx%d", info.Width, info.Height)
			}
			if info.PixelSize != 0.00025 {
				t.Errorf("expected pixel size 0.00025, got %g", info.PixelSize)
			}
			if info.Format != "tiff" {
				t.Errorf("expected tiff format, got %q", info.Format)
			}
		})
	}
}

func TestProbe_TIFFSamplesPerPixel(t *testing.T) {
	for _, samples := range []uint16{1, 3, 4} {
		path := writeFile(t, "layer.tif", minimalTIFF(64, 32, samples, 0.0001))
		info, err := Probe(path)
		if err != nil {
			t.Fatalf("Probe failed for %d samples: %v", samples, err)
		}
		if info.Bands != int(samples) {
			t.Errorf("expected %d bands, got %d", samples, info.Bands)
		}
		if info.Width != 64 || info.Height != 32 {
			t.Errorf("expected 64x32, got %dx%d", info.Width, info.Height)
		}
		if info.PixelSize != 0.0001 {
			t.Errorf("expected pixel size 0.0001, got %g", info.PixelSize)
		}
		if info.Format != "tiff" {
			t.Errorf("expected tiff format, got %q", info.Format)
		}
	}
}

func TestProbe_EncodedTIFF(t *testing.T) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 4)), nil); err != nil {
		t.Fatalf("tiff encode: %v", err)
	}
	info, err := Probe(writeFile(t, "dem.tif", buf.Bytes()))
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.Bands != 1 {
		t.Errorf("expected 1 band for grey tiff, got %d", info.Bands)
	}
	if info.Width != 8 || info.Height != 4 {
		t.Errorf("expected 8x4, got %dx%d", info.Width, info.Height)
	}
}

func TestProbe_PNGColourTypes(t *testing.T) {
	opaque := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range opaque.Pix {
		opaque.Pix[i] = 0xff
	}
	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	translucent.Set(0, 0, color.NRGBA{R: 10, A: 20})

	tests := []struct {
		name  string
		img   image.Image
		bands int
	}{
		{name: "grey", img: image.NewGray(image.Rect(0, 0, 2, 2)), bands: 1},
		{name: "rgb", img: opaque, bands: 3},
		{name: "rgba", img: translucent, bands: 4},
		{name: "paletted", img: image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White}), bands: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Probe(writeFile(t, tt.name+".png", encodePNG(t, tt.img)))
			if err != nil {
				t.Fatalf("Probe failed: %v", err)
			}
			if info.Bands != tt.bands {
				t.Errorf("expected %d bands, got %d", tt.bands, info.Bands)
			}
			if info.Format != "png" {
				t.Errorf("expected png format, got %q", info.Format)
			}
		})
	}
}

func TestProbe_JPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	info, err := Probe(writeFile(t, "photo.jpg", buf.Bytes()))
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.Bands != 3 {
		t.Errorf("expected 3 bands for colour jpeg, got %d", info.Bands)
	}
}

func TestProbe_Unsupported(t *testing.T) {
	_, err := Probe(writeFile(t, "notes.tif", []byte("definitely not a raster")))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestProbe_MissingFile(t *testing.T) {
	if _, err := Probe(filepath.Join(t.TempDir(), "missing.tif")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsRasterAndVectorFile(t *testing.T) {
	if !IsRasterFile("/data/ORTHO.TIF") {
		t.Error("expected .TIF to be a raster file")
	}
	if IsRasterFile("/data/roads.shp") {
		t.Error("expected .shp not to be a raster file")
	}
	if !IsVectorFile("/data/roads.shp") {
		t.Error("expected .shp to be a vector file")
	}
}

func TestSummarizeGeoJSON(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[3,4]},"properties":{}},
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]},"properties":{}}
	]}`
	summary, err := SummarizeGeoJSON(writeFile(t, "roads.geojson", []byte(doc)))
	if err != nil {
		t.Fatalf("SummarizeGeoJSON failed: %v", err)
	}
	if summary.Features != 3 {
		t.Errorf("expected 3 features, got %d", summary.Features)
	}
	if len(summary.GeometryTypes) != 2 {
		t.Errorf("expected 2 geometry types, got %v", summary.GeometryTypes)
	}
}
