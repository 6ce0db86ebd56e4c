package raster

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Info describes the raster properties the dispatcher cares about.
type Info struct {
	Format string
	Width  int
	Height int
	Bands  int
	// PixelSize is the horizontal GeoTIFF pixel scale, zero when unknown.
	PixelSize float64
}

var ErrUnsupportedFormat = errors.New("unsupported raster format")

var rasterExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

// IsRasterFile reports whether the file extension belongs to a probeable raster format.
func IsRasterFile(path string) bool {
	return rasterExtensions[strings.ToLower(filepath.Ext(path))]
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// Probe reads the header of a raster file and reports its band count.
func Probe(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open raster %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	header := make([]byte, 8)
	if _, err := io.ReadFull(file, header); err != nil {
		return Info{}, fmt.Errorf("failed to read raster header %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return Info{}, err
	}

	var info Info
	switch {
	case isTIFF(header):
		info, err = probeTIFF(file)
	case bytes.Equal(header, pngSignature):
		info, err = probePNG(file)
	default:
		info, err = probeImage(file)
	}
	if err != nil {
		return Info{}, fmt.Errorf("failed to probe raster %s: %w", path, err)
	}
	return info, nil
}

func isTIFF(header []byte) bool {
	switch {
	case bytes.Equal(header[:4], []byte{'I', 'I', versionClassic, 0}),
		bytes.Equal(header[:4], []byte{'M', 'M', 0, versionClassic}),
		bytes.Equal(header[:4], []byte{'I', 'I', versionBig, 0}),
		bytes.Equal(header[:4], []byte{'M', 'M', 0, versionBig}):
		return true
	}
	return false
}

func probePNG(r io.Reader) (Info, error) {
	// signature(8) + chunk length(4) + "IHDR"(4) + width(4) + height(4) + depth(1) + colour type(1)
	buf := make([]byte, 26)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Info{}, err
	}
	if string(buf[12:16]) != "IHDR" {
		return Info{}, errors.New("png: missing IHDR chunk")
	}

	bands := 0
	switch buf[25] {
	case 0, 3:
		bands = 1
	case 2:
		bands = 3
	case 4:
		bands = 2
	case 6:
		bands = 4
	default:
		return Info{}, fmt.Errorf("png: unknown colour type %d", buf[25])
	}

	return Info{
		Format: "png",
		Width:  int(binary.BigEndian.Uint32(buf[16:20])),
		Height: int(binary.BigEndian.Uint32(buf[20:24])),
		Bands:  bands,
	}, nil
}

func probeImage(r io.Reader) (Info, error) {
	config, format, err := image.DecodeConfig(bufio.NewReader(r))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, ErrUnsupportedFormat
		}
		return Info{}, err
	}
	bands := bandsForModel(config.ColorModel)
	if format == "bmp" && config.ColorModel == color.RGBAModel {
		// 24 bit bitmaps decode as RGBA
		bands = 3
	}
	return Info{
		Format: format,
		Width:  config.Width,
		Height: config.Height,
		Bands:  bands,
	}, nil
}

func bandsForModel(model color.Model) int {
	switch model {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.YCbCrModel:
		return 3
	case color.CMYKModel, color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return 4
	}
	if _, ok := model.(color.Palette); ok {
		return 1
	}
	return 3
}

func probeTIFF(r io.ReadSeeker) (Info, error) {
	tags, err := readTIFFTags(r)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Format:    "tiff",
		Width:     int(tags.width),
		Height:    int(tags.height),
		Bands:     int(tags.samplesPerPixel),
		PixelSize: tags.pixelScaleX,
	}
	if info.Bands == 0 {
		info.Bands = 1
	}

	// the decoder rejects layouts it cannot read, GDAL may still handle them
	if _, err := r.Seek(0, io.SeekStart); err == nil {
		if config, err := tiff.DecodeConfig(r); err == nil {
			info.Width = config.Width
			info.Height = config.Height
		}
	}
	return info, nil
}
