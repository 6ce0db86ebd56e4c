package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagSamplesPerPixel = 277
	tagModelPixelScale = 33550

	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
	typeLong8  = 16

	versionClassic = 42
	versionBig     = 43

	maxIFDEntries = 4096
)

type tiffTags struct {
	width           uint32
	height          uint32
	samplesPerPixel uint32
	pixelScaleX     float64
}

// readTIFFTags reads the first IFD of a classic or BigTIFF file.
func readTIFFTags(r io.ReadSeeker) (tiffTags, error) {
	var tags tiffTags

	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header[:8]); err != nil {
		return tags, err
	}
	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return tags, errors.New("tiff: invalid byte order")
	}

	// classic: 2 byte count, 12 byte entries, 4 byte values
	// BigTIFF: 8 byte count, 20 byte entries, 8 byte values
	var (
		ifdOffset uint64
		big       bool
	)
	switch order.Uint16(header[2:4]) {
	case versionClassic:
		ifdOffset = uint64(order.Uint32(header[4:8]))
	case versionBig:
		if _, err := io.ReadFull(r, header[8:16]); err != nil {
			return tags, err
		}
		if order.Uint16(header[4:6]) != 8 {
			return tags, errors.New("tiff: unsupported BigTIFF offset size")
		}
		ifdOffset = order.Uint64(header[8:16])
		big = true
	default:
		return tags, errors.New("tiff: unsupported version")
	}
	if ifdOffset > math.MaxInt64 {
		return tags, errors.New("tiff: invalid IFD offset")
	}

	if _, err := r.Seek(int64(ifdOffset), io.SeekStart); err != nil {
		return tags, err
	}
	countSize, entrySize, valueSize := 2, 12, 4
	if big {
		countSize, entrySize, valueSize = 8, 20, 8
	}
	countBuf := make([]byte, countSize)
	if _, err := io.ReadFull(r, countBuf); err != nil {
		return tags, err
	}
	var count uint64
	if big {
		count = order.Uint64(countBuf)
	} else {
		count = uint64(order.Uint16(countBuf))
	}
	if count > maxIFDEntries {
		return tags, fmt.Errorf("tiff: too many IFD entries (%d)", count)
	}

	entries := make([]byte, int(count)*entrySize)
	if _, err := io.ReadFull(r, entries); err != nil {
		return tags, err
	}

	var pixelScaleOffset uint64
	for i := 0; i < int(count); i++ {
		entry := entries[i*entrySize : (i+1)*entrySize]
		tag := order.Uint16(entry[0:2])
		typ := order.Uint16(entry[2:4])
		value := entry[entrySize-valueSize:]

		switch tag {
		case tagImageWidth:
			tags.width = scalar(order, typ, value)
		case tagImageLength:
			tags.height = scalar(order, typ, value)
		case tagSamplesPerPixel:
			tags.samplesPerPixel = scalar(order, typ, value)
		case tagModelPixelScale:
			if typ != typeDouble {
				break
			}
			if big {
				pixelScaleOffset = order.Uint64(value)
			} else {
				pixelScaleOffset = uint64(order.Uint32(value))
			}
		}
	}

	if pixelScaleOffset > 0 && pixelScaleOffset <= math.MaxInt64 {
		if _, err := r.Seek(int64(pixelScaleOffset), io.SeekStart); err == nil {
			scale := make([]byte, 8)
			if _, err := io.ReadFull(r, scale); err == nil {
				tags.pixelScaleX = math.Float64frombits(order.Uint64(scale))
			}
		}
	}
	return tags, nil
}

func scalar(order binary.ByteOrder, typ uint16, value []byte) uint32 {
	switch typ {
	case typeShort:
		return uint32(order.Uint16(value[0:2]))
	case typeLong:
		return order.Uint32(value)
	case typeLong8:
		if v := order.Uint64(value); v <= math.MaxUint32 {
			return uint32(v)
		}
	}
	return 0
}
