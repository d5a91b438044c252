package targa

import (
	"encoding/binary"

	"github.com/cocosip/go-imageloader/codec"
)

const headerLen = 18

// Image types. Run-length coded variants are offset by rleOffset.
const (
	typeColormapped = 1
	typeTruecolor   = 2
	typeGrayscale   = 3
	rleOffset       = 8
)

const maxColormapLen = 256

type header struct {
	idLen        int
	colormapType int
	imageType    int // without the RLE offset
	rle          bool
	mapFirst     int
	mapLen       int
	mapEntryBits int
	width        int
	height       int
	pixelSize    int // bytes per pixel
	bottomUp     bool
}

func parseHeader(b []byte) (*header, error) {
	le := binary.LittleEndian
	h := &header{
		idLen:        int(b[0]),
		colormapType: int(b[1]),
		imageType:    int(b[2]),
		mapFirst:     int(le.Uint16(b[3:5])),
		mapLen:       int(le.Uint16(b[5:7])),
		mapEntryBits: int(b[7]),
		width:        int(le.Uint16(b[12:14])),
		height:       int(le.Uint16(b[14:16])),
	}

	depth := int(b[16])
	// 15-bit pixels are stored in two bytes; the attribute bit is ignored anyway
	if depth == 15 {
		depth = 16
	}
	descriptor := b[17]
	h.bottomUp = descriptor&0x20 == 0
	interlace := descriptor >> 6

	if h.colormapType > 1 {
		return nil, codec.Errorf(codec.ErrMalformedHeader, "invalid Targa colormap type %d", h.colormapType)
	}
	if depth%8 != 0 || depth < 8 || depth > 32 {
		return nil, codec.Errorf(codec.ErrUnsupportedVariant, "Targa pixel depth %d not supported", b[16])
	}
	h.pixelSize = depth / 8
	if interlace != 0 {
		return nil, codec.Errorf(codec.ErrUnsupportedVariant, "interlaced Targa files not supported")
	}

	if h.imageType > rleOffset {
		h.rle = true
		h.imageType -= rleOffset
	}
	switch h.imageType {
	case typeColormapped:
		if h.pixelSize != 1 || h.colormapType != 1 {
			return nil, codec.Errorf(codec.ErrUnsupportedVariant, "colormapped Targa needs 8-bit indexes and a colormap")
		}
	case typeTruecolor:
		if h.pixelSize < 2 {
			return nil, codec.Errorf(codec.ErrUnsupportedVariant, "truecolor Targa with %d-byte pixels not supported", h.pixelSize)
		}
	case typeGrayscale:
		if h.pixelSize != 1 {
			return nil, codec.Errorf(codec.ErrUnsupportedVariant, "grayscale Targa with %d-byte pixels not supported", h.pixelSize)
		}
	default:
		return nil, codec.Errorf(codec.ErrUnsupportedVariant, "Targa image type %d not supported", b[2])
	}

	if h.colormapType == 1 && h.mapLen == 0 {
		return nil, codec.Errorf(codec.ErrMalformedHeader, "Targa header promises a colormap but gives no entries")
	}
	if h.imageType == typeColormapped {
		if h.mapLen > maxColormapLen || h.mapFirst != 0 || h.mapEntryBits != 24 {
			return nil, codec.Errorf(codec.ErrUnsupportedVariant, "unsupported Targa colormap format")
		}
	}

	if h.width == 0 || h.height == 0 {
		return nil, codec.Errorf(codec.ErrMalformedHeader, "invalid Targa dimensions %dx%d", h.width, h.height)
	}
	return h, nil
}

// colormapBytes is the stored size of the colormap
func (h *header) colormapBytes() int {
	if h.colormapType == 0 {
		return 0
	}
	return h.mapLen * ((h.mapEntryBits + 7) / 8)
}

// minDataBytes is the smallest pixel data that can describe the whole image.
// A run-length packet covers at most 128 pixels.
func (h *header) minDataBytes() int64 {
	n := int64(h.width) * int64(h.height)
	if h.rle {
		return (n + 127) / 128 * int64(1+h.pixelSize)
	}
	return n * int64(h.pixelSize)
}

func (h *header) components() int {
	if h.imageType == typeGrayscale {
		return 1
	}
	return 3
}
