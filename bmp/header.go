package bmp

import (
	"encoding/binary"

	"github.com/cocosip/go-imageloader/codec"
)

// Info header layouts, by declared length
const (
	coreHeaderLen = 12 // OS/2 1.x BITMAPCOREHEADER
	infoHeaderLen = 40 // Windows BITMAPINFOHEADER
	os2HeaderLen  = 64 // OS/2 2.x, extra fields ignored

	fileHeaderLen = 14
	maxColors     = 256
)

// Compression modes
const (
	compressionNone = 0
	compressionRLE8 = 1
	compressionRLE4 = 2
)

type header struct {
	offBits      int64
	headerLen    int
	width        int
	height       int
	topDown      bool
	bitsPerPixel int
	compression  int
	imageSize    int
	colorsUsed   int
	mapEntrySize int // 0 = no colormap
}

// rowBytes is the stored length of one row, padded to 4 bytes
func (h *header) rowBytes() int {
	return int((int64(h.width)*int64(h.bitsPerPixel) + 31) / 32 * 4)
}

func readHeader(r *codec.Reader) (*header, error) {
	var fh [fileHeaderLen]byte
	if err := r.ReadFull(fh[:]); err != nil {
		return nil, err
	}
	if fh[0] != 'B' || fh[1] != 'M' {
		return nil, codec.Errorf(codec.ErrMalformedHeader, "not a BMP file")
	}
	h := &header{offBits: int64(binary.LittleEndian.Uint32(fh[10:14]))}

	headerLen, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	switch headerLen {
	case coreHeaderLen, infoHeaderLen, os2HeaderLen:
	default:
		return nil, codec.Errorf(codec.ErrMalformedHeader, "invalid BMP file: bad header length %d", headerLen)
	}
	h.headerLen = int(headerLen)

	ih := make([]byte, h.headerLen-4)
	if err := r.ReadFull(ih); err != nil {
		return nil, err
	}
	le := binary.LittleEndian

	var planes uint16
	if h.headerLen == coreHeaderLen {
		h.width = int(le.Uint16(ih[0:2]))
		h.height = int(le.Uint16(ih[2:4]))
		planes = le.Uint16(ih[4:6])
		h.bitsPerPixel = int(le.Uint16(ih[6:8]))
		h.mapEntrySize = 3
	} else {
		h.width = int(int32(le.Uint32(ih[0:4])))
		h.height = int(int32(le.Uint32(ih[4:8])))
		planes = le.Uint16(ih[8:10])
		h.bitsPerPixel = int(le.Uint16(ih[10:12]))
		h.compression = int(le.Uint32(ih[12:16]))
		h.imageSize = int(le.Uint32(ih[16:20]))
		h.colorsUsed = int(int32(le.Uint32(ih[28:32])))
		h.mapEntrySize = 4
	}

	switch h.bitsPerPixel {
	case 1, 2, 4, 8:
	case 24:
		h.mapEntrySize = 0
	default:
		return nil, codec.Errorf(codec.ErrUnsupportedVariant, "BMP depth %d not supported", h.bitsPerPixel)
	}
	if planes != 1 {
		return nil, codec.Errorf(codec.ErrMalformedHeader, "invalid BMP file: biPlanes not equal to 1")
	}

	if h.height < 0 {
		h.topDown = true
		h.height = -h.height
	}
	if h.width <= 0 || h.height <= 0 {
		return nil, codec.Errorf(codec.ErrMalformedHeader, "invalid BMP dimensions %dx%d", h.width, h.height)
	}

	switch h.compression {
	case compressionNone:
	case compressionRLE8:
		if h.bitsPerPixel != 8 {
			return nil, codec.Errorf(codec.ErrUnsupportedVariant, "RLE8 compression needs 8-bit pixels, got %d", h.bitsPerPixel)
		}
	case compressionRLE4:
		if h.bitsPerPixel != 4 {
			return nil, codec.Errorf(codec.ErrUnsupportedVariant, "RLE4 compression needs 4-bit pixels, got %d", h.bitsPerPixel)
		}
	default:
		return nil, codec.Errorf(codec.ErrUnsupportedVariant, "BMP compression %d not supported", h.compression)
	}
	if h.compression != compressionNone && h.topDown {
		return nil, codec.Errorf(codec.ErrUnsupportedVariant, "compressed top-down BMP not supported")
	}

	if h.mapEntrySize > 0 {
		switch {
		case h.colorsUsed <= 0:
			h.colorsUsed = 1 << h.bitsPerPixel
		case h.colorsUsed > maxColors:
			return nil, codec.Errorf(codec.ErrUnsupportedVariant, "unsupported BMP colormap: %d entries", h.colorsUsed)
		}
	}
	return h, nil
}

// readColormap reads 3-byte (BGR) or 4-byte (BGR0) entries into opaque ARGB
func readColormap(r *codec.Reader, h *header) ([]uint32, error) {
	if h.mapEntrySize == 0 {
		return nil, nil
	}
	raw := make([]byte, h.colorsUsed*h.mapEntrySize)
	if err := r.ReadFull(raw); err != nil {
		return nil, err
	}
	palette := make([]uint32, h.colorsUsed)
	for i := range palette {
		e := raw[i*h.mapEntrySize:]
		palette[i] = codec.RGB(e[2], e[1], e[0])
	}
	return palette, nil
}
