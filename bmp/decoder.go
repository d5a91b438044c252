package bmp

import (
	"io"

	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/codec"
)

// Decoder reads Windows and OS/2 bitmaps one row at a time.
//
// Bottom-up files (the usual layout) are loaded whole into an image buffer on
// the first ReadRow and then emitted top to bottom, freeing each row as it
// goes. Top-down files are streamed straight from the source.
type Decoder struct {
	alloc   *buffer.Allocator
	r       *codec.Reader
	hdr     *header
	palette []uint32

	image   *buffer.Plane[uint8] // one stored sample per pixel, file row order
	line    *buffer.Line[uint8]  // raw row as stored in the file
	indices []byte               // unpacked top-down row
	loaded  bool
	next    int

	avail int64 // source bytes at Start, if known
	sized bool
}

var _ codec.Engine = (*Decoder)(nil)

// NewDecoder creates a BMP decoder that allocates from a
func NewDecoder(a *buffer.Allocator) *Decoder {
	return &Decoder{alloc: a}
}

// Start reads the file header, info header and colormap and skips to the pixel data
func (d *Decoder) Start(src io.Reader) (codec.Header, error) {
	d.avail, d.sized = codec.Remaining(src)
	d.r = codec.NewReader(src)

	h, err := readHeader(d.r)
	if err != nil {
		return codec.Header{}, err
	}
	d.hdr = h

	if d.palette, err = readColormap(d.r, h); err != nil {
		return codec.Header{}, err
	}

	pad := h.offBits - d.r.Offset()
	if pad < 0 {
		return codec.Header{}, codec.Errorf(codec.ErrMalformedHeader, "invalid BMP file: pixel data offset %d inside header", h.offBits)
	}
	if err := d.r.Skip(pad); err != nil {
		return codec.Header{}, err
	}

	if h.compression == compressionNone {
		if d.line, err = buffer.Slice[uint8](d.alloc, h.rowBytes()); err != nil {
			return codec.Header{}, err
		}
	}
	return codec.Header{Width: h.width, Height: h.height, Components: 3}, nil
}

// ReadRow writes the next row from the top of the image
func (d *Decoder) ReadRow(row []uint32) error {
	if d.hdr.topDown {
		if err := d.readRaw(row); err != nil {
			return err
		}
		d.next++
		return nil
	}

	if !d.loaded {
		if err := d.preload(); err != nil {
			return err
		}
		d.loaded = true
	}

	src := d.hdr.height - 1 - d.next
	if err := d.expand(row, d.image.Row(src)); err != nil {
		return err
	}
	d.image.ReleaseRow(src)
	d.next++
	return nil
}

// Release frees the image buffer and the raw row
func (d *Decoder) Release() {
	d.image.Release()
	d.line.Release()
	d.palette = nil
	d.indices = nil
}

// sampleBytes is the number of stored bytes per pixel after unpacking
func (d *Decoder) sampleBytes() int {
	if d.hdr.bitsPerPixel == 24 {
		return 3
	}
	return 1
}

// preload reads the whole bottom-up image. Uncompressed data from a source
// known to be too short is rejected before the buffer is made.
func (d *Decoder) preload() error {
	if d.sized && d.hdr.compression == compressionNone {
		need := int64(d.hdr.rowBytes()) * int64(d.hdr.height)
		if left := d.avail - d.r.Offset(); need > left {
			return codec.Errorf(codec.ErrPrematureEOF, "BMP pixel data needs %d bytes, %d remain", need, left)
		}
	}
	var err error
	if d.image, err = buffer.Bytes2D(d.alloc, d.hdr.height, d.hdr.width*d.sampleBytes()); err != nil {
		return err
	}
	if d.hdr.compression != compressionNone {
		return d.decodeRLE()
	}
	for y := 0; y < d.hdr.height; y++ {
		if err := d.r.ReadFull(d.line.Data()); err != nil {
			return err
		}
		unpack(d.image.Row(y), d.line.Data(), d.hdr.bitsPerPixel, d.hdr.width)
	}
	return nil
}

// readRaw reads and expands one row directly from the source
func (d *Decoder) readRaw(row []uint32) error {
	raw := d.line.Data()
	if err := d.r.ReadFull(raw); err != nil {
		return err
	}
	if d.hdr.bitsPerPixel == 24 {
		return d.expand(row, raw)
	}
	if d.indices == nil {
		d.indices = make([]byte, d.hdr.width)
	}
	unpack(d.indices, raw, d.hdr.bitsPerPixel, d.hdr.width)
	return d.expand(row, d.indices)
}

// unpack spreads packed samples, most significant bits first, one per byte
func unpack(dst, src []byte, bpp, width int) {
	if bpp >= 8 {
		copy(dst, src)
		return
	}
	mask := byte(1<<bpp - 1)
	perByte := 8 / bpp
	for x := 0; x < width; x++ {
		shift := uint(8 - bpp*(x%perByte+1))
		dst[x] = src[x/perByte] >> shift & mask
	}
}

// expand converts stored samples into ARGB pixels
func (d *Decoder) expand(row []uint32, data []byte) error {
	if d.hdr.bitsPerPixel == 24 {
		for x := range row {
			p := data[x*3:]
			row[x] = codec.RGB(p[2], p[1], p[0])
		}
		return nil
	}
	for x := range row {
		idx := int(data[x])
		if idx >= len(d.palette) {
			return codec.Errorf(codec.ErrMalformedData, "BMP palette index %d out of range (%d colors)", idx, len(d.palette))
		}
		row[x] = d.palette[idx]
	}
	return nil
}
