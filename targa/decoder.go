package targa

import (
	"io"

	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/codec"
)

// Decoder reads Truevision Targa images: colormapped, truecolor and
// grayscale, raw or run-length coded.
//
// Bottom-up images are preloaded into a pixel buffer on the first ReadRow.
// When the source can seek, the TGA 2.0 footer is checked for metadata
// before the pixel data is read.
type Decoder struct {
	alloc    *buffer.Allocator
	r        *codec.Reader
	hdr      *header
	meta     Metadata
	colormap []uint32
	pixels   pixelReader
	pixel    [4]byte

	image  *buffer.Plane[uint32] // logical row order
	loaded bool
	next   int

	avail int64 // source bytes after the footer check, if known
	sized bool
}

var _ codec.Engine = (*Decoder)(nil)

// NewDecoder creates a Targa decoder that allocates from a
func NewDecoder(a *buffer.Allocator) *Decoder {
	return &Decoder{alloc: a, meta: Metadata{Version: 1, AttributesType: attrNone}}
}

// Metadata returns the image ID and, for TGA 2.0 files, the extension area fields
func (d *Decoder) Metadata() Metadata {
	return d.meta
}

// Start reads the header, image ID and colormap
func (d *Decoder) Start(src io.Reader) (codec.Header, error) {
	if rs, ok := src.(io.ReadSeeker); ok {
		if err := readFooter(rs, &d.meta); err != nil {
			return codec.Header{}, err
		}
	}
	d.avail, d.sized = codec.Remaining(src)
	d.r = codec.NewReader(src)

	var raw [headerLen]byte
	if err := d.r.ReadFull(raw[:]); err != nil {
		return codec.Header{}, err
	}
	h, err := parseHeader(raw[:])
	if err != nil {
		return codec.Header{}, err
	}
	d.hdr = h

	if h.idLen > 0 {
		id := make([]byte, h.idLen)
		if err := d.r.ReadFull(id); err != nil {
			return codec.Header{}, err
		}
		d.meta.ID = cstring(id)
	}

	if err := d.readColormap(); err != nil {
		return codec.Header{}, err
	}

	if h.rle {
		d.pixels = &rleReader{r: d.r}
	} else {
		d.pixels = &rawReader{r: d.r}
	}

	return codec.Header{Width: h.width, Height: h.height, Components: h.components()}, nil
}

func (d *Decoder) readColormap() error {
	n := d.hdr.colormapBytes()
	if n == 0 {
		return nil
	}
	line, err := buffer.Slice[uint8](d.alloc, n)
	if err != nil {
		return err
	}
	defer line.Release()
	raw := line.Data()
	if err := d.r.ReadFull(raw); err != nil {
		return err
	}
	// only colormapped images use the map; others just skip past it
	if d.hdr.imageType != typeColormapped {
		return nil
	}
	d.colormap = make([]uint32, d.hdr.mapLen)
	for i := range d.colormap {
		e := raw[i*3:]
		d.colormap[i] = codec.RGB(e[2], e[1], e[0])
	}
	return nil
}

// ReadRow writes the next row from the top of the image
func (d *Decoder) ReadRow(row []uint32) error {
	if !d.hdr.bottomUp {
		if err := d.fill(row); err != nil {
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
	copy(row, d.image.Row(d.next))
	d.image.ReleaseRow(d.next)
	d.next++
	return nil
}

// preload reads the whole bottom-up image so that row 0 is the top row.
// A source known to be too short is rejected before the buffer is made.
func (d *Decoder) preload() error {
	if d.sized {
		need := d.hdr.minDataBytes()
		if left := d.avail - d.r.Offset(); need > left {
			return codec.Errorf(codec.ErrPrematureEOF, "Targa image data needs at least %d bytes, %d remain", need, left)
		}
	}
	var err error
	if d.image, err = buffer.Pixels2D(d.alloc, d.hdr.height, d.hdr.width); err != nil {
		return err
	}
	for y := d.hdr.height - 1; y >= 0; y-- {
		if err := d.fill(d.image.Row(y)); err != nil {
			return err
		}
	}
	return nil
}

// Release frees the image buffer and colormap
func (d *Decoder) Release() {
	d.image.Release()
	d.colormap = nil
}
