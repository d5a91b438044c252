package pnm

import (
	"errors"
	"io"

	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/codec"
)

// Decoder reads PGM and PPM images, text (P2, P3) or binary (P5, P6).
// Rows are produced straight from the source; nothing is preloaded.
type Decoder struct {
	alloc   *buffer.Allocator
	r       *codec.Reader
	hdr     *header
	rescale *buffer.Line[uint8]
	io      *buffer.Line[uint8] // binary row buffer
}

var _ codec.Engine = (*Decoder)(nil)

// NewDecoder creates a PNM decoder that allocates from a
func NewDecoder(a *buffer.Allocator) *Decoder {
	return &Decoder{alloc: a}
}

// Start reads the magic number, dimensions and maxval
func (d *Decoder) Start(src io.Reader) (codec.Header, error) {
	d.r = codec.NewReader(src)

	h, err := readHeader(d.r)
	if err != nil {
		return codec.Header{}, err
	}
	d.hdr = h

	if h.binary() {
		if d.io, err = buffer.Slice[uint8](d.alloc, h.rowBytes()); err != nil {
			return codec.Header{}, err
		}
	}

	if d.rescale, err = buffer.Slice[uint8](d.alloc, h.maxval+1); err != nil {
		return codec.Header{}, err
	}
	fillRescale(d.rescale.Data(), h.maxval)

	return codec.Header{Width: h.width, Height: h.height, Components: h.components}, nil
}

// ReadRow reads and rescales the next row
func (d *Decoder) ReadRow(row []uint32) error {
	if d.hdr.binary() {
		return d.binaryRow(row)
	}
	return d.textRow(row)
}

// Release frees the row buffer and rescale table
func (d *Decoder) Release() {
	d.io.Release()
	d.rescale.Release()
}

func (d *Decoder) sample(v int) (uint8, error) {
	if v > d.hdr.maxval {
		return 0, codec.Errorf(codec.ErrMalformedData, "PPM sample %d exceeds maxval %d", v, d.hdr.maxval)
	}
	return d.rescale.Data()[v], nil
}

func (d *Decoder) textSample() (uint8, error) {
	v, err := readInt(d.r)
	switch {
	case errors.Is(err, errNotNumeric), errors.Is(err, errTooLarge):
		return 0, codec.Errorf(codec.ErrMalformedData, "%v", err)
	case err != nil:
		return 0, err
	}
	return d.sample(v)
}

func (d *Decoder) textRow(row []uint32) error {
	for x := range row {
		if d.hdr.components == 1 {
			v, err := d.textSample()
			if err != nil {
				return err
			}
			row[x] = codec.Gray(v)
			continue
		}
		var rgb [3]uint8
		for c := range rgb {
			v, err := d.textSample()
			if err != nil {
				return err
			}
			rgb[c] = v
		}
		row[x] = codec.RGB(rgb[0], rgb[1], rgb[2])
	}
	return nil
}

func (d *Decoder) binaryRow(row []uint32) error {
	raw := d.io.Data()
	if err := d.r.ReadFull(raw); err != nil {
		return err
	}

	pos := 0
	next := func() (uint8, error) {
		v := int(raw[pos])
		pos++
		if d.hdr.wide {
			v |= int(raw[pos]) << 8
			pos++
		}
		return d.sample(v)
	}

	for x := range row {
		if d.hdr.components == 1 {
			v, err := next()
			if err != nil {
				return err
			}
			row[x] = codec.Gray(v)
			continue
		}
		var rgb [3]uint8
		for c := range rgb {
			v, err := next()
			if err != nil {
				return err
			}
			rgb[c] = v
		}
		row[x] = codec.RGB(rgb[0], rgb[1], rgb[2])
	}
	return nil
}
