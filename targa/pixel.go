package targa

import "github.com/cocosip/go-imageloader/codec"

// pixelReader loads the next stored pixel into px
type pixelReader interface {
	next(px []byte) error
}

type rawReader struct {
	r *codec.Reader
}

func (p *rawReader) next(px []byte) error {
	return p.r.ReadFull(px)
}

// rleReader expands run-length packets. A control byte with the high bit set
// repeats the following pixel; otherwise it precedes literal pixels. The low
// seven bits count the pixels after the first.
type rleReader struct {
	r     *codec.Reader
	block int // literal pixels left in the packet
	dup   int // repeats left of the last pixel
}

func (p *rleReader) next(px []byte) error {
	if p.dup > 0 {
		p.dup--
		return nil
	}
	p.block--
	if p.block < 0 {
		c, err := p.r.ReadByte()
		if err != nil {
			return err
		}
		if c&0x80 != 0 {
			p.dup = int(c & 0x7F)
			p.block = 0
		} else {
			p.block = int(c & 0x7F)
		}
	}
	return p.r.ReadFull(px)
}

// c5to8 expands 5-bit channel values to 8 bits with rounding
var c5to8 = [32]uint8{
	0, 8, 16, 25, 33, 41, 49, 58,
	66, 74, 82, 90, 99, 107, 115, 123,
	132, 140, 148, 156, 165, 173, 181, 189,
	197, 206, 214, 222, 230, 239, 247, 255,
}

// convert turns one stored pixel into ARGB
func (d *Decoder) convert(px []byte) (uint32, error) {
	switch d.hdr.imageType {
	case typeGrayscale:
		return codec.Gray(px[0]), nil
	case typeColormapped:
		idx := int(px[0])
		if idx >= len(d.colormap) {
			return 0, codec.Errorf(codec.ErrMalformedData, "Targa colormap index %d out of range (%d entries)", idx, len(d.colormap))
		}
		return d.colormap[idx], nil
	}

	if d.hdr.pixelSize == 2 {
		// xRRRRRGGGGGBBBBB, least significant byte first
		t := uint16(px[0]) | uint16(px[1])<<8
		return codec.RGB(c5to8[t>>10&0x1F], c5to8[t>>5&0x1F], c5to8[t&0x1F]), nil
	}
	// BGR or BGRA; the attribute byte is ignored
	return codec.RGB(px[2], px[1], px[0]), nil
}

// fill reads one row of pixels into row
func (d *Decoder) fill(row []uint32) error {
	px := d.pixel[:d.hdr.pixelSize]
	for x := range row {
		if err := d.pixels.next(px); err != nil {
			return err
		}
		v, err := d.convert(px)
		if err != nil {
			return err
		}
		row[x] = v
	}
	return nil
}
