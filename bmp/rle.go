package bmp

import "github.com/cocosip/go-imageloader/codec"

// RLE escape codes, sent as the second byte of a pair whose first byte is 0
const (
	escEndOfLine   = 0
	escEndOfBitmap = 1
	escDelta       = 2
)

// decodeRLE expands an RLE8 or RLE4 stream into the image buffer in file row
// order. Decoding stops at the end-of-bitmap escape, or once the declared
// image size has been consumed. Samples past the row width are dropped.
func (d *Decoder) decodeRLE() error {
	var (
		row, col int
		consumed int
		nibbles  = d.hdr.compression == compressionRLE4
		width    = d.hdr.width
		height   = d.hdr.height
	)

	put := func(v byte) error {
		if col >= width {
			return nil
		}
		if row >= height {
			return codec.Errorf(codec.ErrMalformedData, "BMP RLE data past last row")
		}
		d.image.Row(row)[col] = v
		col++
		return nil
	}

	var pair [2]byte
	for d.hdr.imageSize <= 0 || consumed < d.hdr.imageSize {
		if err := d.r.ReadFull(pair[:]); err != nil {
			return err
		}
		consumed += 2
		count, value := int(pair[0]), pair[1]

		if count > 0 {
			for j := 0; j < count; j++ {
				v := value
				if nibbles {
					if j&1 == 0 {
						v = value >> 4
					} else {
						v = value & 0x0f
					}
				}
				if err := put(v); err != nil {
					return err
				}
			}
			continue
		}

		switch value {
		case escEndOfLine:
			row++
			col = 0
		case escEndOfBitmap:
			return nil
		case escDelta:
			if err := d.r.ReadFull(pair[:]); err != nil {
				return err
			}
			consumed += 2
			col += int(pair[0])
			row += int(pair[1])
			if col >= width || row >= height {
				return codec.Errorf(codec.ErrMalformedData, "BMP RLE delta moves to (%d,%d) outside %dx%d image", col, row, width, height)
			}
		default:
			// absolute run of value literal samples, padded to a 16-bit boundary
			n := int(value)
			size := n
			if nibbles {
				size = (n + 1) / 2
			}
			lit := make([]byte, size+size&1)
			if err := d.r.ReadFull(lit); err != nil {
				return err
			}
			consumed += len(lit)
			for j := 0; j < n; j++ {
				var v byte
				switch {
				case !nibbles:
					v = lit[j]
				case j&1 == 0:
					v = lit[j/2] >> 4
				default:
					v = lit[j/2] & 0x0f
				}
				if err := put(v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
