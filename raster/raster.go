// Package raster adapts the row decoders to the standard image package.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/cocosip/go-imageloader/bmp"
	"github.com/cocosip/go-imageloader/codec"
	"github.com/cocosip/go-imageloader/pnm"
)

// Image is a fully decoded raster with its component count
type Image struct {
	*image.NRGBA
	Components int
}

// Decode reads an entire image of the named format from r
func Decode(reg *codec.Registry, format string, r io.Reader, opts ...codec.Option) (*Image, error) {
	d, err := reg.Open(format, r, opts...)
	if err != nil {
		return nil, err
	}
	defer d.Finish()
	return Read(d)
}

// Read drains a started decoder into an image
func Read(d *codec.Decoder) (*Image, error) {
	w, h := d.Width(), d.Height()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	row := make([]uint32, w)
	for y := 0; y < h; y++ {
		if err := d.NextRow(row); err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", y, err)
		}
		pix := img.Pix[y*img.Stride:]
		for x, p := range row {
			pix[x*4+0] = uint8(p >> 16)
			pix[x*4+1] = uint8(p >> 8)
			pix[x*4+2] = uint8(p)
			pix[x*4+3] = uint8(p >> 24)
		}
	}
	return &Image{NRGBA: img, Components: d.Components()}, nil
}

// DecodeConfig parses only the header of an image of the named format
func DecodeConfig(reg *codec.Registry, format string, r io.Reader, opts ...codec.Option) (image.Config, error) {
	d, err := reg.Open(format, r, opts...)
	if err != nil {
		return image.Config{}, err
	}
	defer d.Finish()

	model := color.NRGBAModel
	if d.Components() == 1 {
		model = color.GrayModel
	}
	return image.Config{ColorModel: model, Width: d.Width(), Height: d.Height()}, nil
}

var registerOnce sync.Once

// RegisterImageFormats makes image.Decode recognise BMP and Netpbm files,
// decoding them with reg. Only the first call has an effect. Targa has no
// magic number and cannot be registered.
func RegisterImageFormats(reg *codec.Registry) {
	registerOnce.Do(func() {
		add := func(name, format, magic string) {
			image.RegisterFormat(name, magic,
				func(r io.Reader) (image.Image, error) {
					m, err := Decode(reg, format, r)
					if err != nil {
						return nil, err
					}
					return m, nil
				},
				func(r io.Reader) (image.Config, error) { return DecodeConfig(reg, format, r) })
		}
		add(bmp.Name, bmp.Name, "BM")
		add("pgm", pnm.GraymapName, "P2")
		add("pgm", pnm.GraymapName, "P5")
		add("ppm", pnm.PixmapName, "P3")
		add("ppm", pnm.PixmapName, "P6")
	})
}
