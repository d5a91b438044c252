// Package bmp decodes Microsoft Windows and OS/2 bitmaps: 1, 2, 4, 8 and
// 24-bit pixels, uncompressed or RLE8/RLE4 coded.
package bmp

import (
	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/codec"
)

// Name is the format identifier exposed to hosts
const Name = "bmp"

// Format returns the registry entry for BMP
func Format() codec.Format {
	return codec.Format{
		Name: Name,
		New: func(a *buffer.Allocator) codec.Engine {
			return NewDecoder(a)
		},
	}
}

// Register adds the BMP decoder to reg
func Register(reg *codec.Registry) error {
	return reg.Register(Format())
}
