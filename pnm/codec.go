// Package pnm decodes the portable pixmap and graymap formats (PPM and PGM)
// in both their text and binary forms.
package pnm

import (
	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/codec"
)

// Format identifiers exposed to hosts. Both accept any of P2, P3, P5 and P6.
const (
	PixmapName  = "x-portable-pixmap"
	GraymapName = "x-portable-graymap"
)

func newEngine(a *buffer.Allocator) codec.Engine {
	return NewDecoder(a)
}

// Formats returns the registry entries for PPM and PGM
func Formats() []codec.Format {
	return []codec.Format{
		{Name: PixmapName, New: newEngine},
		{Name: GraymapName, New: newEngine},
	}
}

// Register adds the PPM and PGM decoders to reg
func Register(reg *codec.Registry) error {
	for _, f := range Formats() {
		if err := reg.Register(f); err != nil {
			return err
		}
	}
	return nil
}
