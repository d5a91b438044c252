// Package targa decodes Truevision Targa (TGA) images.
package targa

import (
	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/codec"
)

// Name is the format identifier exposed to hosts
const Name = "targa"

// Format returns the registry entry for Targa. The decoder seeks to the file
// footer, so forward-only sources are buffered first.
func Format() codec.Format {
	return codec.Format{
		Name:         Name,
		RandomAccess: true,
		New: func(a *buffer.Allocator) codec.Engine {
			return NewDecoder(a)
		},
	}
}

// Register adds the Targa decoder to reg
func Register(reg *codec.Registry) error {
	return reg.Register(Format())
}

// MetadataOf returns the Targa metadata of a started decoder
func MetadataOf(d *codec.Decoder) (Metadata, bool) {
	e, ok := d.Engine().(*Decoder)
	if !ok || e.hdr == nil {
		return Metadata{}, false
	}
	return e.Metadata(), true
}
