// Package codec defines the row decoder contract shared by every format,
// the decoder state machine that drives it, and the format registry.
package codec

import (
	"io"

	"github.com/cocosip/go-imageloader/buffer"
)

// Engine is the format-specific part of a decoder
type Engine interface {
	// Start parses the container header(s) from src
	Start(src io.Reader) (Header, error)

	// ReadRow writes the next row, top to bottom, as packed ARGB pixels.
	// len(row) equals the header width.
	ReadRow(row []uint32) error

	// Release frees every buffer the engine owns. It may be called more than
	// once and after a failed Start.
	Release()
}

// Header holds the image geometry reported by Start
type Header struct {
	Width      int // Image width in pixels
	Height     int // Image height in rows
	Components int // 1 = grayscale, 3 = color
}

// Constructor creates a fresh engine that allocates from a
type Constructor func(a *buffer.Allocator) Engine

// Format describes a registered decoder
type Format struct {
	// Name is the format identifier exposed to the host
	Name string

	// RandomAccess reports whether the engine seeks in its source. A
	// forward-only source is drained into memory before Start.
	RandomAccess bool

	// New creates an engine for one session
	New Constructor
}

// Opaque is the alpha value of every pixel produced by the decoders
const Opaque = 0xFF000000

// RGB packs 8-bit channels into an opaque ARGB pixel
func RGB(r, g, b uint8) uint32 {
	return Opaque | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// Gray packs an 8-bit luminance into an opaque ARGB pixel
func Gray(v uint8) uint32 {
	return RGB(v, v, v)
}
