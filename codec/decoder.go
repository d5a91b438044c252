package codec

import (
	"io"

	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/stream"
)

// State is the lifecycle position of a Decoder
type State int

const (
	StateUninitialized State = iota
	StateHeaderParsed
	StateStreaming
	StateFinished
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHeaderParsed:
		return "header-parsed"
	case StateStreaming:
		return "streaming"
	case StateFinished:
		return "finished"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Option configures a Decoder
type Option func(*options)

type options struct {
	blockSize int
	alloc     *buffer.Allocator
}

// WithBlockSize sets the block size used when a forward-only source is drained
func WithBlockSize(n int) Option {
	return func(o *options) { o.blockSize = n }
}

// WithAllocator sets the allocator the engine draws its buffers from. Without
// one each decoder gets its own allocator limited to buffer.DefaultLimit.
func WithAllocator(a *buffer.Allocator) Option {
	return func(o *options) { o.alloc = a }
}

// Decoder drives one format engine through a single decode session.
//
// A Decoder is not safe for concurrent use. Errors are recorded on the decoder:
// once one occurs every call except Finish returns it.
type Decoder struct {
	format Format
	engine Engine
	opts   options

	state    State
	header   Header
	row      int
	err      *DecodeError
	buffered *stream.Buffered
}

func newDecoder(f Format, opts ...Option) *Decoder {
	d := &Decoder{format: f}
	for _, opt := range opts {
		opt(&d.opts)
	}
	if d.opts.alloc == nil {
		d.opts.alloc = buffer.NewAllocator(buffer.DefaultLimit)
	}
	d.engine = f.New(d.opts.alloc)
	d.header = Header{Width: -1, Height: -1, Components: -1}
	return d
}

// Format returns the format this decoder was created for
func (d *Decoder) Format() Format {
	return d.format
}

// Engine returns the format engine, for format-specific accessors
func (d *Decoder) Engine() Engine {
	return d.engine
}

// State returns the current lifecycle state
func (d *Decoder) State() State {
	return d.state
}

// Width returns the image width, or -1 before a successful Start
func (d *Decoder) Width() int {
	return d.header.Width
}

// Height returns the image height, or -1 before a successful Start
func (d *Decoder) Height() int {
	return d.header.Height
}

// Components returns the component count, or -1 before a successful Start
func (d *Decoder) Components() int {
	return d.header.Components
}

// Row returns the number of rows produced so far
func (d *Decoder) Row() int {
	return d.row
}

// Err returns the recorded error, or nil
func (d *Decoder) Err() error {
	if d.err == nil {
		return nil
	}
	return d.err
}

// Failed reports whether an error has been recorded
func (d *Decoder) Failed() bool {
	return d.err != nil
}

// Start parses the image header from src. The source stays owned by the caller.
func (d *Decoder) Start(src io.Reader) error {
	if d.err != nil {
		return d.err
	}
	if d.state != StateUninitialized {
		return d.fail(Errorf(ErrState, "start called in state %s", d.state))
	}
	if src == nil {
		return d.fail(Errorf(ErrState, "no source attached"))
	}

	if d.format.RandomAccess && !seekable(src) {
		b, err := stream.Drain(src, d.opts.blockSize)
		if err != nil {
			return d.fail(AsDecodeError(err))
		}
		d.buffered = b
		src = b
	}

	h, err := d.engine.Start(src)
	if err != nil {
		return d.fail(AsDecodeError(err))
	}
	if h.Width <= 0 || h.Height <= 0 || h.Components <= 0 {
		return d.fail(Errorf(ErrMalformedHeader, "%s: invalid image dimensions %dx%d", d.format.Name, h.Width, h.Height))
	}

	d.header = h
	d.state = StateHeaderParsed
	return nil
}

// NextRow writes the next row of the image into row as packed ARGB pixels.
// row must hold at least Width() pixels; only the first Width() are written.
func (d *Decoder) NextRow(row []uint32) error {
	if d.err != nil {
		return d.err
	}

	switch d.state {
	case StateHeaderParsed, StateStreaming:
	case StateFinished:
		return Errorf(ErrState, "next row called after finish")
	default:
		return d.fail(Errorf(ErrState, "next row called in state %s", d.state))
	}

	if d.row >= d.header.Height {
		return d.fail(Errorf(ErrState, "all %d rows already read", d.header.Height))
	}
	if len(row) < d.header.Width {
		return d.fail(Errorf(ErrState, "row buffer holds %d pixels, need %d", len(row), d.header.Width))
	}

	d.state = StateStreaming
	if err := d.engine.ReadRow(row[:d.header.Width]); err != nil {
		return d.fail(AsDecodeError(err))
	}
	d.row++
	return nil
}

// Finish releases every buffer the decoder owns. It is valid in any state
// and may be called more than once. A recorded error survives Finish.
func (d *Decoder) Finish() {
	if d.state == StateFinished {
		return
	}
	d.release()
	d.state = StateFinished
}

func (d *Decoder) fail(err *DecodeError) error {
	d.err = err
	d.state = StateError
	d.release()
	return err
}

func (d *Decoder) release() {
	if d.engine != nil {
		d.engine.Release()
	}
	if d.buffered != nil {
		d.buffered.Close()
		d.buffered = nil
	}
}

func seekable(r io.Reader) bool {
	s, ok := r.(io.Seeker)
	if !ok {
		return false
	}
	_, err := s.Seek(0, io.SeekCurrent)
	return err == nil
}
