// Package stream turns a forward-only byte source, such as a pipe, into a
// fixed-size, randomly seekable one by draining it into memory up front.
package stream

import (
	"errors"
	"fmt"
	"io"
)

// DefaultBlockSize is the block size used when Drain is given a non-positive size
const DefaultBlockSize = 8192

var (
	// ErrInvalidSeek is returned when a seek target falls outside the buffered data
	ErrInvalidSeek = errors.New("invalid seek offset")

	// ErrClosed is returned by operations on a closed Buffered stream
	ErrClosed = errors.New("buffered stream closed")
)

// Buffered is an in-memory copy of a drained source, stored as a list of
// fixed-size blocks. Every block except the last is full.
type Buffered struct {
	blocks    [][]byte
	blockSize int
	size      int64

	block  int // cursor block index
	offset int // cursor offset within block
	closed bool
}

var (
	_ io.ReadSeeker = (*Buffered)(nil)
	_ io.Closer     = (*Buffered)(nil)
)

// Drain reads r until end of data and returns a seekable copy of everything read.
// The source is not closed; ownership stays with the caller.
func Drain(r io.Reader, blockSize int) (*Buffered, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	b := &Buffered{blockSize: blockSize}

	var cur []byte
	filled := 0
	for {
		if cur == nil || filled == blockSize {
			if cur != nil {
				b.blocks = append(b.blocks, cur)
			}
			cur = make([]byte, blockSize)
			filled = 0
		}

		n, err := r.Read(cur[filled:])
		filled += n
		b.size += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			b.blocks = nil
			return nil, fmt.Errorf("stream: draining source: %w", err)
		}
	}

	// keep the final partial block at its filled length
	if filled > 0 {
		b.blocks = append(b.blocks, cur[:filled:filled])
	}
	return b, nil
}

// Size returns the total number of buffered bytes
func (b *Buffered) Size() int64 {
	return b.size
}

// Pos returns the cursor as an absolute offset
func (b *Buffered) Pos() int64 {
	return int64(b.block)*int64(b.blockSize) + int64(b.offset)
}

// Read copies up to len(p) bytes starting at the cursor, spanning blocks as
// needed. The count is clamped to the buffered size; io.EOF is returned once
// the cursor reaches the end.
func (b *Buffered) Read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	remaining := b.size - b.Pos()
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	total := 0
	for total < len(p) {
		blk := b.blocks[b.block]
		n := copy(p[total:], blk[b.offset:])
		total += n
		b.offset += n
		if b.offset == b.blockSize {
			b.block++
			b.offset = 0
		}
	}
	return total, nil
}

// Seek moves the cursor. The target must lie in [0, Size()); anything else
// fails with ErrInvalidSeek and leaves the cursor untouched.
func (b *Buffered) Seek(offset int64, whence int) (int64, error) {
	if b.closed {
		return 0, ErrClosed
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.Pos() + offset
	case io.SeekEnd:
		abs = b.size + offset
	default:
		return 0, fmt.Errorf("%w: unknown whence %d", ErrInvalidSeek, whence)
	}

	if abs < 0 || abs >= b.size {
		return 0, fmt.Errorf("%w: %d outside [0, %d)", ErrInvalidSeek, abs, b.size)
	}

	b.block = int(abs / int64(b.blockSize))
	b.offset = int(abs % int64(b.blockSize))
	return abs, nil
}

// Close releases the buffered blocks. The drained source is left alone.
func (b *Buffered) Close() error {
	b.blocks = nil
	b.closed = true
	return nil
}
