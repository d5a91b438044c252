package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"

	"github.com/cocosip/go-imageloader/stream"
)

// Reader provides the byte-level reads the format engines need. Every short
// read is reported as ErrPrematureEOF.
type Reader struct {
	r   *bufio.Reader
	off int64
	buf [4]byte
}

// NewReader creates a new Reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Offset returns the number of bytes consumed so far
func (r *Reader) Offset() int64 {
	return r.off
}

// ReadByte reads a single byte
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, eof(err)
	}
	r.off++
	return b, nil
}

// ReadFull fills p
func (r *Reader) ReadFull(p []byte) error {
	n, err := io.ReadFull(r.r, p)
	r.off += int64(n)
	if err != nil {
		return eof(err)
	}
	return nil
}

// Uint16 reads a 16-bit little-endian value
func (r *Reader) Uint16() (uint16, error) {
	if err := r.ReadFull(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.buf[:2]), nil
}

// Uint32 reads a 32-bit little-endian value
func (r *Reader) Uint32() (uint32, error) {
	if err := r.ReadFull(r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.buf[:4]), nil
}

// Skip discards n bytes
func (r *Reader) Skip(n int64) error {
	if n <= 0 {
		return nil
	}
	got, err := io.CopyN(io.Discard, r.r, n)
	r.off += got
	if err != nil {
		return eof(err)
	}
	return nil
}

func eof(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Errorf(ErrPrematureEOF, "premature end of input")
	}
	return AsDecodeError(err)
}

// Remaining reports how many unread bytes src holds, when that can be told
// without consuming it. Regular files, in-memory readers and buffered
// streams qualify.
func Remaining(src io.Reader) (int64, bool) {
	switch s := src.(type) {
	case *stream.Buffered:
		return s.Size() - s.Pos(), true
	case interface{ Len() int }:
		return int64(s.Len()), true
	case interface {
		io.Seeker
		Stat() (fs.FileInfo, error)
	}:
		fi, err := s.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return 0, false
		}
		pos, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false
		}
		return fi.Size() - pos, true
	}
	return 0, false
}
