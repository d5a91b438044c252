package stream

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	return data
}

// pipeSource hides every method but Read, like a pipe descriptor
type pipeSource struct{ r io.Reader }

func (p pipeSource) Read(b []byte) (int, error) { return p.r.Read(b) }

func TestDrainRoundTrip(t *testing.T) {
	sizes := []int{1, 15, 16, 17, 100, 8192 + 3}
	for _, size := range sizes {
		src := pattern(size)
		b, err := Drain(pipeSource{iotest.HalfReader(bytes.NewReader(src))}, 16)
		if err != nil {
			t.Fatalf("size %d: Drain failed: %v", size, err)
		}
		if b.Size() != int64(size) {
			t.Fatalf("size %d: Size() = %d", size, b.Size())
		}

		// The end of the buffer is not a valid target
		if _, err := b.Seek(0, io.SeekEnd); !errors.Is(err, ErrInvalidSeek) {
			t.Errorf("size %d: Seek(0, SeekEnd) error = %v, want ErrInvalidSeek", size, err)
		}

		if pos, err := b.Seek(0, io.SeekStart); err != nil || pos != 0 {
			t.Fatalf("size %d: Seek(0, SeekStart) = %d, %v", size, pos, err)
		}
		got := make([]byte, size)
		if _, err := io.ReadFull(b, got); err != nil {
			t.Fatalf("size %d: ReadFull failed: %v", size, err)
		}
		if !bytes.Equal(got, src) {
			t.Errorf("size %d: content mismatch", size)
		}
		if n, err := b.Read(make([]byte, 1)); n != 0 || err != io.EOF {
			t.Errorf("size %d: read past end = %d, %v; want 0, EOF", size, n, err)
		}
	}
}

func TestSeekBounds(t *testing.T) {
	b, err := Drain(bytes.NewReader(pattern(40)), 16)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	tests := []struct {
		name    string
		offset  int64
		whence  int
		want    int64
		wantErr bool
	}{
		{"start", 0, io.SeekStart, 0, false},
		{"last byte", 39, io.SeekStart, 39, false},
		{"past end", 40, io.SeekStart, 0, true},
		{"negative", -1, io.SeekStart, 0, true},
		{"from end", -26, io.SeekEnd, 14, false},
		{"from end too far", -41, io.SeekEnd, 0, true},
		{"bad whence", 0, 7, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.Seek(5, io.SeekStart); err != nil {
				t.Fatalf("reset seek failed: %v", err)
			}
			pos, err := b.Seek(tt.offset, tt.whence)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSeek) {
					t.Errorf("expected ErrInvalidSeek, got %v", err)
				}
				if b.Pos() != 5 {
					t.Errorf("failed seek moved cursor to %d", b.Pos())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pos != tt.want || b.Pos() != tt.want {
				t.Errorf("Seek = %d (cursor %d), want %d", pos, b.Pos(), tt.want)
			}
		})
	}
}

func TestSeekCurrentAcrossBlocks(t *testing.T) {
	src := pattern(64)
	b, err := Drain(bytes.NewReader(src), 10)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if _, err := b.Seek(25, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Seek(-12, io.SeekCurrent); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 20)
	if _, err := io.ReadFull(b, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, src[13:33]) {
		t.Errorf("read after relative seek mismatch")
	}
}

func TestReadClampsToSize(t *testing.T) {
	b, err := Drain(bytes.NewReader(pattern(10)), 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Seek(7, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 10)
	n, err := b.Read(buf)
	if err != nil || n != 3 {
		t.Errorf("Read = %d, %v; want 3, nil", n, err)
	}
}

func TestDrainEmptySource(t *testing.T) {
	b, err := Drain(bytes.NewReader(nil), 0)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if b.Size() != 0 {
		t.Errorf("Size = %d, want 0", b.Size())
	}
	if _, err := b.Seek(0, io.SeekStart); !errors.Is(err, ErrInvalidSeek) {
		t.Errorf("seek in empty buffer: got %v, want ErrInvalidSeek", err)
	}
}

func TestDrainPropagatesReadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Drain(iotest.ErrReader(boom), 8)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped source error, got %v", err)
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestCloseLeavesSourceOpen(t *testing.T) {
	src := &closeTracker{Reader: bytes.NewReader(pattern(5))}
	b, err := Drain(src, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if src.closed {
		t.Errorf("Close closed the drained source")
	}
	if _, err := b.Read(make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("read after close: got %v, want ErrClosed", err)
	}
}
