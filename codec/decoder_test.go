package codec_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/codec"
	"github.com/cocosip/go-imageloader/stream"
)

type fakeConfig struct {
	width, height int
	startErr      error
	failRow       int // row index whose read fails, -1 for none
}

func fakeImage(w, h int) fakeConfig {
	return fakeConfig{width: w, height: h, failRow: -1}
}

type fakeEngine struct {
	cfg      fakeConfig
	alloc    *buffer.Allocator
	src      io.Reader
	row      int
	released int
}

var lastEngine *fakeEngine

func newFake(cfg fakeConfig) codec.Constructor {
	return func(a *buffer.Allocator) codec.Engine {
		lastEngine = &fakeEngine{cfg: cfg, alloc: a}
		return lastEngine
	}
}

func (e *fakeEngine) Start(src io.Reader) (codec.Header, error) {
	e.src = src
	if e.cfg.startErr != nil {
		return codec.Header{}, e.cfg.startErr
	}
	return codec.Header{Width: e.cfg.width, Height: e.cfg.height, Components: 3}, nil
}

func (e *fakeEngine) ReadRow(row []uint32) error {
	if e.row == e.cfg.failRow {
		return io.ErrUnexpectedEOF
	}
	for i := range row {
		row[i] = codec.RGB(uint8(e.row), uint8(i), 0)
	}
	e.row++
	return nil
}

func (e *fakeEngine) Release() { e.released++ }

func newDecoder(t *testing.T, cfg fakeConfig, randomAccess bool) *codec.Decoder {
	t.Helper()
	reg := codec.NewRegistry()
	if err := reg.Register(codec.Format{Name: "fake", RandomAccess: randomAccess, New: newFake(cfg)}); err != nil {
		t.Fatal(err)
	}
	d, err := reg.New("fake")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDecoderLifecycle(t *testing.T) {
	d := newDecoder(t, fakeImage(3, 2), false)
	if d.Width() != -1 || d.Height() != -1 || d.Components() != -1 {
		t.Fatalf("geometry before Start = %d,%d,%d; want -1", d.Width(), d.Height(), d.Components())
	}
	if d.State() != codec.StateUninitialized {
		t.Fatalf("state = %s", d.State())
	}

	if err := d.Start(strings.NewReader("")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if d.State() != codec.StateHeaderParsed || d.Width() != 3 || d.Height() != 2 {
		t.Fatalf("after Start: state %s, %dx%d", d.State(), d.Width(), d.Height())
	}

	row := make([]uint32, 5)
	for y := 0; y < 2; y++ {
		if err := d.NextRow(row); err != nil {
			t.Fatalf("NextRow %d failed: %v", y, err)
		}
		if d.State() != codec.StateStreaming {
			t.Errorf("state = %s, want streaming", d.State())
		}
		if row[2] != codec.RGB(uint8(y), 2, 0) {
			t.Errorf("row %d pixel 2 = %#x", y, row[2])
		}
		if row[3] != 0 {
			t.Errorf("decoder wrote past width")
		}
	}

	if err := d.NextRow(row); !errors.Is(err, codec.ErrState) {
		t.Errorf("NextRow past height: got %v, want ErrState", err)
	}
	if !d.Failed() || d.State() != codec.StateError {
		t.Errorf("reading past the end should record an error")
	}

	d.Finish()
	d.Finish()
	if d.State() != codec.StateFinished {
		t.Errorf("state after Finish = %s", d.State())
	}
	if lastEngine.released == 0 {
		t.Errorf("engine was never released")
	}
	if !errors.Is(d.Err(), codec.ErrState) {
		t.Errorf("recorded error lost after Finish: %v", d.Err())
	}
}

func TestDecoderStartFailureKeepsSentinels(t *testing.T) {
	d := newDecoder(t, fakeConfig{startErr: codec.Errorf(codec.ErrMalformedHeader, "bad magic")}, false)
	err := d.Start(strings.NewReader("x"))
	if !errors.Is(err, codec.ErrMalformedHeader) {
		t.Fatalf("Start error = %v, want ErrMalformedHeader", err)
	}
	if d.Width() != -1 || d.Height() != -1 {
		t.Errorf("geometry set after failed Start: %dx%d", d.Width(), d.Height())
	}
	if err := d.NextRow(make([]uint32, 1)); !errors.Is(err, codec.ErrMalformedHeader) {
		t.Errorf("NextRow after failure returned %v, want the recorded error", err)
	}
	if lastEngine.released == 0 {
		t.Errorf("engine buffers not released on error")
	}
	d.Finish()
}

func TestDecoderRowFailure(t *testing.T) {
	cfg := fakeImage(2, 4)
	cfg.failRow = 2
	d := newDecoder(t, cfg, false)
	if err := d.Start(strings.NewReader("")); err != nil {
		t.Fatal(err)
	}
	row := make([]uint32, 2)
	for y := 0; y < 4; y++ {
		err := d.NextRow(row)
		switch {
		case y < 2 && err != nil:
			t.Fatalf("row %d: unexpected error %v", y, err)
		case y >= 2 && !errors.Is(err, codec.ErrPrematureEOF):
			t.Fatalf("row %d: got %v, want ErrPrematureEOF", y, err)
		}
	}
	if d.Row() != 2 {
		t.Errorf("Row() = %d, want 2", d.Row())
	}
}

func TestDecoderShortRowBuffer(t *testing.T) {
	d := newDecoder(t, fakeImage(4, 1), false)
	if err := d.Start(strings.NewReader("")); err != nil {
		t.Fatal(err)
	}
	if err := d.NextRow(make([]uint32, 3)); !errors.Is(err, codec.ErrState) {
		t.Errorf("short buffer: got %v, want ErrState", err)
	}
}

func TestDecoderCallsOutOfOrder(t *testing.T) {
	d := newDecoder(t, fakeImage(1, 1), false)
	if err := d.NextRow(make([]uint32, 1)); !errors.Is(err, codec.ErrState) {
		t.Errorf("NextRow before Start: got %v, want ErrState", err)
	}

	d = newDecoder(t, fakeImage(1, 1), false)
	if err := d.Start(nil); !errors.Is(err, codec.ErrState) {
		t.Errorf("Start without source: got %v, want ErrState", err)
	}

	d = newDecoder(t, fakeImage(1, 1), false)
	d.Finish()
	if err := d.NextRow(make([]uint32, 1)); !errors.Is(err, codec.ErrState) {
		t.Errorf("NextRow after Finish: got %v, want ErrState", err)
	}
	if d.Failed() {
		t.Errorf("call after Finish should not record an error")
	}
}

type forwardOnly struct{ r io.Reader }

func (f forwardOnly) Read(p []byte) (int, error) { return f.r.Read(p) }

func TestDecoderDrainsForwardOnlySource(t *testing.T) {
	d := newDecoder(t, fakeImage(1, 1), true)
	if err := d.Start(forwardOnly{strings.NewReader("abcdef")}); err != nil {
		t.Fatal(err)
	}
	b, ok := lastEngine.src.(*stream.Buffered)
	if !ok {
		t.Fatalf("engine got %T, want *stream.Buffered", lastEngine.src)
	}
	if b.Size() != 6 {
		t.Errorf("buffered size = %d, want 6", b.Size())
	}
	d.Finish()
	if _, err := b.Read(make([]byte, 1)); !errors.Is(err, stream.ErrClosed) {
		t.Errorf("buffered copy not closed by Finish: %v", err)
	}

	// a seekable source is handed over untouched
	d = newDecoder(t, fakeImage(1, 1), true)
	src := bytes.NewReader([]byte("abc"))
	if err := d.Start(src); err != nil {
		t.Fatal(err)
	}
	if lastEngine.src != io.Reader(src) {
		t.Errorf("seekable source was wrapped")
	}
}

func TestDecoderAllocator(t *testing.T) {
	reg := codec.NewRegistry()
	if err := reg.Register(codec.Format{Name: "fake", New: newFake(fakeImage(1, 1))}); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.New("fake"); err != nil {
		t.Fatal(err)
	}
	if got := lastEngine.alloc.Limit(); got != buffer.DefaultLimit {
		t.Errorf("default allocator limit = %d, want %d", got, buffer.DefaultLimit)
	}

	shared := buffer.NewAllocator(0)
	if _, err := reg.New("fake", codec.WithAllocator(shared)); err != nil {
		t.Fatal(err)
	}
	if lastEngine.alloc != shared {
		t.Errorf("engine did not get the configured allocator")
	}
}

func TestDecodeErrorTruncation(t *testing.T) {
	err := codec.Errorf(codec.ErrMalformedData, "%s", strings.Repeat("x", 500))
	if len(err.Error()) != codec.MaxErrorLen {
		t.Errorf("len(Error()) = %d, want %d", len(err.Error()), codec.MaxErrorLen)
	}
	if !errors.Is(err, codec.ErrMalformedData) {
		t.Errorf("kind lost")
	}
}

func TestAsDecodeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"eof", io.EOF, codec.ErrPrematureEOF},
		{"unexpected eof", io.ErrUnexpectedEOF, codec.ErrPrematureEOF},
		{"out of memory", buffer.ErrOutOfMemory, codec.ErrOutOfMemory},
		{"invalid seek", stream.ErrInvalidSeek, codec.ErrInvalidSeek},
		{"other", errors.New("disk on fire"), codec.ErrPrematureEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := codec.AsDecodeError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("AsDecodeError(%v) = %v, want kind %v", tt.err, got, tt.want)
			}
		})
	}
}
