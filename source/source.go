// Package source opens image bytes for decoding: local files or anything
// go-getter can fetch, with gzip, xz and zstd wrappers removed on the way.
//
// Every reader returned here is forward-only; decoders that need to seek
// buffer it themselves.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	getter "github.com/hashicorp/go-getter/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	filetype "gopkg.in/h2non/filetype.v1"
	"gopkg.in/h2non/filetype.v1/matchers"
)

// TypeZstd is the filetype kind of zstd frames
var TypeZstd = filetype.NewType("zst", "application/zstd")

var registerOnce sync.Once

func register() {
	registerOnce.Do(func() {
		filetype.AddMatcher(TypeZstd, func(buf []byte) bool {
			return len(buf) > 3 && buf[0] == 0x28 && buf[1] == 0xb5 && buf[2] == 0x2f && buf[3] == 0xfd
		})
	})
}

const sniffLen = 262

type options struct {
	log     hclog.Logger
	tempDir string
}

// Option configures Open
type Option func(*options)

// WithLogger sets the logger for fetch and decompression events
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTempDir sets where remote files are downloaded to
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// multiCloser reads from one reader and closes a chain of resources
type multiCloser struct {
	io.Reader
	c []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.c {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open returns a reader over the image at loc. A loc that names an existing
// file is read directly; anything else is handed to go-getter and
// downloaded to a temporary directory that is removed on Close.
func Open(ctx context.Context, loc string, opts ...Option) (io.ReadCloser, error) {
	o := options{log: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	path := loc
	var cleanup io.Closer = closerFunc(func() error { return nil })
	if _, err := os.Stat(loc); err != nil {
		dir, err := os.MkdirTemp(o.tempDir, "imageloader-")
		if err != nil {
			return nil, err
		}
		cleanup = closerFunc(func() error { return os.RemoveAll(dir) })

		dst := filepath.Join(dir, "image")
		o.log.Debug("fetching image", "src", loc, "dst", dst)
		res, err := getter.GetFile(ctx, dst, loc)
		if err != nil {
			cleanup.Close()
			return nil, fmt.Errorf("failed to fetch %s: %w", loc, err)
		}
		path = res.Dst
	}

	f, err := os.Open(path)
	if err != nil {
		cleanup.Close()
		return nil, err
	}

	r, err := decompress(f, o.log)
	if err != nil {
		f.Close()
		cleanup.Close()
		return nil, err
	}
	r.c = append(r.c, f, cleanup)
	return r, nil
}

// Decompress unwraps r if it begins with a gzip, xz or zstd header and
// returns it unchanged otherwise. Closing the result does not close r.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	return decompress(r, hclog.NewNullLogger())
}

func decompress(r io.Reader, log hclog.Logger) (*multiCloser, error) {
	register()

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF {
		return nil, err
	}
	kind, _ := filetype.Match(head)

	switch kind {
	case matchers.TypeGz:
		log.Debug("image is a gzip stream")
		return uncompress(br, func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) })
	case matchers.TypeXz:
		log.Debug("image is an xz stream")
		return uncompress(br, func(r io.Reader) (io.ReadCloser, error) {
			r2, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(r2), nil
		})
	case TypeZstd:
		log.Debug("image is a zstd stream")
		return uncompress(br, func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		})
	default:
		return &multiCloser{Reader: br}, nil
	}
}

func uncompress(r io.Reader, newReader func(io.Reader) (io.ReadCloser, error)) (*multiCloser, error) {
	rc, err := newReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed image: %w", err)
	}
	return &multiCloser{Reader: rc, c: []io.Closer{rc}}, nil
}
