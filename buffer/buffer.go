// Package buffer allocates the rectangular byte and pixel buffers used by the
// format decoders.
//
// Every allocation is all-or-nothing: the requested size is checked against
// overflow and the allocator budget before any row is made, so a caller never
// observes a partially allocated buffer.
package buffer

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrOutOfMemory is returned when a buffer cannot be allocated
var ErrOutOfMemory = errors.New("insufficient memory")

// DefaultLimit is the budget decoders get when no allocator is configured
const DefaultLimit = 256 << 20

// Elem is the set of element types a Plane can hold
type Elem interface {
	uint8 | uint32
}

// Allocator hands out buffers within an optional byte budget.
// A nil *Allocator behaves like an allocator without a limit.
type Allocator struct {
	mu    sync.Mutex
	limit int64 // 0 means unlimited
	used  int64
}

// NewAllocator creates an allocator that refuses to hold more than limit bytes
// at once. A limit of zero or less disables the budget.
func NewAllocator(limit int64) *Allocator {
	if limit < 0 {
		limit = 0
	}
	return &Allocator{limit: limit}
}

// Limit returns the configured budget in bytes (0 = unlimited)
func (a *Allocator) Limit() int64 {
	if a == nil {
		return 0
	}
	return a.limit
}

// InUse returns the number of bytes currently reserved
func (a *Allocator) InUse() int64 {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

func (a *Allocator) reserve(n int64) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limit > 0 && a.used+n > a.limit {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrOutOfMemory, n, a.used, a.limit)
	}
	a.used += n
	return nil
}

func (a *Allocator) release(n int64) {
	if a == nil || n == 0 {
		return
	}
	a.mu.Lock()
	a.used -= n
	if a.used < 0 {
		a.used = 0
	}
	a.mu.Unlock()
}

func sizeOf[T Elem]() int64 {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return 1
	default:
		return 4
	}
}

// byteCount returns rows*cols*elemSize or an error if it overflows
func byteCount(rows, cols int, elem int64) (int64, error) {
	if rows < 0 || cols < 0 {
		return 0, fmt.Errorf("%w: invalid buffer shape %dx%d", ErrOutOfMemory, rows, cols)
	}
	if rows == 0 || cols == 0 {
		return 0, nil
	}
	if int64(cols) > math.MaxInt64/elem/int64(rows) {
		return 0, fmt.Errorf("%w: buffer shape %dx%d overflows", ErrOutOfMemory, rows, cols)
	}
	return int64(rows) * int64(cols) * elem, nil
}

// Slice allocates a one-dimensional buffer of n elements
func Slice[T Elem](a *Allocator, n int) (*Line[T], error) {
	size, err := byteCount(1, n, sizeOf[T]())
	if err != nil {
		return nil, err
	}
	if err := a.reserve(size); err != nil {
		return nil, err
	}
	return &Line[T]{data: make([]T, n), alloc: a, size: size}, nil
}

// Line is a one-dimensional buffer owned by a decoder
type Line[T Elem] struct {
	data  []T
	alloc *Allocator
	size  int64
}

// Data returns the underlying slice (nil after Release)
func (l *Line[T]) Data() []T {
	if l == nil {
		return nil
	}
	return l.data
}

// Release returns the buffer to the allocator. It is safe to call more than once.
func (l *Line[T]) Release() {
	if l == nil || l.data == nil {
		return
	}
	l.data = nil
	l.alloc.release(l.size)
	l.size = 0
}

// Plane is a rectangular buffer made of individually allocated rows.
type Plane[T Elem] struct {
	rows    [][]T
	cols    int
	rowSize int64
	alloc   *Allocator
}

// Alloc2D allocates a rows x cols buffer. Either every row is allocated or
// nil is returned together with an error wrapping ErrOutOfMemory.
func Alloc2D[T Elem](a *Allocator, rows, cols int) (*Plane[T], error) {
	total, err := byteCount(rows, cols, sizeOf[T]())
	if err != nil {
		return nil, err
	}
	if err := a.reserve(total); err != nil {
		return nil, err
	}
	p := &Plane[T]{
		rows:    make([][]T, rows),
		cols:    cols,
		rowSize: int64(cols) * sizeOf[T](),
		alloc:   a,
	}
	for i := range p.rows {
		p.rows[i] = make([]T, cols)
	}
	return p, nil
}

// Bytes2D allocates a rows x cols byte buffer
func Bytes2D(a *Allocator, rows, cols int) (*Plane[uint8], error) {
	return Alloc2D[uint8](a, rows, cols)
}

// Pixels2D allocates a rows x cols buffer of packed ARGB pixels
func Pixels2D(a *Allocator, rows, cols int) (*Plane[uint32], error) {
	return Alloc2D[uint32](a, rows, cols)
}

// Rows returns the number of rows the buffer was allocated with
func (p *Plane[T]) Rows() int {
	if p == nil {
		return 0
	}
	return len(p.rows)
}

// Cols returns the row length
func (p *Plane[T]) Cols() int {
	if p == nil {
		return 0
	}
	return p.cols
}

// Row returns row i, or nil if it has been released
func (p *Plane[T]) Row(i int) []T {
	if p == nil || i < 0 || i >= len(p.rows) {
		return nil
	}
	return p.rows[i]
}

// ReleaseRow drops row i so it can be reclaimed before the whole buffer is released
func (p *Plane[T]) ReleaseRow(i int) {
	if p == nil || i < 0 || i >= len(p.rows) || p.rows[i] == nil {
		return
	}
	p.rows[i] = nil
	p.alloc.release(p.rowSize)
}

// Release drops every remaining row. It is safe to call more than once.
func (p *Plane[T]) Release() {
	if p == nil {
		return
	}
	for i := range p.rows {
		p.ReleaseRow(i)
	}
	p.rows = nil
}
