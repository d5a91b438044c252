// Package session is the host-facing side of the decoders: an arena of decode
// sessions addressed by opaque handles.
//
// The Manager may be shared by many goroutines. Each session, however, must
// be driven by one goroutine at a time.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/cocosip/go-imageloader/codec"
)

// DefaultMaxSessions bounds the number of live sessions when no limit is set
const DefaultMaxSessions = 16

var (
	// ErrTooManySessions is returned by InitSession when every slot is in use
	ErrTooManySessions = errors.New("too many sessions")

	// ErrInvalidHandle is returned for a handle that was never issued or has been finished
	ErrInvalidHandle = errors.New("invalid session handle")
)

// Handle identifies a session. The zero Handle is never valid.
type Handle struct {
	index      uint32
	generation uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("%d.%d", h.index, h.generation)
}

// Session is a single decode: a decoder plus the source attached to it
type Session struct {
	format  string
	decoder *codec.Decoder
	src     io.Reader
}

type slot struct {
	generation uint32
	session    *Session
	lastErr    string // error of the finished session, until the slot is reused
}

// Manager owns the session arena
type Manager struct {
	mu    sync.Mutex
	reg   *codec.Registry
	slots []slot
	free  []uint32
	max   int
	opts  []codec.Option
	log   hclog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithMaxSessions sets the number of sessions that may be live at once
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithLogger sets the logger for session lifecycle events
func WithLogger(l hclog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithDecoderOptions sets the options every new decoder is created with
func WithDecoderOptions(opts ...codec.Option) Option {
	return func(m *Manager) {
		m.opts = append(m.opts, opts...)
	}
}

// NewManager creates a session manager over reg
func NewManager(reg *codec.Registry, opts ...Option) *Manager {
	m := &Manager{
		reg: reg,
		max: DefaultMaxSessions,
		log: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Formats lists the installed format names in stable order
func (m *Manager) Formats() []string {
	return m.reg.Formats()
}

// Active returns the number of live sessions
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots) - len(m.free)
}

// InitSession creates a decoder for format and returns its handle
func (m *Manager) InitSession(format string) (Handle, error) {
	dec, err := m.reg.New(format, m.opts...)
	if err != nil {
		m.log.Warn("unknown format", "format", format)
		return Handle{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var idx uint32
	switch {
	case len(m.free) > 0:
		idx = m.free[len(m.free)-1]
		m.free = m.free[:len(m.free)-1]
	case len(m.slots) < m.max:
		idx = uint32(len(m.slots))
		m.slots = append(m.slots, slot{})
	default:
		m.log.Warn("session limit reached", "max", m.max)
		return Handle{}, fmt.Errorf("%w: limit is %d", ErrTooManySessions, m.max)
	}

	s := &m.slots[idx]
	s.generation++
	s.session = &Session{format: format, decoder: dec}
	s.lastErr = ""
	h := Handle{index: idx, generation: s.generation}
	m.log.Debug("session created", "handle", h.String(), "format", format)
	return h, nil
}

func (m *Manager) lookup(h Handle) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.generation == 0 || int(h.index) >= len(m.slots) {
		return nil, ErrInvalidHandle
	}
	s := m.slots[h.index]
	if s.generation != h.generation || s.session == nil {
		return nil, ErrInvalidHandle
	}
	return s.session, nil
}

// Attach sets the byte source of a session. The source stays owned by the caller.
func (m *Manager) Attach(h Handle, src io.Reader) error {
	s, err := m.lookup(h)
	if err != nil {
		return err
	}
	s.src = src
	return nil
}

// Start parses the image header from the attached source
func (m *Manager) Start(h Handle) error {
	s, err := m.lookup(h)
	if err != nil {
		return err
	}
	if err := s.decoder.Start(s.src); err != nil {
		m.log.Warn("start failed", "handle", h.String(), "format", s.format, "err", err)
		return err
	}
	m.log.Debug("session started", "handle", h.String(), "format", s.format,
		"width", s.decoder.Width(), "height", s.decoder.Height())
	return nil
}

// Width returns the image width, -1 before a successful Start
func (m *Manager) Width(h Handle) (int, error) {
	s, err := m.lookup(h)
	if err != nil {
		return -1, err
	}
	return s.decoder.Width(), nil
}

// Height returns the image height, -1 before a successful Start
func (m *Manager) Height(h Handle) (int, error) {
	s, err := m.lookup(h)
	if err != nil {
		return -1, err
	}
	return s.decoder.Height(), nil
}

// ComponentCount returns the number of color components, -1 before a successful Start
func (m *Manager) ComponentCount(h Handle) (int, error) {
	s, err := m.lookup(h)
	if err != nil {
		return -1, err
	}
	return s.decoder.Components(), nil
}

// Decoder returns the decoder behind a session, for format-specific accessors
func (m *Manager) Decoder(h Handle) (*codec.Decoder, error) {
	s, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.decoder, nil
}

// NextRow writes the next row into row
func (m *Manager) NextRow(h Handle, row []uint32) error {
	s, err := m.lookup(h)
	if err != nil {
		return err
	}
	if err := s.decoder.NextRow(row); err != nil {
		m.log.Warn("row decode failed", "handle", h.String(), "format", s.format,
			"row", s.decoder.Row(), "err", err)
		return err
	}
	return nil
}

// Finish releases the session's memory and frees its slot. Finishing a
// stale handle is a no-op.
func (m *Manager) Finish(h Handle) {
	m.mu.Lock()
	if h.generation == 0 || int(h.index) >= len(m.slots) {
		m.mu.Unlock()
		return
	}
	s := &m.slots[h.index]
	if s.generation != h.generation || s.session == nil {
		m.mu.Unlock()
		return
	}
	sess := s.session
	s.session = nil
	if derr := sess.decoder.Err(); derr != nil {
		s.lastErr = derr.Error()
	}
	m.free = append(m.free, h.index)
	m.mu.Unlock()

	sess.decoder.Finish()
	m.log.Debug("session finished", "handle", h.String(), "format", sess.format, "rows", sess.decoder.Row())
}

// Error reports whether the session has recorded an error, with its message
// (at most codec.MaxErrorLen bytes). A finished session keeps reporting its
// error until its slot is handed to a new session; an unknown handle reports
// no error.
func (m *Manager) Error(h Handle) (bool, string) {
	m.mu.Lock()
	if h.generation == 0 || int(h.index) >= len(m.slots) {
		m.mu.Unlock()
		return false, ""
	}
	s := m.slots[h.index]
	m.mu.Unlock()

	switch {
	case s.generation != h.generation:
		return false, ""
	case s.session == nil:
		return s.lastErr != "", s.lastErr
	}
	if derr := s.session.decoder.Err(); derr != nil {
		return true, derr.Error()
	}
	return false, ""
}
