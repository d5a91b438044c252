package codec

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/stream"
)

// MaxErrorLen is the maximum length of a recorded error message
const MaxErrorLen = 200

var (
	// ErrOutOfMemory is returned when a header, colormap or row buffer cannot be allocated
	ErrOutOfMemory = buffer.ErrOutOfMemory

	// ErrPrematureEOF is returned when the stream ends before the format's logical end
	ErrPrematureEOF = errors.New("premature end of input")

	// ErrMalformedHeader is returned for a bad magic number, header length or dimensions
	ErrMalformedHeader = errors.New("malformed header")

	// ErrMalformedData is returned for pixel data that contradicts the header
	ErrMalformedData = errors.New("malformed image data")

	// ErrUnsupportedVariant is returned for a recognized but unimplemented bit depth, compression or colorspace
	ErrUnsupportedVariant = errors.New("unsupported format variant")

	// ErrInvalidSeek is returned when the buffering adapter is asked to move outside its data
	ErrInvalidSeek = stream.ErrInvalidSeek

	// ErrUnknownFormat is returned when a format name is not in the registry
	ErrUnknownFormat = errors.New("unknown format")

	// ErrState is returned when an operation is not allowed in the decoder's current state
	ErrState = errors.New("operation not valid in current state")

	// ErrInvalidParameter is returned when a registry entry or option is invalid
	ErrInvalidParameter = errors.New("invalid parameter")
)

// DecodeError is the error recorded on a decoder. Kind is one of the sentinels above.
type DecodeError struct {
	Kind error
	Msg  string
}

// Errorf builds a DecodeError of the given kind
func Errorf(kind error, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Error returns the message, cut to MaxErrorLen bytes
func (e *DecodeError) Error() string {
	msg := e.Msg
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	return truncate(msg, MaxErrorLen)
}

// Unwrap exposes Kind to errors.Is
func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var kinds = []error{
	ErrOutOfMemory,
	ErrPrematureEOF,
	ErrMalformedHeader,
	ErrMalformedData,
	ErrUnsupportedVariant,
	ErrInvalidSeek,
	ErrUnknownFormat,
	ErrState,
	ErrInvalidParameter,
}

// AsDecodeError classifies an arbitrary error. Plain end-of-file errors count
// as premature end of input, and so do other read failures.
func AsDecodeError(err error) *DecodeError {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return &DecodeError{Kind: kind, Msg: err.Error()}
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &DecodeError{Kind: ErrPrematureEOF, Msg: ErrPrematureEOF.Error()}
	}
	return &DecodeError{Kind: ErrPrematureEOF, Msg: "read failed: " + err.Error()}
}
