package pnm

import (
	"errors"

	"github.com/cocosip/go-imageloader/codec"
)

var errNotNumeric = errors.New("nonnumeric data in PPM file")

// getc reads one character, turning a '#' comment into the newline that ends it
func getc(r *codec.Reader) (byte, error) {
	ch, err := r.ReadByte()
	if err != nil || ch != '#' {
		return ch, err
	}
	for {
		ch, err = r.ReadByte()
		if err != nil || ch == '\n' {
			return ch, err
		}
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// readInt reads an unsigned decimal integer after any whitespace and comments.
// The character following the digits is consumed.
func readInt(r *codec.Reader) (int, error) {
	ch, err := getc(r)
	for err == nil && isSpace(ch) {
		ch, err = getc(r)
	}
	if err != nil {
		return 0, err
	}
	if ch < '0' || ch > '9' {
		return 0, errNotNumeric
	}

	val := int(ch - '0')
	for {
		ch, err = getc(r)
		if err != nil {
			// the last token of a file may end without a separator
			if errors.Is(err, codec.ErrPrematureEOF) {
				return val, nil
			}
			return 0, err
		}
		if ch < '0' || ch > '9' {
			return val, nil
		}
		val = val*10 + int(ch-'0')
		if val > maxToken {
			return 0, errTooLarge
		}
	}
}

const maxToken = 1<<31 - 1

var errTooLarge = errors.New("number too large in PNM file")

type header struct {
	magic      byte // '2', '3', '5' or '6'
	width      int
	height     int
	maxval     int
	components int
	wide       bool // binary samples take two bytes, least significant first
}

func readHeader(r *codec.Reader) (*header, error) {
	var magic [2]byte
	if err := r.ReadFull(magic[:]); err != nil {
		return nil, err
	}
	if magic[0] != 'P' {
		return nil, codec.Errorf(codec.ErrMalformedHeader, "not a PPM file")
	}

	h := &header{magic: magic[1]}
	switch h.magic {
	case '2', '5':
		h.components = 1
	case '3', '6':
		h.components = 3
	case '1', '4', '7':
		return nil, codec.Errorf(codec.ErrUnsupportedVariant, "PNM variant P%c not supported", h.magic)
	default:
		return nil, codec.Errorf(codec.ErrMalformedHeader, "not a PPM file")
	}

	fields := []*int{&h.width, &h.height, &h.maxval}
	for _, f := range fields {
		v, err := readInt(r)
		switch {
		case errors.Is(err, errNotNumeric), errors.Is(err, errTooLarge):
			return nil, codec.Errorf(codec.ErrMalformedHeader, "%v", err)
		case err != nil:
			return nil, err
		}
		*f = v
	}

	if h.width <= 0 || h.height <= 0 || h.maxval <= 0 {
		return nil, codec.Errorf(codec.ErrMalformedHeader, "invalid PPM header %dx%d maxval %d", h.width, h.height, h.maxval)
	}
	if h.maxval > MaxValue {
		return nil, codec.Errorf(codec.ErrMalformedHeader, "PPM maxval %d exceeds %d", h.maxval, MaxValue)
	}
	h.wide = h.maxval > 255
	return h, nil
}

func (h *header) binary() bool {
	return h.magic == '5' || h.magic == '6'
}

// rowBytes is the raw row length of a binary file
func (h *header) rowBytes() int {
	n := h.width * h.components
	if h.wide {
		n *= 2
	}
	return n
}
