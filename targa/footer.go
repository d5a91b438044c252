package targa

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	footerLen    = 26
	extensionLen = 495
	footerMagic  = "TRUEVISION-XFILE.\x00"

	attrNone          = -1
	attrAlpha         = 3
	attrPremultiplied = 4
)

// Metadata carries the descriptive fields of a Targa file
type Metadata struct {
	ID             string // image ID field
	Version        int    // 1, or 2 when the file has a TGA 2.0 footer
	Author         string
	Software       string
	AttributesType int // extension area attributes type, -1 if absent
}

// HasAlpha reports whether the extension area declares usable alpha data
func (m Metadata) HasAlpha() bool {
	return m.AttributesType == attrAlpha || m.AttributesType == attrPremultiplied
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, " "))
}

// readFooter looks for a TGA 2.0 footer at the end of rs and, if one is
// there, reads the extension area. The read position is restored afterwards.
// A file too short for a footer simply has none, and rs is left untouched.
func readFooter(rs io.ReadSeeker, m *Metadata) (err error) {
	// an empty buffered source has no valid position at all
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil
	}
	end, err := rs.Seek(-footerLen, io.SeekEnd)
	if err != nil {
		return nil
	}
	defer func() {
		if _, serr := rs.Seek(start, io.SeekStart); serr != nil && err == nil {
			err = serr
		}
	}()

	if end < headerLen {
		return nil
	}
	var footer [footerLen]byte
	if _, err := io.ReadFull(rs, footer[:]); err != nil {
		return nil
	}
	if string(footer[8:]) != footerMagic {
		return nil
	}
	m.Version = 2

	extOffset := int64(binary.LittleEndian.Uint32(footer[0:4]))
	if extOffset < headerLen || extOffset+extensionLen > end {
		return nil
	}
	if _, err := rs.Seek(extOffset, io.SeekStart); err != nil {
		return nil
	}
	var ext [extensionLen]byte
	if _, err := io.ReadFull(rs, ext[:]); err != nil {
		return nil
	}
	if binary.LittleEndian.Uint16(ext[0:2]) < extensionLen {
		return nil
	}
	m.Author = cstring(ext[2:43])
	m.Software = cstring(ext[426:467])
	m.AttributesType = int(ext[494])
	return nil
}
