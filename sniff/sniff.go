// Package sniff guesses the decoder format of an image from its leading bytes
// or its file name.
package sniff

import (
	"bufio"
	"encoding/binary"
	"io"
	"path/filepath"
	"strings"
	"sync"

	filetype "gopkg.in/h2non/filetype.v1"
	"gopkg.in/h2non/filetype.v1/matchers"
	"gopkg.in/h2non/filetype.v1/types"

	"github.com/cocosip/go-imageloader/bmp"
	"github.com/cocosip/go-imageloader/pnm"
	"github.com/cocosip/go-imageloader/targa"
)

// HeadLen is the number of leading bytes Detect looks at
const HeadLen = 262

var (
	// TypePgm is the filetype kind of binary and text graymaps
	TypePgm = filetype.NewType("pgm", "image/x-portable-graymap")
	// TypePpm is the filetype kind of binary and text pixmaps
	TypePpm = filetype.NewType("ppm", "image/x-portable-pixmap")

	registerOnce sync.Once
)

func register() {
	registerOnce.Do(func() {
		filetype.AddMatcher(TypePgm, netpbm('2', '5'))
		filetype.AddMatcher(TypePpm, netpbm('3', '6'))
	})
}

// netpbm matches a 'P' magic with one of the given digits, followed by whitespace
func netpbm(text, binary byte) matchers.Matcher {
	return func(buf []byte) bool {
		if len(buf) < 3 || buf[0] != 'P' {
			return false
		}
		if buf[1] != text && buf[1] != binary {
			return false
		}
		switch buf[2] {
		case ' ', '\t', '\n', '\r':
			return true
		}
		return false
	}
}

// looksLikeTarga applies the header checks a Targa decoder would make.
// Targa has no magic number so this is a guess.
func looksLikeTarga(buf []byte) bool {
	if len(buf) < 18 {
		return false
	}
	cmapType, imageType, depth := buf[1], buf[2], buf[16]
	if cmapType > 1 {
		return false
	}
	switch imageType {
	case 1, 2, 3, 9, 10, 11:
	default:
		return false
	}
	switch depth {
	case 8, 15, 16, 24, 32:
	default:
		return false
	}
	if imageType&^8 == 1 && (cmapType != 1 || depth != 8) {
		return false
	}
	w := binary.LittleEndian.Uint16(buf[12:14])
	h := binary.LittleEndian.Uint16(buf[14:16])
	return w > 0 && h > 0 && buf[17]&0xc0 == 0
}

// Detect returns the registry name of the format head appears to hold, or ""
func Detect(head []byte) string {
	register()
	kind, err := filetype.Match(head)
	if err == nil {
		switch kind {
		case matchers.TypeBmp:
			return bmp.Name
		case TypePgm:
			return pnm.GraymapName
		case TypePpm:
			return pnm.PixmapName
		}
		if kind != filetype.Unknown {
			return ""
		}
	}
	if looksLikeTarga(head) {
		return targa.Name
	}
	return ""
}

// Kind returns the filetype kind of head, including the Netpbm kinds
func Kind(head []byte) types.Type {
	register()
	kind, _ := filetype.Match(head)
	return kind
}

var extensions = map[string]string{
	".bmp":   bmp.Name,
	".dib":   bmp.Name,
	".tga":   targa.Name,
	".targa": targa.Name,
	".icb":   targa.Name,
	".vda":   targa.Name,
	".vst":   targa.Name,
	".pgm":   pnm.GraymapName,
	".ppm":   pnm.PixmapName,
	".pnm":   pnm.PixmapName,
}

// ByName returns the registry name for a file name's extension, or ""
func ByName(name string) string {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// Reader peeks at the head of r and returns the detected format together
// with a reader that still yields every byte of r.
func Reader(r io.Reader) (string, io.Reader, error) {
	br := bufio.NewReaderSize(r, HeadLen)
	head, err := br.Peek(HeadLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", br, err
	}
	return Detect(head), br, nil
}

// Format picks a format for a file: by content first, then by extension.
// The .pnm extension is resolved by content when possible.
func Format(name string, head []byte) string {
	if f := Detect(head); f != "" {
		return f
	}
	return ByName(name)
}
