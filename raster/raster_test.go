package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-imageloader/codec"
	"github.com/cocosip/go-imageloader/formats"
	"github.com/cocosip/go-imageloader/pnm"
)

const pixmap = "P3\n2 2\n255\n255 0 0  0 255 0\n0 0 255  10 20 30\n"

func TestDecode(t *testing.T) {
	reg := formats.NewRegistry()
	img, err := Decode(reg, pnm.PixmapName, strings.NewReader(pixmap))
	require.NoError(t, err)
	require.Equal(t, 3, img.Components)
	require.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())

	require.Equal(t, color.NRGBA{255, 0, 0, 255}, img.NRGBAAt(0, 0))
	require.Equal(t, color.NRGBA{0, 255, 0, 255}, img.NRGBAAt(1, 0))
	require.Equal(t, color.NRGBA{0, 0, 255, 255}, img.NRGBAAt(0, 1))
	require.Equal(t, color.NRGBA{10, 20, 30, 255}, img.NRGBAAt(1, 1))
}

func TestDecodeGraymap(t *testing.T) {
	reg := formats.NewRegistry()
	data := []byte{'P', '5', '\n', '3', ' ', '1', '\n', '1', '5', '\n', 0, 5, 15}
	img, err := Decode(reg, pnm.GraymapName, bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 1, img.Components)
	require.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(0, 0))
	require.Equal(t, color.NRGBA{85, 85, 85, 255}, img.NRGBAAt(1, 0))
	require.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(2, 0))
}

func TestDecodeTruncated(t *testing.T) {
	reg := formats.NewRegistry()
	_, err := Decode(reg, pnm.PixmapName, strings.NewReader("P3\n2 2\n255\n1 2 3\n"))
	require.True(t, errors.Is(err, codec.ErrPrematureEOF))
}

func TestDecodeConfig(t *testing.T) {
	reg := formats.NewRegistry()
	cfg, err := DecodeConfig(reg, pnm.GraymapName, strings.NewReader("P2 640 480 255\n"))
	require.NoError(t, err)
	require.Equal(t, 640, cfg.Width)
	require.Equal(t, 480, cfg.Height)
	require.Equal(t, color.GrayModel, cfg.ColorModel)

	_, err = DecodeConfig(reg, "image/webp", strings.NewReader(""))
	require.True(t, errors.Is(err, codec.ErrUnknownFormat))
}

func TestRegisterImageFormats(t *testing.T) {
	RegisterImageFormats(formats.NewRegistry())

	img, name, err := image.Decode(strings.NewReader(pixmap))
	require.NoError(t, err)
	require.Equal(t, "ppm", name)
	r, g, b, a := img.At(1, 1).RGBA()
	require.Equal(t, [4]uint32{10 * 0x101, 20 * 0x101, 30 * 0x101, 0xffff}, [4]uint32{r, g, b, a})

	cfg, name, err := image.DecodeConfig(strings.NewReader("P5\n7 3\n255\n"))
	require.NoError(t, err)
	require.Equal(t, "pgm", name)
	require.Equal(t, 7, cfg.Width)
}
