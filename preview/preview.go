// Package preview draws images on a 24-bit color terminal using half blocks,
// two image rows per text line.
package preview

import (
	"bufio"
	"fmt"
	"image"
	"io"

	"github.com/mattn/go-tty"
	"golang.org/x/image/draw"
)

const upperHalf = "▀"

// Fit returns the pixel size img should be scaled to so that it fits in
// cols by rows terminal cells, keeping its aspect ratio. A cell is one
// pixel wide and two pixels tall. Images are never enlarged.
func Fit(b image.Rectangle, cols, rows int) (int, int) {
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	maxW, maxH := cols, rows*2
	if w <= maxW && h <= maxH {
		return w, h
	}
	// compare w/h against maxW/maxH without division
	if w*maxH > h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}

// Scale resamples src to w by h pixels
func Scale(src image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Render writes img to w as rows of half-block cells. An odd last row is
// drawn against the terminal's default background.
func Render(w io.Writer, img *image.NRGBA) error {
	bw := bufio.NewWriter(w)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			top := img.NRGBAAt(x, y)
			fmt.Fprintf(bw, "\x1b[38;2;%d;%d;%dm", top.R, top.G, top.B)
			if y+1 < b.Max.Y {
				bottom := img.NRGBAAt(x, y+1)
				fmt.Fprintf(bw, "\x1b[48;2;%d;%d;%dm", bottom.R, bottom.G, bottom.B)
			} else {
				bw.WriteString("\x1b[49m")
			}
			bw.WriteString(upperHalf)
		}
		bw.WriteString("\x1b[0m\n")
	}
	return bw.Flush()
}

// Show draws img on the controlling terminal. A positive width caps the
// number of columns used; one line is left free for the prompt.
func Show(img image.Image, width int) error {
	t, err := tty.Open()
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer t.Close()

	cols, rows, err := t.Size()
	if err != nil {
		return fmt.Errorf("failed to read terminal size: %w", err)
	}
	if width > 0 && width < cols {
		cols = width
	}
	w, h := Fit(img.Bounds(), cols, rows-1)
	if w == 0 {
		return nil
	}
	return Render(t.Output(), Scale(img, w, h))
}
