package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// tga24 builds an uncompressed bottom-up 24-bit Targa image with an ID field
func tga24(w, h int, id string) []byte {
	hdr := make([]byte, 18)
	hdr[0] = byte(len(id))
	hdr[2] = 2
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = 24
	data := append(hdr, id...)
	return append(data, make([]byte, w*h*3)...)
}

func TestFormats(t *testing.T) {
	code, out, _ := runCmd(t, "formats")
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	want := "bmp\ntarga\nx-portable-pixmap\nx-portable-graymap\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestInfo(t *testing.T) {
	path := writeImage(t, "gray.pgm", []byte("P2\n3 2\n255\n0 1 2\n3 4 5\n"))
	code, out, errOut := runCmd(t, "info", path)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	for _, want := range []string{"x-portable-graymap", "width:      3", "height:     2", "components: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoTarga(t *testing.T) {
	path := writeImage(t, "scan.tga", tga24(4, 2, "scan"))
	code, out, errOut := runCmd(t, "info", path)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	if !strings.Contains(out, "format:     targa") || !strings.Contains(out, "id:         scan") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestDecodeCompressed(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("P3\n2 1\n255\n255 0 0 0 0 255\n"))
	zw.Close()
	path := writeImage(t, "color.ppm.gz", buf.Bytes())
	out := filepath.Join(t.TempDir(), "color.png")

	code, _, errOut := runCmd(t, "decode", "-o", out, "-max-image-bytes", "1048576", path)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	if r, _, b, _ := img.At(1, 0).RGBA(); r != 0 || b != 0xffff {
		t.Errorf("pixel (1,0) = r %d b %d, want blue", r, b)
	}
}

func TestDicom(t *testing.T) {
	path := writeImage(t, "gray.pgm", []byte("P5\n2 2\n255\n\x00\x01\x02\x03"))
	code, out, errOut := runCmd(t, "dicom", path)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	for _, want := range []string{"MONOCHROME2", "frame bytes:          4", "1.2.840.10008.1.2.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestErrors(t *testing.T) {
	truncated := writeImage(t, "short.pgm", []byte("P2\n2 2\n255\n0 1\n"))
	unknown := writeImage(t, "data.bin", []byte{0xde, 0xad, 0xbe, 0xef})

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"no command", nil, 2, "usage"},
		{"unknown command", []string{"resize"}, 2, "unknown command"},
		{"missing image", []string{"info"}, 2, "exactly one image"},
		{"truncated", []string{"dicom", truncated}, 1, "error:"},
		{"unknown format", []string{"info", unknown}, 1, "-format"},
		{"forced format", []string{"info", "-format", "image/webp", unknown}, 1, "unknown format"},
		{"bad setting", []string{"info", "-block-size", "0", truncated}, 1, "block_size"},
		{"decode without output", []string{"decode", truncated}, 1, "-o"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCmd(t, tt.args...)
			if code != tt.code {
				t.Errorf("exit code = %d, want %d", code, tt.code)
			}
			if !strings.Contains(errOut, tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", errOut, tt.want)
			}
		})
	}
}
