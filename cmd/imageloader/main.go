// Command imageloader inspects and converts BMP, Targa and Netpbm images
// using the streaming row decoders.
//
// Usage:
//
//	imageloader formats
//	imageloader info [flags] <image>
//	imageloader decode [flags] -o out.png <image>
//	imageloader preview [flags] <image>
//	imageloader dicom [flags] <image>
//
// An image may be a local path or any URL go-getter understands, optionally
// gzip, xz or zstd compressed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/cocosip/go-imageloader/codec"
	"github.com/cocosip/go-imageloader/config"
	"github.com/cocosip/go-imageloader/dicomframe"
	"github.com/cocosip/go-imageloader/formats"
	"github.com/cocosip/go-imageloader/preview"
	"github.com/cocosip/go-imageloader/raster"
	"github.com/cocosip/go-imageloader/session"
	"github.com/cocosip/go-imageloader/sniff"
	"github.com/cocosip/go-imageloader/source"
	"github.com/cocosip/go-imageloader/targa"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

const usage = `usage: imageloader <command> [flags] [image]

commands:
  formats   list the supported formats
  info      print image geometry and metadata
  decode    convert an image to PNG
  preview   draw an image on the terminal
  dicom     describe the DICOM frame an image converts to
`

// settings are the flags that override config file values
var settings = []struct{ name, help string }{
	{"max-sessions", "number of concurrent decode sessions"},
	{"block-size", "block size for buffering forward-only sources"},
	{"max-image-bytes", "memory budget for decoder buffers, 0 for none"},
	{"log-level", "trace, debug, info, warn or error"},
	{"preview-width", "maximum preview width in columns"},
}

type command struct {
	fs       *flag.FlagSet
	stdout   io.Writer
	stderr   io.Writer
	cfgPath  *string
	format   *string
	output   *string
	settings map[string]*string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	name := args[0]
	c := &command{
		fs:       flag.NewFlagSet(name, flag.ContinueOnError),
		stdout:   stdout,
		stderr:   stderr,
		settings: make(map[string]*string),
	}
	c.fs.SetOutput(stderr)
	c.cfgPath = c.fs.String("config", "", "HCL or JSON configuration file")
	c.format = c.fs.String("format", "", "decoder to use; detected from content or name when empty")
	if name == "decode" {
		c.output = c.fs.String("o", "", "PNG file to write")
	}
	for _, s := range settings {
		c.settings[s.name] = c.fs.String(s.name, "", s.help)
	}
	if err := c.fs.Parse(args[1:]); err != nil {
		return 2
	}

	var err error
	switch name {
	case "formats":
		err = c.formats()
	case "info", "decode", "preview", "dicom":
		if c.fs.NArg() != 1 {
			fmt.Fprintf(stderr, "%s needs exactly one image\n", name)
			return 2
		}
		err = c.image(ctx, name, c.fs.Arg(0))
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", name, usage)
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

// loadConfig loads the configuration file, if any, and applies flag overrides
func (c *command) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *c.cfgPath != "" {
		var err error
		if cfg, err = config.Load(*c.cfgPath); err != nil {
			return nil, err
		}
	}
	overrides := make(map[string]interface{})
	c.fs.Visit(func(f *flag.Flag) {
		if _, ok := c.settings[f.Name]; ok {
			overrides[strings.ReplaceAll(f.Name, "-", "_")] = f.Value.String()
		}
	})
	if err := config.Apply(cfg, overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *command) formats() error {
	for _, name := range formats.NewRegistry().Formats() {
		fmt.Fprintln(c.stdout, name)
	}
	return nil
}

func (c *command) image(ctx context.Context, name, loc string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	log := hclog.New(&hclog.LoggerOptions{
		Name:   "imageloader",
		Level:  cfg.Level(),
		Output: c.stderr,
	})
	mgr := session.NewManager(formats.NewRegistry(), cfg.SessionOptions(log)...)

	src, err := source.Open(ctx, loc, source.WithLogger(log.Named("source")))
	if err != nil {
		return err
	}
	defer src.Close()

	format, r, err := sniff.Reader(src)
	if err != nil {
		return err
	}
	if *c.format != "" {
		format = *c.format
	} else if format == "" {
		format = sniff.ByName(trimCompression(loc))
	}
	if format == "" {
		return fmt.Errorf("cannot tell the format of %s, use -format", loc)
	}
	log.Debug("detected format", "image", loc, "format", format)

	h, err := mgr.InitSession(format)
	if err != nil {
		return err
	}
	defer mgr.Finish(h)

	if err := mgr.Attach(h, r); err != nil {
		return err
	}
	if err := mgr.Start(h); err != nil {
		return describe(mgr, h, err)
	}
	dec, err := mgr.Decoder(h)
	if err != nil {
		return err
	}

	switch name {
	case "info":
		return c.info(dec)
	case "decode":
		return c.decode(mgr, h, dec)
	case "preview":
		img, err := raster.Read(dec)
		if err != nil {
			return describe(mgr, h, err)
		}
		return preview.Show(img.NRGBA, cfg.PreviewWidth)
	case "dicom":
		return c.dicom(mgr, h, dec)
	}
	return nil
}

// trimCompression drops a compression suffix so the image extension shows
func trimCompression(loc string) string {
	for _, ext := range []string{".gz", ".xz", ".zst"} {
		if strings.HasSuffix(loc, ext) {
			return strings.TrimSuffix(loc, ext)
		}
	}
	return loc
}

// describe replaces err with the session's bounded error message when it has one
func describe(mgr *session.Manager, h session.Handle, err error) error {
	if failed, msg := mgr.Error(h); failed {
		return errors.New(msg)
	}
	return err
}

func (c *command) info(dec *codec.Decoder) error {
	fmt.Fprintf(c.stdout, "format:     %s\n", dec.Format().Name)
	fmt.Fprintf(c.stdout, "width:      %d\n", dec.Width())
	fmt.Fprintf(c.stdout, "height:     %d\n", dec.Height())
	fmt.Fprintf(c.stdout, "components: %d\n", dec.Components())
	if meta, ok := targa.MetadataOf(dec); ok {
		fmt.Fprintf(c.stdout, "tga:        version %d\n", meta.Version)
		if meta.ID != "" {
			fmt.Fprintf(c.stdout, "id:         %s\n", meta.ID)
		}
		if meta.Author != "" {
			fmt.Fprintf(c.stdout, "author:     %s\n", meta.Author)
		}
		if meta.Software != "" {
			fmt.Fprintf(c.stdout, "software:   %s\n", meta.Software)
		}
	}
	return nil
}

func (c *command) decode(mgr *session.Manager, h session.Handle, dec *codec.Decoder) error {
	if *c.output == "" {
		return errors.New("decode needs -o")
	}
	img, err := raster.Read(dec)
	if err != nil {
		return describe(mgr, h, err)
	}

	f, err := os.Create(*c.output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img.NRGBA); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", *c.output, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "wrote %s (%dx%d)\n", *c.output, dec.Width(), dec.Height())
	return nil
}

func (c *command) dicom(mgr *session.Manager, h session.Handle, dec *codec.Decoder) error {
	pd, err := dicomframe.FromDecoder(dec)
	if err != nil {
		return describe(mgr, h, err)
	}
	fi := pd.GetFrameInfo()
	frame, err := pd.GetFrame(0)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "transfer syntax:      %s\n", dicomframe.TransferSyntaxUID())
	fmt.Fprintf(c.stdout, "rows:                 %d\n", fi.Height)
	fmt.Fprintf(c.stdout, "columns:              %d\n", fi.Width)
	fmt.Fprintf(c.stdout, "samples per pixel:    %d\n", fi.SamplesPerPixel)
	fmt.Fprintf(c.stdout, "bits allocated:       %d\n", fi.BitsAllocated)
	fmt.Fprintf(c.stdout, "photometric:          %s\n", fi.PhotometricInterpretation)
	fmt.Fprintf(c.stdout, "frame bytes:          %d\n", len(frame))
	return nil
}
