// Package config holds the runtime settings of the image loader: session
// limits, memory budget and presentation options.
//
// Settings come from defaults, then an optional HCL file, then overrides
// such as command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/mitchellh/mapstructure"

	"github.com/cocosip/go-imageloader/buffer"
	"github.com/cocosip/go-imageloader/codec"
	"github.com/cocosip/go-imageloader/session"
	"github.com/cocosip/go-imageloader/stream"
)

// ErrInvalid is returned when a setting is out of range
var ErrInvalid = errors.New("invalid configuration")

// Config holds the loader settings
type Config struct {
	// Number of decode sessions that may be live at once. Defaults to 16.
	MaxSessions int `mapstructure:"max_sessions"`

	// Block size, in bytes, used when a forward-only source has to be
	// buffered for a decoder that seeks. Defaults to 8192.
	BlockSize int `mapstructure:"block_size"`

	// Upper bound on the bytes all decoders may hold at once. 0 disables
	// the limit. Defaults to 256 MiB.
	MaxImageBytes int64 `mapstructure:"max_image_bytes"`

	// One of trace, debug, info, warn or error. Defaults to info.
	LogLevel string `mapstructure:"log_level"`

	// Column cap for terminal previews. 0 uses the full terminal width.
	PreviewWidth int `mapstructure:"preview_width"`
}

// file mirrors Config for HCL decoding; absent attributes stay nil
type file struct {
	MaxSessions   *int    `hcl:"max_sessions,optional"`
	BlockSize     *int    `hcl:"block_size,optional"`
	MaxImageBytes *int64  `hcl:"max_image_bytes,optional"`
	LogLevel      *string `hcl:"log_level,optional"`
	PreviewWidth  *int    `hcl:"preview_width,optional"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		MaxSessions:   session.DefaultMaxSessions,
		BlockSize:     stream.DefaultBlockSize,
		MaxImageBytes: buffer.DefaultLimit,
		LogLevel:      "info",
	}
}

// Load reads the defaults overlaid with the HCL (or JSON) file at path.
// The file extension must be .hcl or .json.
func Load(path string) (*Config, error) {
	var f file
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	cfg := Default()
	if f.MaxSessions != nil {
		cfg.MaxSessions = *f.MaxSessions
	}
	if f.BlockSize != nil {
		cfg.BlockSize = *f.BlockSize
	}
	if f.MaxImageBytes != nil {
		cfg.MaxImageBytes = *f.MaxImageBytes
	}
	if f.LogLevel != nil {
		cfg.LogLevel = *f.LogLevel
	}
	if f.PreviewWidth != nil {
		cfg.PreviewWidth = *f.PreviewWidth
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Apply decodes overrides onto cfg. Values may be strings, as from flags or
// the environment. Unknown keys are an error.
func Apply(cfg *Config, overrides map[string]interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(overrides); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg.Validate()
}

// Validate checks every setting
func (c *Config) Validate() error {
	var problems []string
	if c.MaxSessions <= 0 {
		problems = append(problems, fmt.Sprintf("max_sessions must be positive, got %d", c.MaxSessions))
	}
	if c.BlockSize <= 0 {
		problems = append(problems, fmt.Sprintf("block_size must be positive, got %d", c.BlockSize))
	}
	if c.MaxImageBytes < 0 {
		problems = append(problems, fmt.Sprintf("max_image_bytes must not be negative, got %d", c.MaxImageBytes))
	}
	if c.PreviewWidth < 0 {
		problems = append(problems, fmt.Sprintf("preview_width must not be negative, got %d", c.PreviewWidth))
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		problems = append(problems, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Level returns the configured log level
func (c *Config) Level() hclog.Level {
	return hclog.LevelFromString(c.LogLevel)
}

// DecoderOptions returns the codec options for this configuration. Every
// decoder created with them shares one memory budget.
func (c *Config) DecoderOptions() []codec.Option {
	return []codec.Option{
		codec.WithBlockSize(c.BlockSize),
		codec.WithAllocator(buffer.NewAllocator(c.MaxImageBytes)),
	}
}

// SessionOptions returns the session manager options for this configuration
func (c *Config) SessionOptions(log hclog.Logger) []session.Option {
	return []session.Option{
		session.WithMaxSessions(c.MaxSessions),
		session.WithLogger(log),
		session.WithDecoderOptions(c.DecoderOptions()...),
	}
}
