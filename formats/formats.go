// Package formats assembles the registry of every decoder in this module.
package formats

import (
	"github.com/cocosip/go-imageloader/bmp"
	"github.com/cocosip/go-imageloader/codec"
	"github.com/cocosip/go-imageloader/pnm"
	"github.com/cocosip/go-imageloader/targa"
)

// NewRegistry returns a registry holding, in order, bmp, targa,
// x-portable-pixmap and x-portable-graymap
func NewRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		// the built-in entries are always complete
		panic(err)
	}
	return reg
}

// RegisterAll adds every built-in decoder to reg
func RegisterAll(reg *codec.Registry) error {
	for _, register := range []func(*codec.Registry) error{
		bmp.Register,
		targa.Register,
		pnm.Register,
	} {
		if err := register(reg); err != nil {
			return err
		}
	}
	return nil
}
