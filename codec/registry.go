package codec

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/text/cases"
)

// Registry maps format names to decoder constructors.
// Lookups fold case; Formats keeps registration order.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Format // keyed by folded name
	order   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]Format)}
}

func fold(name string) string {
	return cases.Fold().String(name)
}

// Register adds a format. Registering a name again replaces the entry in place.
func (r *Registry) Register(f Format) error {
	if f.Name == "" || f.New == nil {
		return fmt.Errorf("%w: format needs a name and a constructor", ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := fold(f.Name)
	if _, ok := r.formats[key]; !ok {
		r.order = append(r.order, key)
	}
	r.formats[key] = f
	return nil
}

// Lookup returns the format registered under name
func (r *Registry) Lookup(name string) (Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formats[fold(name)]
	if !ok {
		return Format{}, Errorf(ErrUnknownFormat, "unknown format %q", name)
	}
	return f, nil
}

// New creates a decoder for the named format
func (r *Registry) New(name string, opts ...Option) (*Decoder, error) {
	f, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return newDecoder(f, opts...), nil
}

// Open creates a decoder for the named format and starts it on src.
// On failure the decoder is finished and nil is returned.
func (r *Registry) Open(name string, src io.Reader, opts ...Option) (*Decoder, error) {
	d, err := r.New(name, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Start(src); err != nil {
		d.Finish()
		return nil, err
	}
	return d, nil
}

// Formats returns the registered format names in registration order
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, key := range r.order {
		names = append(names, r.formats[key].Name)
	}
	return names
}
