package param

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownParam indicates a Set or Lookup for an unregistered ID.
	ErrUnknownParam = errors.New("param: unknown parameter id")
	// ErrDuplicateParam indicates two registrations under the same ID.
	ErrDuplicateParam = errors.New("param: duplicate parameter id")
)

// Registry maps stable string IDs to parameters. Registration happens
// during setup; after that the map is read-only and Set/Lookup are safe
// to call concurrently with audio-thread Next calls on the contained
// parameters.
type Registry struct {
	params map[string]*Param
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{params: make(map[string]*Param)}
}

// Add registers p under id. Setup-time only.
func (r *Registry) Add(id string, p *Param) error {
	if id == "" || p == nil {
		return fmt.Errorf("param: empty id or nil parameter")
	}

	if _, ok := r.params[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateParam, id)
	}

	r.params[id] = p

	return nil
}

// Set posts value to the parameter registered under id.
func (r *Registry) Set(id string, value float64) error {
	p, ok := r.params[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParam, id)
	}

	p.Set(value)

	return nil
}

// Lookup returns the parameter registered under id.
func (r *Registry) Lookup(id string) (*Param, bool) {
	p, ok := r.params[id]
	return p, ok
}

// IDs returns all registered IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.params))
	for id := range r.params {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Prepare propagates the sample rate to every registered parameter.
func (r *Registry) Prepare(sampleRate float64) error {
	for id, p := range r.params {
		if err := p.Prepare(sampleRate); err != nil {
			return fmt.Errorf("param: prepare %q: %w", id, err)
		}
	}

	return nil
}
