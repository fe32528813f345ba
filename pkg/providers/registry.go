package providers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownProvider is returned when no backend is registered under a name
var ErrUnknownProvider = errors.New("unknown provider")

// Registry holds the OCR backends a command can send images to, keyed by
// lower-cased name. The first backend registered is the default.
type Registry struct {
	backends map[string]Provider
	fallback string
}

func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Provider),
	}
}

// Register adds a backend. Registering a name twice replaces the earlier one.
func (r *Registry) Register(provider Provider) {
	name := strings.ToLower(provider.Name())
	if r.fallback == "" {
		r.fallback = name
	}
	r.backends[name] = provider
}

// Get looks a backend up by name, case-insensitively
func (r *Registry) Get(name string) (Provider, error) {
	provider, exists := r.backends[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownProvider, name, strings.Join(r.List(), ", "))
	}
	return provider, nil
}

// Resolve picks the backend named by config.Provider, or the default when the
// name is empty, and checks that config is usable with it.
func (r *Registry) Resolve(config Config) (Provider, error) {
	name := config.Provider
	if name == "" {
		name = r.fallback
	}
	provider, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("%s: invalid configuration: %w", provider.Name(), err)
	}
	return provider, nil
}

// Streams reports whether the named backend can deliver partial output
func (r *Registry) Streams(name string) bool {
	provider, exists := r.backends[strings.ToLower(name)]
	if !exists {
		return false
	}
	_, ok := provider.(StreamingProvider)
	return ok
}

// List returns the registered names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasProvider checks if a backend is registered
func (r *Registry) HasProvider(name string) bool {
	_, exists := r.backends[strings.ToLower(name)]
	return exists
}
