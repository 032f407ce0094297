package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrUnknownProvider is returned when factory for the name is not known.
var ErrUnknownProvider = errors.New("unknown provider")

// Registry keeps providers in registration order.
type Registry struct {
	mu        sync.RWMutex
	names     []string
	providers map[string]Provider
	log       *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{providers: make(map[string]Provider), log: log.Named("providers")}
}

// Register adds provider under the name, names must be unique.
func (r *Registry) Register(name string, p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider '%s' is already registered", name)
	}
	r.names = append(r.names, name)
	r.providers[name] = p
	return nil
}

// Unregister removes provider, it is not an error to remove unknown name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.providers, name)
	r.names = slices.DeleteFunc(r.names, func(n string) bool { return n == name })
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	return p, ok
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

// Ordered returns provider names starting with priority list (unknown
// names and duplicates dropped) followed by the rest in registration order.
func (r *Registry) Ordered(priority []string) []string {
	names := r.Names()

	res := make([]string, 0, len(names))
	for _, n := range priority {
		if slices.Contains(names, n) && !slices.Contains(res, n) {
			res = append(res, n)
		}
	}
	for _, n := range names {
		if !slices.Contains(res, n) {
			res = append(res, n)
		}
	}
	return res
}

// Setup prepares every provider which requires it. Providers which fail
// are kept, errors are reported together.
func (r *Registry) Setup(ctx context.Context, env *Env) (err error) {
	for _, name := range r.Names() {
		p, ok := r.Get(name)
		if !ok {
			continue
		}
		s, ok := p.(Setupper)
		if !ok {
			continue
		}
		r.log.Debug("Setting up provider", zap.String("provider", name))
		if e := s.Setup(ctx, env); e != nil {
			err = multierr.Append(err, fmt.Errorf("provider '%s' setup failed: %w", name, e))
		}
	}
	return err
}

// Close releases resources held by providers.
func (r *Registry) Close() (err error) {
	for _, name := range r.Names() {
		p, _ := r.Get(name)
		if c, ok := p.(Closer); ok {
			if e := c.Close(); e != nil {
				err = multierr.Append(err, fmt.Errorf("provider '%s': %w", name, e))
			}
		}
	}
	return err
}

// Params are provider specific configuration values.
type Params map[string]any

// String returns parameter value or def when absent.
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// Bool returns boolean parameter or def when absent.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Strings returns list parameter, single string is treated as list of one
// element.
func (p Params) Strings(key string) []string {
	switch v := p[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		res := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}
	return nil
}

// Factory creates provider from its parameters.
type Factory func(params Params) (Provider, error)

// Factories map provider names to their constructors.
type Factories map[string]Factory

// Spec selects provider and its parameters.
type Spec struct {
	Name   string
	Params Params
}

// Build registers providers according to specs in the given order.
func (f Factories) Build(reg *Registry, specs []Spec) error {
	for _, s := range specs {
		factory, ok := f[s.Name]
		if !ok {
			return fmt.Errorf("%w: '%s'", ErrUnknownProvider, s.Name)
		}
		p, err := factory(s.Params)
		if err != nil {
			return fmt.Errorf("unable to create provider '%s': %w", s.Name, err)
		}
		if err := reg.Register(s.Name, p); err != nil {
			return err
		}
	}
	return nil
}
