// Package options stores typed configuration objects under names. Each name
// collects deferred actions that run, in registration order, the first time
// the finalized store is asked for that name.
package options

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/timzifer/cqlreg/config"
	"github.com/timzifer/cqlreg/internal/argument"
)

// ErrSealed is returned when actions are added after the store was created.
var ErrSealed = errors.New("options registry is sealed")

type configureAction[T any] func(conf *config.Configuration, target *T) error

type entry[T any] struct {
	configure []configureAction[T]
	post      []func(*T)
	validate  []func(*T) error
}

// Registry collects configuration actions per name.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	order   []string
	sealed  bool
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]*entry[T])}
}

func (r *Registry[T]) mutate(name string, fn func(e *entry[T])) error {
	if err := argument.NotEmpty("name", name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: cannot configure %q", ErrSealed, name)
	}
	e, ok := r.entries[name]
	if !ok {
		e = &entry[T]{}
		r.entries[name] = e
		r.order = append(r.order, name)
	}
	fn(e)
	return nil
}

// Configure appends a mutator for name.
func (r *Registry[T]) Configure(name string, fn func(*T)) error {
	if err := argument.NotNil("configure", fn); err != nil {
		return err
	}
	return r.mutate(name, func(e *entry[T]) {
		e.configure = append(e.configure, func(_ *config.Configuration, target *T) error {
			fn(target)
			return nil
		})
	})
}

// Bind appends an action that populates the object from the configuration
// section at path. The configuration is read when the name is first resolved.
func (r *Registry[T]) Bind(name, path string) error {
	if err := argument.NotEmpty("path", path); err != nil {
		return err
	}
	return r.mutate(name, func(e *entry[T]) {
		e.configure = append(e.configure, func(conf *config.Configuration, target *T) error {
			return conf.Bind(path, target)
		})
	})
}

// PostConfigure appends a mutator that runs after every Configure and Bind action.
func (r *Registry[T]) PostConfigure(name string, fn func(*T)) error {
	if err := argument.NotNil("postConfigure", fn); err != nil {
		return err
	}
	return r.mutate(name, func(e *entry[T]) {
		e.post = append(e.post, fn)
	})
}

// Validate appends a check that runs last. A failing check fails the resolution of name.
func (r *Registry[T]) Validate(name string, fn func(*T) error) error {
	if err := argument.NotNil("validate", fn); err != nil {
		return err
	}
	return r.mutate(name, func(e *entry[T]) {
		e.validate = append(e.validate, fn)
	})
}

// Builder returns a fluent builder bound to name.
func (r *Registry[T]) Builder(name string) *Builder[T] {
	return &Builder[T]{name: name, registry: r}
}

// Has reports whether any action was registered for name.
func (r *Registry[T]) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	return ok
}

// Names returns the registered names sorted alphabetically.
func (r *Registry[T]) Names() []string {
	r.mu.Lock()
	names := append([]string(nil), r.order...)
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

// Store seals the registry and returns the finalized store reading from conf.
func (r *Registry[T]) Store(conf *config.Configuration) *Store[T] {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
	if conf == nil {
		conf = config.Empty()
	}
	return &Store[T]{registry: r, conf: conf, cache: make(map[string]*snapshot[T])}
}

func (r *Registry[T]) snapshotEntry(name string) *entry[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return &entry[T]{}
	}
	return &entry[T]{
		configure: slices.Clone(e.configure),
		post:      slices.Clone(e.post),
		validate:  slices.Clone(e.validate),
	}
}
